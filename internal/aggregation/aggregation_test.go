// Copyright 2024 DataFlood Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataFlood/DataFlood/internal/types"
)

func doc(pairs ...any) *types.Document {
	if len(pairs)%2 != 0 {
		panic("doc: odd number of arguments")
	}

	d := types.MakeDocument(len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1])
	}

	return d
}

func arr(values ...any) *types.Array {
	a := types.MakeArray(len(values))
	if err := a.Append(values...); err != nil {
		panic(err)
	}

	return a
}

// orders is a small fixture shared by the stage tests.
func orders() []*types.Document {
	return []*types.Document{
		doc("_id", int32(1), "item", "apple", "qty", int32(5), "price", 1.5, "tags", arr("fruit", "red")),
		doc("_id", int32(2), "item", "banana", "qty", int32(10), "price", 0.5, "tags", arr("fruit")),
		doc("_id", int32(3), "item", "carrot", "qty", int32(20), "price", 0.3, "tags", arr("vegetable")),
		doc("_id", int32(4), "item", "apple", "qty", int32(15), "price", 1.5, "tags", arr("fruit", "green")),
	}
}

func run(t *testing.T, stages *types.Array, in []*types.Document) []*types.Document {
	t.Helper()

	p, err := New("test", stages, nil)
	require.NoError(t, err)

	out, err := p.Run(in)
	require.NoError(t, err)

	return out
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	d := doc(
		"a", int32(3),
		"b", int32(4),
		"s", "Hello",
		"nested", doc("x", int64(10)),
		"list", arr(int32(1), int32(2), int32(3)),
	)

	for name, tc := range map[string]struct {
		expr any
		want any
	}{
		"Literal":      {int32(42), int32(42)},
		"FieldPath":    {"$a", int32(3)},
		"NestedPath":   {"$nested.x", int64(10)},
		"PlainString":  {"hello", "hello"},
		"Add":          {doc("$add", arr("$a", "$b", int32(1))), int32(8)},
		"Subtract":     {doc("$subtract", arr("$b", "$a")), int32(1)},
		"Multiply":     {doc("$multiply", arr("$a", "$b")), int32(12)},
		"Divide":       {doc("$divide", arr("$b", int32(2))), 2.0},
		"Mod":          {doc("$mod", arr("$b", "$a")), int32(1)},
		"Abs":          {doc("$abs", int32(-7)), int32(7)},
		"Ceil":         {doc("$ceil", 1.2), 2.0},
		"Floor":        {doc("$floor", 1.8), 1.0},
		"Sqrt":         {doc("$sqrt", int32(16)), 4.0},
		"Concat":       {doc("$concat", arr("$s", " ", "world")), "Hello world"},
		"ToUpper":      {doc("$toUpper", "$s"), "HELLO"},
		"ToLower":      {doc("$toLower", "$s"), "hello"},
		"StrLen":       {doc("$strLenCP", "$s"), int32(5)},
		"Substr":       {doc("$substrCP", arr("$s", int32(1), int32(3))), "ell"},
		"Eq":           {doc("$eq", arr("$a", int32(3))), true},
		"Ne":           {doc("$ne", arr("$a", int32(3))), false},
		"Gt":           {doc("$gt", arr("$b", "$a")), true},
		"Cmp":          {doc("$cmp", arr("$a", "$b")), int32(-1)},
		"And":          {doc("$and", arr(true, doc("$gt", arr("$a", int32(0))))), true},
		"Or":           {doc("$or", arr(false, false)), false},
		"Not":          {doc("$not", arr(false)), true},
		"Cond":         {doc("$cond", arr(doc("$gt", arr("$a", int32(1))), "big", "small")), "big"},
		"IfNullHit":    {doc("$ifNull", arr("$missing", "fallback")), "fallback"},
		"IfNullMiss":   {doc("$ifNull", arr("$a", "fallback")), int32(3)},
		"Size":         {doc("$size", "$list"), int32(3)},
		"ArrayElemAt":  {doc("$arrayElemAt", arr("$list", int32(-1))), int32(3)},
		"In":           {doc("$in", arr(int32(2), "$list")), true},
		"TypeOf":       {doc("$type", "$a"), "int"},
		"LiteralOp":    {doc("$literal", "$a"), "$a"},
		"ExprDocument": {doc("total", doc("$add", arr("$a", "$b"))), doc("total", int32(7))},
		"Switch": {
			doc("$switch", doc(
				"branches", arr(
					doc("case", doc("$lt", arr("$a", int32(0))), "then", "negative"),
					doc("case", doc("$gt", arr("$a", int32(0))), "then", "positive"),
				),
				"default", "zero",
			)),
			"positive",
		},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := Evaluate(d, tc.expr)
			require.NoError(t, err)

			assert.Equal(t, types.FormatValue(tc.want), types.FormatValue(got))
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	d := doc("a", int32(1), "s", "x")

	for name, expr := range map[string]any{
		"UnknownOperator": doc("$frobnicate", int32(1)),
		"DivideByZero":    doc("$divide", arr(int32(1), int32(0))),
		"AddString":       doc("$add", arr("$a", "$s")),
		"SqrtNegative":    doc("$sqrt", int32(-1)),
		"UnknownVariable": "$$NOW",
	} {
		expr := expr
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Evaluate(d, expr)
			assert.Error(t, err)
		})
	}
}

func TestMatchStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$match", doc("qty", doc("$gte", int32(10))))), orders())

	require.Len(t, out, 3)
	for _, d := range out {
		qty, _ := d.Get("qty")
		assert.GreaterOrEqual(t, qty.(int32), int32(10))
	}
}

func TestProjectStage(t *testing.T) {
	t.Parallel()

	t.Run("Computed", func(t *testing.T) {
		t.Parallel()

		out := run(t, arr(doc("$project", doc(
			"_id", int32(0),
			"item", int32(1),
			"total", doc("$multiply", arr("$qty", "$price")),
		))), orders())

		require.Len(t, out, 4)
		assert.Equal(t, []string{"item", "total"}, out[0].Keys())

		total, _ := out[0].Get("total")
		assert.InDelta(t, 7.5, total.(float64), 1e-9)
	})

	t.Run("Exclusion", func(t *testing.T) {
		t.Parallel()

		out := run(t, arr(doc("$project", doc("tags", int32(0), "price", int32(0)))), orders())

		require.Len(t, out, 4)
		assert.Equal(t, []string{"_id", "item", "qty"}, out[0].Keys())
	})

	t.Run("Mixed", func(t *testing.T) {
		t.Parallel()

		_, err := New("test", arr(doc("$project", doc("item", int32(1), "qty", int32(0)))), nil)
		assert.Error(t, err)
	})
}

func TestGroupStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(
		doc("$group", doc(
			"_id", "$item",
			"count", doc("$sum", int32(1)),
			"totalQty", doc("$sum", "$qty"),
			"avgPrice", doc("$avg", "$price"),
			"minQty", doc("$min", "$qty"),
			"maxQty", doc("$max", "$qty"),
			"allQty", doc("$push", "$qty"),
			"prices", doc("$addToSet", "$price"),
		)),
		doc("$sort", doc("_id", int32(1))),
	), orders())

	require.Len(t, out, 3)

	apple := out[0]
	id, _ := apple.Get("_id")
	require.Equal(t, "apple", id)

	count, _ := apple.Get("count")
	totalQty, _ := apple.Get("totalQty")
	avgPrice, _ := apple.Get("avgPrice")
	minQty, _ := apple.Get("minQty")
	maxQty, _ := apple.Get("maxQty")
	allQty, _ := apple.Get("allQty")
	prices, _ := apple.Get("prices")

	assert.Equal(t, int32(2), count)
	assert.Equal(t, int32(20), totalQty)
	assert.InDelta(t, 1.5, avgPrice.(float64), 1e-9)
	assert.Equal(t, int32(5), minQty)
	assert.Equal(t, int32(15), maxQty)
	assert.Equal(t, 2, allQty.(*types.Array).Len())
	assert.Equal(t, 1, prices.(*types.Array).Len(), "$addToSet deduplicates")
}

func TestGroupNullID(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$group", doc("_id", types.Null, "n", doc("$count", doc())))), orders())

	require.Len(t, out, 1)

	n, _ := out[0].Get("n")
	assert.Equal(t, int32(4), n)
}

func TestSortLimitSkipStages(t *testing.T) {
	t.Parallel()

	out := run(t, arr(
		doc("$sort", doc("qty", int32(-1))),
		doc("$skip", int32(1)),
		doc("$limit", int32(2)),
	), orders())

	require.Len(t, out, 2)

	first, _ := out[0].Get("qty")
	second, _ := out[1].Get("qty")
	assert.Equal(t, int32(15), first)
	assert.Equal(t, int32(10), second)
}

func TestCountStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$count", "n")), orders())

	require.Len(t, out, 1)
	n, _ := out[0].Get("n")
	assert.Equal(t, int32(4), n)

	out = run(t, arr(doc("$count", "n")), nil)
	assert.Empty(t, out)
}

func TestUnwindStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$unwind", "$tags")), orders())

	require.Len(t, out, 6)

	tag, _ := out[0].Get("tags")
	assert.Equal(t, "fruit", tag)
	tag, _ = out[1].Get("tags")
	assert.Equal(t, "red", tag)
}

func TestUnwindPreserveEmpty(t *testing.T) {
	t.Parallel()

	in := []*types.Document{
		doc("n", int32(1), "tags", arr()),
		doc("n", int32(2)),
		doc("n", int32(3), "tags", arr("a")),
	}

	out := run(t, arr(doc("$unwind", doc("path", "$tags"))), in)
	assert.Len(t, out, 1)

	out = run(t, arr(doc("$unwind", doc("path", "$tags", "preserveNullAndEmptyArrays", true))), in)
	assert.Len(t, out, 3)
}

func TestAddFieldsUnsetStages(t *testing.T) {
	t.Parallel()

	out := run(t, arr(
		doc("$addFields", doc("total", doc("$multiply", arr("$qty", "$price")))),
		doc("$unset", arr("tags", "price")),
	), orders())

	require.Len(t, out, 4)
	assert.Equal(t, []string{"_id", "item", "qty", "total"}, out[0].Keys())
}

func TestReplaceRootStage(t *testing.T) {
	t.Parallel()

	in := []*types.Document{
		doc("_id", int32(1), "inner", doc("a", int32(1))),
	}

	out := run(t, arr(doc("$replaceRoot", doc("newRoot", "$inner"))), in)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"a"}, out[0].Keys())

	out = run(t, arr(doc("$replaceWith", "$inner")), in)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"a"}, out[0].Keys())
}

func TestSampleStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$sample", doc("size", int32(2)))), orders())
	assert.Len(t, out, 2)

	out = run(t, arr(doc("$sample", doc("size", int32(100)))), orders())
	assert.Len(t, out, 4, "a sample larger than the input returns everything")
}

func TestBucketStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$bucket", doc(
		"groupBy", "$qty",
		"boundaries", arr(int32(0), int32(10), int32(100)),
		"output", doc("n", doc("$sum", int32(1)), "items", doc("$push", "$item")),
	))), orders())

	require.Len(t, out, 2)

	id, _ := out[0].Get("_id")
	n, _ := out[0].Get("n")
	assert.Equal(t, int32(0), id)
	assert.Equal(t, int32(1), n)

	id, _ = out[1].Get("_id")
	n, _ = out[1].Get("n")
	assert.Equal(t, int32(10), id)
	assert.Equal(t, int32(3), n)
}

func TestBucketNoDefault(t *testing.T) {
	t.Parallel()

	p, err := New("test", arr(doc("$bucket", doc(
		"groupBy", "$qty",
		"boundaries", arr(int32(0), int32(10)),
	))), nil)
	require.NoError(t, err)

	_, err = p.Run(orders())
	assert.Error(t, err, "out-of-range values need a default bucket")
}

func TestBucketAutoStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$bucketAuto", doc("groupBy", "$qty", "buckets", int32(2)))), orders())

	require.Len(t, out, 2)

	var total int32
	for _, b := range out {
		id, err := b.Get("_id")
		require.NoError(t, err)
		assert.True(t, id.(*types.Document).Has("min"))
		assert.True(t, id.(*types.Document).Has("max"))

		n, _ := b.Get("count")
		total += n.(int32)
	}

	assert.Equal(t, int32(4), total)
}

func TestFacetStage(t *testing.T) {
	t.Parallel()

	out := run(t, arr(doc("$facet", doc(
		"byItem", arr(doc("$group", doc("_id", "$item", "n", doc("$sum", int32(1))))),
		"expensive", arr(doc("$match", doc("price", doc("$gte", 1.0)))),
	))), orders())

	require.Len(t, out, 1)

	byItem, err := out[0].Get("byItem")
	require.NoError(t, err)
	assert.Equal(t, 3, byItem.(*types.Array).Len())

	expensive, err := out[0].Get("expensive")
	require.NoError(t, err)
	assert.Equal(t, 2, expensive.(*types.Array).Len())
}

// fakeSource serves and records collections for $lookup, $out and $merge.
type fakeSource struct {
	foreign map[string][]*types.Document
	stored  map[string][]*types.Document
}

func (s *fakeSource) Fetch(db, coll string, _ int64) ([]*types.Document, error) {
	return s.foreign[db+"."+coll], nil
}

func (s *fakeSource) Store(db, coll string, docs []*types.Document) error {
	if s.stored == nil {
		s.stored = map[string][]*types.Document{}
	}
	s.stored[db+"."+coll] = append(s.stored[db+"."+coll], docs...)

	return nil
}

func TestLookupStage(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		foreign: map[string][]*types.Document{
			"test.inventory": {
				doc("sku", "apple", "warehouse", "A"),
				doc("sku", "apple", "warehouse", "B"),
				doc("sku", "banana", "warehouse", "A"),
			},
		},
	}

	p, err := New("test", arr(doc("$lookup", doc(
		"from", "inventory",
		"localField", "item",
		"foreignField", "sku",
		"as", "stock",
	))), source)
	require.NoError(t, err)

	out, err := p.Run(orders())
	require.NoError(t, err)
	require.Len(t, out, 4)

	stock, err := out[0].Get("stock")
	require.NoError(t, err)
	assert.Equal(t, 2, stock.(*types.Array).Len())

	stock, err = out[2].Get("stock")
	require.NoError(t, err)
	assert.Equal(t, 0, stock.(*types.Array).Len())
}

func TestOutMergeStages(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}

	p, err := New("test", arr(doc("$out", "archive")), source)
	require.NoError(t, err)

	out, err := p.Run(orders())
	require.NoError(t, err)
	assert.Empty(t, out, "$out emits nothing")
	assert.Len(t, source.stored["test.archive"], 4)

	p, err = New("test", arr(doc("$merge", doc("into", doc("db", "other", "coll", "backup")))), source)
	require.NoError(t, err)

	_, err = p.Run(orders())
	require.NoError(t, err)
	assert.Len(t, source.stored["other.backup"], 4)
}

func TestPipelineErrors(t *testing.T) {
	t.Parallel()

	_, err := New("test", arr(doc("$unknownStage", doc())), nil)
	assert.Error(t, err)

	_, err = New("test", arr(doc("$match", doc(), "$limit", int32(1))), nil)
	assert.Error(t, err, "a stage document must have exactly one key")

	_, err = New("test", arr("$match"), nil)
	assert.Error(t, err)

	_, err = New("test", arr(doc("$lookup", doc("from", "x", "localField", "a", "foreignField", "b", "as", "c"))), nil)
	assert.Error(t, err, "$lookup needs a source")
}
