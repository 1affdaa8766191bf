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

package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataFlood/DataFlood/internal/types"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	d := doc(
		"name", "alice",
		"age", int32(30),
		"tags", arr("a", "b"),
		"address", doc("city", "Berlin"),
	)

	for name, tc := range map[string]struct {
		filter  *types.Document
		matches bool
	}{
		"Empty":          {doc(), true},
		"ScalarEq":       {doc("name", "alice"), true},
		"ScalarNe":       {doc("name", "bob"), false},
		"Eq":             {doc("age", doc("$eq", int32(30))), true},
		"Ne":             {doc("age", doc("$ne", int32(30))), false},
		"Gt":             {doc("age", doc("$gt", int32(20))), true},
		"GtFalse":        {doc("age", doc("$gt", int32(30))), false},
		"Gte":            {doc("age", doc("$gte", int32(30))), true},
		"Lt":             {doc("age", doc("$lt", int64(31))), true},
		"Lte":            {doc("age", doc("$lte", 30.0)), true},
		"NumericMix":     {doc("age", doc("$gt", 29.5)), true},
		"CrossTypeOrder": {doc("name", doc("$gt", int32(1))), false},
		"In":             {doc("name", doc("$in", arr("bob", "alice"))), true},
		"Nin":            {doc("name", doc("$nin", arr("bob"))), true},
		"ExistsTrue":     {doc("age", doc("$exists", true)), true},
		"ExistsFalse":    {doc("salary", doc("$exists", false)), true},
		"Type":           {doc("age", doc("$type", "int")), true},
		"TypeMismatch":   {doc("age", doc("$type", "string")), false},
		"Regex":          {doc("name", doc("$regex", "^al")), true},
		"RegexInsensitive": {
			doc("name", doc("$regex", types.Regex{Pattern: "^AL", Options: "i"})),
			true,
		},
		"Size":         {doc("tags", doc("$size", int32(2))), true},
		"All":          {doc("tags", doc("$all", arr("b", "a"))), true},
		"AllMissing":   {doc("tags", doc("$all", arr("a", "z"))), false},
		"DottedPath":   {doc("address.city", "Berlin"), true},
		"MissingNull":  {doc("salary", types.Null), true},
		"MissingValue": {doc("salary", int32(1)), false},
		"And": {
			doc("$and", arr(doc("name", "alice"), doc("age", doc("$gt", int32(20))))),
			true,
		},
		"Or": {
			doc("$or", arr(doc("name", "bob"), doc("age", int32(30)))),
			true,
		},
		"Nor": {
			doc("$nor", arr(doc("name", "bob"), doc("age", int32(99)))),
			true,
		},
		"Not":      {doc("$not", doc("name", "bob")), true},
		"NotFalse": {doc("$not", doc("name", "alice")), false},
		"MultipleOperators": {
			doc("age", doc("$gte", int32(30), "$lte", int32(30))),
			true,
		},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			matches, err := Match(d, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.matches, matches)
		})
	}
}

func TestMatchErrors(t *testing.T) {
	t.Parallel()

	d := doc("a", int32(1))

	for name, filter := range map[string]*types.Document{
		"UnknownFieldOp":     doc("a", doc("$near", int32(1))),
		"AndNotArray":        doc("$and", doc("a", int32(1))),
		"UnknownTopOperator": doc("$fancy", int32(1)),
	} {
		filter := filter
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Match(d, filter)
			assert.Error(t, err)
		})
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	d := doc(
		"_id", int32(7),
		"name", "alice",
		"age", int32(30),
		"address", doc("city", "Berlin", "zip", "10115"),
	)

	t.Run("Inclusion", func(t *testing.T) {
		t.Parallel()

		res, err := Project(d, doc("name", int32(1)))
		require.NoError(t, err)

		assert.Equal(t, []string{"_id", "name"}, res.Keys())
	})

	t.Run("InclusionWithoutID", func(t *testing.T) {
		t.Parallel()

		res, err := Project(d, doc("_id", int32(0), "age", true))
		require.NoError(t, err)

		assert.Equal(t, []string{"age"}, res.Keys())
	})

	t.Run("Exclusion", func(t *testing.T) {
		t.Parallel()

		res, err := Project(d, doc("age", int32(0)))
		require.NoError(t, err)

		assert.Equal(t, []string{"_id", "name", "address"}, res.Keys())
	})

	t.Run("OnlyIDExclusion", func(t *testing.T) {
		t.Parallel()

		res, err := Project(d, doc("_id", int32(0)))
		require.NoError(t, err)

		assert.Equal(t, []string{"name", "age", "address"}, res.Keys())
	})

	t.Run("DottedInclusion", func(t *testing.T) {
		t.Parallel()

		res, err := Project(d, doc("address.city", int32(1)))
		require.NoError(t, err)

		city, err := types.GetByPath(res, "address.city")
		require.NoError(t, err)
		assert.Equal(t, "Berlin", city)
		assert.False(t, types.HasByPath(res, "address.zip"))
	})

	t.Run("Mixed", func(t *testing.T) {
		t.Parallel()

		_, err := Project(d, doc("name", int32(1), "age", int32(0)))
		assert.Error(t, err)
	})

	t.Run("SourceUntouched", func(t *testing.T) {
		t.Parallel()

		_, err := Project(d, doc("name", int32(1)))
		require.NoError(t, err)
		assert.Equal(t, []string{"_id", "name", "age", "address"}, d.Keys())
	})
}

func TestApplyUpdate(t *testing.T) {
	t.Parallel()

	t.Run("Set", func(t *testing.T) {
		t.Parallel()

		d := doc("_id", int32(1), "a", int32(1))

		changed, err := ApplyUpdate(d, doc("$set", doc("a", int32(2), "b", "x")))
		require.NoError(t, err)
		assert.True(t, changed)

		a, _ := d.Get("a")
		b, _ := d.Get("b")
		assert.Equal(t, int32(2), a)
		assert.Equal(t, "x", b)
	})

	t.Run("SetNoChange", func(t *testing.T) {
		t.Parallel()

		d := doc("a", int32(1))

		changed, err := ApplyUpdate(d, doc("$set", doc("a", int32(1))))
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("Unset", func(t *testing.T) {
		t.Parallel()

		d := doc("a", int32(1), "b", int32(2))

		changed, err := ApplyUpdate(d, doc("$unset", doc("a", int32(1), "missing", int32(1))))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, d.Has("a"))
		assert.True(t, d.Has("b"))
	})

	t.Run("Inc", func(t *testing.T) {
		t.Parallel()

		d := doc("n", int32(5), "f", 1.5)

		changed, err := ApplyUpdate(d, doc("$inc", doc("n", int32(3), "f", 0.5, "new", int64(7))))
		require.NoError(t, err)
		assert.True(t, changed)

		n, _ := d.Get("n")
		f, _ := d.Get("f")
		newV, _ := d.Get("new")
		assert.Equal(t, int32(8), n)
		assert.Equal(t, 2.0, f)
		assert.Equal(t, int64(7), newV)
	})

	t.Run("IncOverflow", func(t *testing.T) {
		t.Parallel()

		d := doc("n", int32(2147483647))

		_, err := ApplyUpdate(d, doc("$inc", doc("n", int32(1))))
		require.NoError(t, err)

		n, _ := d.Get("n")
		assert.Equal(t, int64(2147483648), n)
	})

	t.Run("IncNonNumeric", func(t *testing.T) {
		t.Parallel()

		d := doc("n", "five")

		_, err := ApplyUpdate(d, doc("$inc", doc("n", int32(1))))
		assert.Error(t, err)
	})

	t.Run("PushPull", func(t *testing.T) {
		t.Parallel()

		d := doc("tags", arr("a"))

		_, err := ApplyUpdate(d, doc("$push", doc("tags", "b", "fresh", "x")))
		require.NoError(t, err)

		tags, _ := d.Get("tags")
		assert.Equal(t, []any{"a", "b"}, tags.(*types.Array).Slice())

		fresh, _ := d.Get("fresh")
		assert.Equal(t, []any{"x"}, fresh.(*types.Array).Slice())

		changed, err := ApplyUpdate(d, doc("$pull", doc("tags", "a")))
		require.NoError(t, err)
		assert.True(t, changed)

		tags, _ = d.Get("tags")
		assert.Equal(t, []any{"b"}, tags.(*types.Array).Slice())
	})

	t.Run("Replacement", func(t *testing.T) {
		t.Parallel()

		d := doc("_id", int32(1), "a", int32(1), "b", int32(2))

		changed, err := ApplyUpdate(d, doc("c", "new"))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []string{"_id", "c"}, d.Keys())

		id, _ := d.Get("_id")
		assert.Equal(t, int32(1), id)
	})

	t.Run("UnknownOperator", func(t *testing.T) {
		t.Parallel()

		d := doc("a", int32(1))

		_, err := ApplyUpdate(d, doc("$rename", doc("a", "b")))
		assert.Error(t, err)
	})
}

func TestSortDocuments(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		doc("name", "b", "age", int32(30)),
		doc("name", "a", "age", int32(30)),
		doc("name", "c"),
		doc("name", "d", "age", int32(20)),
	}

	require.NoError(t, SortDocuments(docs, doc("age", int32(1), "name", int32(-1))))

	var names []string
	for _, d := range docs {
		name, _ := d.Get("name")
		names = append(names, name.(string))
	}

	// missing age first, then ascending age, ties broken by descending name
	assert.Equal(t, []string{"c", "d", "b", "a"}, names)

	err := SortDocuments(docs, doc("age", int32(2)))
	assert.Error(t, err)
}

func TestExtractGenerationParams(t *testing.T) {
	t.Parallel()

	filter, params := ExtractGenerationParams(doc("$seed", int32(7), "$entropy", 2.5, "name", "a"))

	require.NotNil(t, params.Seed)
	require.NotNil(t, params.Entropy)
	assert.Equal(t, int64(7), *params.Seed)
	assert.Equal(t, 2.5, *params.Entropy)
	assert.Equal(t, []string{"name"}, filter.Keys())

	filter, params = ExtractGenerationParams(doc("_seed", int64(42)))
	require.NotNil(t, params.Seed)
	assert.Equal(t, int64(42), *params.Seed)
	assert.Zero(t, filter.Len())

	_, params = ExtractGenerationParams(nil)
	assert.Nil(t, params.Seed)
	assert.Nil(t, params.Entropy)
}

func TestExtractConstraints(t *testing.T) {
	t.Parallel()

	cons := ExtractConstraints(doc(
		"status", "active",
		"age", doc("$gte", int32(18), "$lt", int32(65)),
		"tier", doc("$in", arr("gold", "silver")),
		"name", doc("$regex", "^a"),
		"$or", arr(doc("x", int32(1))),
	))

	require.Contains(t, cons, "status")
	assert.True(t, cons["status"].HasEquals)
	assert.Equal(t, "active", cons["status"].Equals)

	require.Contains(t, cons, "age")
	require.NotNil(t, cons["age"].Min)
	require.NotNil(t, cons["age"].Max)
	assert.Equal(t, 18.0, *cons["age"].Min)
	assert.False(t, cons["age"].MinExclusive)
	assert.Equal(t, 65.0, *cons["age"].Max)
	assert.True(t, cons["age"].MaxExclusive)

	require.Contains(t, cons, "tier")
	assert.Equal(t, []any{"gold", "silver"}, cons["tier"].Enum)

	// $regex has no generation meaning, $or is logical
	assert.NotContains(t, cons, "name")
	assert.NotContains(t, cons, "$or")

	assert.Nil(t, ExtractConstraints(nil))
	assert.Nil(t, ExtractConstraints(doc()))
	assert.Nil(t, ExtractConstraints(doc("name", doc("$regex", "^a"))))
}
