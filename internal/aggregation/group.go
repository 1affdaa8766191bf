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
	"math"
	"sort"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// accumulatorSpec is one output field of $group, $bucket or $bucketAuto.
type accumulatorSpec struct {
	field string
	op    string
	expr  any
}

func parseAccumulator(field string, v any) (accumulatorSpec, error) {
	spec, ok := v.(*types.Document)
	if !ok || spec.Len() != 1 {
		return accumulatorSpec{}, lazyerrors.Errorf("field %s must be an accumulator document", field)
	}

	op := spec.Keys()[0]
	expr, _ := spec.Get(op)

	switch op {
	case "$sum", "$avg", "$min", "$max", "$count", "$first", "$last",
		"$push", "$addToSet", "$stdDevPop", "$stdDevSamp":
		return accumulatorSpec{field: field, op: op, expr: expr}, nil
	default:
		return accumulatorSpec{}, lazyerrors.Errorf("unknown accumulator %s", op)
	}
}

// applyAccumulators evaluates every accumulator over the group members and
// sets the results on out.
func applyAccumulators(out *types.Document, members []*types.Document, accs []accumulatorSpec) error {
	for _, acc := range accs {
		v, err := accumulate(members, acc)
		if err != nil {
			return err
		}

		out.Set(acc.field, v)
	}

	return nil
}

func accumulate(members []*types.Document, acc accumulatorSpec) (any, error) {
	if acc.op == "$count" {
		return int32(len(members)), nil
	}

	values := make([]any, 0, len(members))
	for _, doc := range members {
		v, err := Evaluate(doc, acc.expr)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	switch acc.op {
	case "$sum":
		return sumValues(values), nil

	case "$avg":
		var sum float64
		var n int
		for _, v := range values {
			if f, ok := asFloat(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return types.Null, nil
		}
		return sum / float64(n), nil

	case "$min", "$max":
		var best any
		for _, v := range values {
			if isNullish(v) {
				continue
			}
			if best == nil {
				best = v
				continue
			}

			res := types.Compare(v, best)
			if (acc.op == "$min" && res == types.Less) || (acc.op == "$max" && res == types.Greater) {
				best = v
			}
		}
		if best == nil {
			return types.Null, nil
		}
		return best, nil

	case "$first":
		if len(values) == 0 {
			return types.Null, nil
		}
		if _, isMissing := values[0].(missingType); isMissing {
			return types.Null, nil
		}
		return values[0], nil

	case "$last":
		if len(values) == 0 {
			return types.Null, nil
		}
		last := values[len(values)-1]
		if _, isMissing := last.(missingType); isMissing {
			return types.Null, nil
		}
		return last, nil

	case "$push":
		arr := types.MakeArray(len(values))
		for _, v := range values {
			if _, isMissing := v.(missingType); isMissing {
				continue
			}
			if err := arr.Append(v); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}
		return arr, nil

	case "$addToSet":
		arr := types.MakeArray(0)
		seen := map[string]struct{}{}
		for _, v := range values {
			if _, isMissing := v.(missingType); isMissing {
				continue
			}

			key := types.FormatValue(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			if err := arr.Append(v); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}
		return arr, nil

	default: // $stdDevPop, $stdDevSamp
		nums := make([]float64, 0, len(values))
		for _, v := range values {
			if f, ok := asFloat(v); ok {
				nums = append(nums, f)
			}
		}

		minN := 1
		if acc.op == "$stdDevSamp" {
			minN = 2
		}
		if len(nums) < minN {
			return types.Null, nil
		}

		var mean float64
		for _, n := range nums {
			mean += n
		}
		mean /= float64(len(nums))

		var variance float64
		for _, n := range nums {
			variance += (n - mean) * (n - mean)
		}

		div := float64(len(nums))
		if acc.op == "$stdDevSamp" {
			div--
		}

		return math.Sqrt(variance / div), nil
	}
}

// sumValues adds the numeric values, keeping integer types when possible.
func sumValues(values []any) any {
	var sum float64
	var any32, any64, anyFloat bool

	for _, v := range values {
		switch v := v.(type) {
		case int32:
			sum += float64(v)
			any32 = true
		case int64:
			sum += float64(v)
			any64 = true
		case float64:
			sum += v
			anyFloat = true
		}
	}

	switch {
	case anyFloat || sum != math.Trunc(sum):
		return sum
	case any64 || sum < math.MinInt32 || sum > math.MaxInt32:
		return int64(sum)
	case any32:
		return int32(sum)
	default:
		return int32(0)
	}
}

// groupStage buckets documents by a computed key.
type groupStage struct {
	idExpr any
	accs   []accumulatorSpec
}

func newGroupStage(arg any) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$group needs a document")
	}

	idExpr, err := spec.Get("_id")
	if err != nil {
		return nil, lazyerrors.New("$group needs an _id field")
	}

	s := &groupStage{idExpr: idExpr}

	for _, field := range spec.Keys() {
		if field == "_id" {
			continue
		}

		v, _ := spec.Get(field)

		acc, err := parseAccumulator(field, v)
		if err != nil {
			return nil, err
		}

		s.accs = append(s.accs, acc)
	}

	return s, nil
}

func (s *groupStage) Process(in []*types.Document) ([]*types.Document, error) {
	type group struct {
		id      any
		members []*types.Document
	}

	groups := map[string]*group{}
	var order []string

	for _, doc := range in {
		id, err := Evaluate(doc, s.idExpr)
		if err != nil {
			return nil, err
		}
		if _, isMissing := id.(missingType); isMissing {
			id = types.Null
		}

		key := types.FormatValue(id)

		g, ok := groups[key]
		if !ok {
			g = &group{id: id}
			groups[key] = g
			order = append(order, key)
		}

		g.members = append(g.members, doc)
	}

	out := make([]*types.Document, 0, len(order))

	for _, key := range order {
		g := groups[key]

		res := types.MakeDocument(len(s.accs) + 1)
		res.Set("_id", g.id)

		if err := applyAccumulators(res, g.members, s.accs); err != nil {
			return nil, err
		}

		out = append(out, res)
	}

	return out, nil
}

// bucketStage groups documents into explicit boundary ranges.
type bucketStage struct {
	groupBy    any
	boundaries []any
	defaultID  any
	hasDefault bool
	accs       []accumulatorSpec
}

func newBucketStage(arg any) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$bucket needs a document")
	}

	groupBy, err := spec.Get("groupBy")
	if err != nil {
		return nil, lazyerrors.New("$bucket needs a groupBy field")
	}

	b, err := spec.Get("boundaries")
	if err != nil {
		return nil, lazyerrors.New("$bucket needs a boundaries field")
	}

	arr, ok := b.(*types.Array)
	if !ok || arr.Len() < 2 {
		return nil, lazyerrors.New("$bucket needs at least 2 boundaries")
	}

	boundaries := arr.Slice()
	for i := 1; i < len(boundaries); i++ {
		if types.Compare(boundaries[i-1], boundaries[i]) != types.Less {
			return nil, lazyerrors.New("$bucket boundaries must be sorted and unique")
		}
	}

	s := &bucketStage{groupBy: groupBy, boundaries: boundaries}

	if v, err := spec.Get("default"); err == nil {
		s.defaultID = v
		s.hasDefault = true
	}

	if s.accs, err = parseOutput(spec); err != nil {
		return nil, err
	}

	return s, nil
}

// parseOutput reads the optional output document; the default output is a
// single count.
func parseOutput(spec *types.Document) ([]accumulatorSpec, error) {
	v, err := spec.Get("output")
	if err != nil {
		return []accumulatorSpec{{field: "count", op: "$sum", expr: int32(1)}}, nil
	}

	output, ok := v.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("output must be a document")
	}

	accs := make([]accumulatorSpec, 0, output.Len())
	for _, field := range output.Keys() {
		av, _ := output.Get(field)

		acc, err := parseAccumulator(field, av)
		if err != nil {
			return nil, err
		}

		accs = append(accs, acc)
	}

	return accs, nil
}

func (s *bucketStage) Process(in []*types.Document) ([]*types.Document, error) {
	n := len(s.boundaries) - 1
	buckets := make([][]*types.Document, n)
	var defaultMembers []*types.Document

	for _, doc := range in {
		v, err := Evaluate(doc, s.groupBy)
		if err != nil {
			return nil, err
		}

		idx := -1
		for i := 0; i < n; i++ {
			if types.Compare(v, s.boundaries[i]) != types.Less &&
				types.Compare(v, s.boundaries[i+1]) == types.Less {
				idx = i
				break
			}
		}

		if idx < 0 {
			if !s.hasDefault {
				return nil, lazyerrors.New("a value does not fall into any bucket and no default is set")
			}
			defaultMembers = append(defaultMembers, doc)
			continue
		}

		buckets[idx] = append(buckets[idx], doc)
	}

	var out []*types.Document

	for i, members := range buckets {
		if len(members) == 0 {
			continue
		}

		res := types.MakeDocument(len(s.accs) + 1)
		res.Set("_id", s.boundaries[i])

		if err := applyAccumulators(res, members, s.accs); err != nil {
			return nil, err
		}

		out = append(out, res)
	}

	if len(defaultMembers) > 0 {
		res := types.MakeDocument(len(s.accs) + 1)
		res.Set("_id", s.defaultID)

		if err := applyAccumulators(res, defaultMembers, s.accs); err != nil {
			return nil, err
		}

		out = append(out, res)
	}

	return out, nil
}

// bucketAutoStage splits the sorted stream into roughly equal buckets.
type bucketAutoStage struct {
	groupBy any
	buckets int
	accs    []accumulatorSpec
}

func newBucketAutoStage(arg any) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$bucketAuto needs a document")
	}

	groupBy, err := spec.Get("groupBy")
	if err != nil {
		return nil, lazyerrors.New("$bucketAuto needs a groupBy field")
	}

	v, err := spec.Get("buckets")
	if err != nil {
		return nil, lazyerrors.New("$bucketAuto needs a buckets field")
	}

	n, ok := asFloat(v)
	if !ok || n < 1 {
		return nil, lazyerrors.New("$bucketAuto buckets must be a positive number")
	}

	s := &bucketAutoStage{groupBy: groupBy, buckets: int(n)}

	if s.accs, err = parseOutput(spec); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *bucketAutoStage) Process(in []*types.Document) ([]*types.Document, error) {
	if len(in) == 0 {
		return nil, nil
	}

	type keyed struct {
		key any
		doc *types.Document
	}

	items := make([]keyed, 0, len(in))
	for _, doc := range in {
		v, err := Evaluate(doc, s.groupBy)
		if err != nil {
			return nil, err
		}
		if _, isMissing := v.(missingType); isMissing {
			v = types.Null
		}

		items = append(items, keyed{key: v, doc: doc})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return types.Compare(items[i].key, items[j].key) == types.Less
	})

	n := s.buckets
	if n > len(items) {
		n = len(items)
	}

	size := len(items) / n
	extra := len(items) % n

	var out []*types.Document
	pos := 0

	for i := 0; i < n; i++ {
		count := size
		if i < extra {
			count++
		}

		members := items[pos : pos+count]
		pos += count

		id := types.MakeDocument(2)
		id.Set("min", members[0].key)
		id.Set("max", members[len(members)-1].key)

		res := types.MakeDocument(len(s.accs) + 1)
		res.Set("_id", id)

		docs := make([]*types.Document, len(members))
		for j, m := range members {
			docs[j] = m.doc
		}

		if err := applyAccumulators(res, docs, s.accs); err != nil {
			return nil, err
		}

		out = append(out, res)
	}

	return out, nil
}
