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
	"math/rand"
	"strings"

	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// matchStage filters documents with query predicates.
type matchStage struct {
	filter *types.Document
}

func newMatchStage(arg any) (stage, error) {
	filter, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$match needs a document")
	}

	return &matchStage{filter: filter}, nil
}

func (s *matchStage) Process(in []*types.Document) ([]*types.Document, error) {
	var out []*types.Document

	for _, doc := range in {
		matches, err := collection.Match(doc, s.filter)
		if err != nil {
			return nil, err
		}

		if matches {
			out = append(out, doc)
		}
	}

	return out, nil
}

// projectStage reshapes documents. Unlike a find projection it may compute
// new fields from expressions.
type projectStage struct {
	spec      *types.Document
	exclusion bool
}

func newProjectStage(arg any) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok || spec.Len() == 0 {
		return nil, lazyerrors.New("$project needs a non-empty document")
	}

	var inclusions, exclusions int
	for _, k := range spec.Keys() {
		v, _ := spec.Get(k)

		if isExclusionFlag(v) {
			if k != "_id" {
				exclusions++
			}
			continue
		}
		inclusions++
	}

	if inclusions > 0 && exclusions > 0 {
		return nil, lazyerrors.New("cannot mix inclusion and exclusion in $project")
	}

	return &projectStage{spec: spec, exclusion: exclusions > 0 || inclusions == 0}, nil
}

func isExclusionFlag(v any) bool {
	switch v := v.(type) {
	case bool:
		return !v
	case int32:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0
	default:
		return false
	}
}

// isInclusionFlag reports whether v includes a field as-is rather than
// computing it.
func isInclusionFlag(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int32:
		return v == 1
	case int64:
		return v == 1
	case float64:
		return v == 1
	default:
		return false
	}
}

func (s *projectStage) Process(in []*types.Document) ([]*types.Document, error) {
	out := make([]*types.Document, 0, len(in))

	for _, doc := range in {
		projected, err := s.project(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}

	return out, nil
}

func (s *projectStage) project(doc *types.Document) (*types.Document, error) {
	if s.exclusion {
		res := doc.DeepCopy()
		for _, k := range s.spec.Keys() {
			v, _ := s.spec.Get(k)
			if isExclusionFlag(v) {
				types.RemoveByPath(res, k)
			}
		}

		return res, nil
	}

	res := types.MakeDocument(s.spec.Len() + 1)

	if id, err := doc.Get("_id"); err == nil {
		excluded := false
		if v, err := s.spec.Get("_id"); err == nil && isExclusionFlag(v) {
			excluded = true
		}
		if !excluded {
			res.Set("_id", id)
		}
	}

	for _, k := range s.spec.Keys() {
		if k == "_id" {
			continue
		}

		v, _ := s.spec.Get(k)

		if isInclusionFlag(v) {
			value, err := types.GetByPath(doc, k)
			if err != nil {
				continue
			}
			if err := types.SetByPath(res, k, value); err != nil {
				return nil, lazyerrors.Error(err)
			}
			continue
		}

		value, err := Evaluate(doc, v)
		if err != nil {
			return nil, err
		}
		if _, isMissing := value.(missingType); isMissing {
			continue
		}

		if err := types.SetByPath(res, k, value); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return res, nil
}

// addFieldsStage adds or overwrites computed fields.
type addFieldsStage struct {
	name string
	spec *types.Document
}

func newAddFieldsStage(name string, arg any) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.Errorf("%s needs a document", name)
	}

	return &addFieldsStage{name: name, spec: spec}, nil
}

func (s *addFieldsStage) Process(in []*types.Document) ([]*types.Document, error) {
	out := make([]*types.Document, 0, len(in))

	for _, doc := range in {
		res := doc.DeepCopy()

		for _, k := range s.spec.Keys() {
			expr, _ := s.spec.Get(k)

			v, err := Evaluate(doc, expr)
			if err != nil {
				return nil, err
			}
			if _, isMissing := v.(missingType); isMissing {
				continue
			}

			if err := types.SetByPath(res, k, v); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}

		out = append(out, res)
	}

	return out, nil
}

// unsetStage removes fields; the argument is a path or an array of paths.
type unsetStage struct {
	paths []string
}

func newUnsetStage(arg any) (stage, error) {
	var paths []string

	switch arg := arg.(type) {
	case string:
		paths = []string{arg}
	case *types.Array:
		for _, v := range arg.Slice() {
			s, ok := v.(string)
			if !ok {
				return nil, lazyerrors.New("$unset needs field paths")
			}
			paths = append(paths, s)
		}
	default:
		return nil, lazyerrors.New("$unset needs a string or an array of strings")
	}

	if len(paths) == 0 {
		return nil, lazyerrors.New("$unset needs at least one field path")
	}

	return &unsetStage{paths: paths}, nil
}

func (s *unsetStage) Process(in []*types.Document) ([]*types.Document, error) {
	out := make([]*types.Document, 0, len(in))

	for _, doc := range in {
		res := doc.DeepCopy()
		for _, p := range s.paths {
			types.RemoveByPath(res, p)
		}
		out = append(out, res)
	}

	return out, nil
}

// sortStage orders documents.
type sortStage struct {
	spec *types.Document
}

func newSortStage(arg any) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok || spec.Len() == 0 {
		return nil, lazyerrors.New("$sort needs a non-empty document")
	}

	return &sortStage{spec: spec}, nil
}

func (s *sortStage) Process(in []*types.Document) ([]*types.Document, error) {
	out := append([]*types.Document(nil), in...)

	if err := collection.SortDocuments(out, s.spec); err != nil {
		return nil, err
	}

	return out, nil
}

// limitStage keeps the first n documents.
type limitStage struct {
	n int64
}

func newLimitStage(arg any) (stage, error) {
	n, ok := asFloat(arg)
	if !ok || n < 0 {
		return nil, lazyerrors.New("$limit needs a non-negative number")
	}

	return &limitStage{n: int64(n)}, nil
}

func (s *limitStage) Process(in []*types.Document) ([]*types.Document, error) {
	if int64(len(in)) <= s.n {
		return in, nil
	}

	return in[:s.n], nil
}

// skipStage drops the first n documents.
type skipStage struct {
	n int64
}

func newSkipStage(arg any) (stage, error) {
	n, ok := asFloat(arg)
	if !ok || n < 0 {
		return nil, lazyerrors.New("$skip needs a non-negative number")
	}

	return &skipStage{n: int64(n)}, nil
}

func (s *skipStage) Process(in []*types.Document) ([]*types.Document, error) {
	if int64(len(in)) <= s.n {
		return nil, nil
	}

	return in[s.n:], nil
}

// countStage replaces the stream with a single count document.
type countStage struct {
	field string
}

func newCountStage(arg any) (stage, error) {
	field, ok := arg.(string)
	if !ok || field == "" || strings.HasPrefix(field, "$") || strings.Contains(field, ".") {
		return nil, lazyerrors.New("$count needs a plain field name")
	}

	return &countStage{field: field}, nil
}

func (s *countStage) Process(in []*types.Document) ([]*types.Document, error) {
	if len(in) == 0 {
		return nil, nil
	}

	res := types.MakeDocument(1)
	res.Set(s.field, int32(len(in)))

	return []*types.Document{res}, nil
}

// unwindStage flattens an array field into one document per element.
type unwindStage struct {
	path          string
	preserveEmpty bool
}

func newUnwindStage(arg any) (stage, error) {
	var path string
	var preserveEmpty bool

	switch arg := arg.(type) {
	case string:
		path = arg
	case *types.Document:
		v, err := arg.Get("path")
		if err != nil {
			return nil, lazyerrors.New("$unwind needs a path field")
		}

		var ok bool
		if path, ok = v.(string); !ok {
			return nil, lazyerrors.New("$unwind path must be a string")
		}

		if v, err := arg.Get("preserveNullAndEmptyArrays"); err == nil {
			preserveEmpty, _ = v.(bool)
		}
	default:
		return nil, lazyerrors.New("$unwind needs a string or a document")
	}

	if !strings.HasPrefix(path, "$") {
		return nil, lazyerrors.New("$unwind path must start with $")
	}

	return &unwindStage{path: path[1:], preserveEmpty: preserveEmpty}, nil
}

func (s *unwindStage) Process(in []*types.Document) ([]*types.Document, error) {
	var out []*types.Document

	for _, doc := range in {
		v, err := types.GetByPath(doc, s.path)
		if err != nil {
			if s.preserveEmpty {
				out = append(out, doc)
			}
			continue
		}

		arr, ok := v.(*types.Array)
		if !ok {
			// non-array values pass through unchanged
			out = append(out, doc)
			continue
		}

		if arr.Len() == 0 {
			if s.preserveEmpty {
				res := doc.DeepCopy()
				types.RemoveByPath(res, s.path)
				out = append(out, res)
			}
			continue
		}

		for _, elem := range arr.Slice() {
			res := doc.DeepCopy()
			if err := types.SetByPath(res, s.path, elem); err != nil {
				return nil, lazyerrors.Error(err)
			}
			out = append(out, res)
		}
	}

	return out, nil
}

// replaceRootStage promotes a computed document to the root.
type replaceRootStage struct {
	expr any
}

func newReplaceRootStage(name string, arg any) (stage, error) {
	expr := arg

	if name == "$replaceRoot" {
		spec, ok := arg.(*types.Document)
		if !ok {
			return nil, lazyerrors.New("$replaceRoot needs a document")
		}

		var err error
		if expr, err = spec.Get("newRoot"); err != nil {
			return nil, lazyerrors.New("$replaceRoot needs a newRoot field")
		}
	}

	return &replaceRootStage{expr: expr}, nil
}

func (s *replaceRootStage) Process(in []*types.Document) ([]*types.Document, error) {
	out := make([]*types.Document, 0, len(in))

	for _, doc := range in {
		v, err := Evaluate(doc, s.expr)
		if err != nil {
			return nil, err
		}

		root, ok := v.(*types.Document)
		if !ok {
			return nil, lazyerrors.Errorf("new root must be a document, got %s", aliasOf(v))
		}

		out = append(out, root)
	}

	return out, nil
}

// sampleStage keeps a random subset of the stream.
type sampleStage struct {
	size int64
	rng  *rand.Rand
}

func newSampleStage(arg any, rng *rand.Rand) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$sample needs a document")
	}

	v, err := spec.Get("size")
	if err != nil {
		return nil, lazyerrors.New("$sample needs a size field")
	}

	n, ok := asFloat(v)
	if !ok || n < 0 {
		return nil, lazyerrors.New("$sample size must be a non-negative number")
	}

	return &sampleStage{size: int64(n), rng: rng}, nil
}

func (s *sampleStage) Process(in []*types.Document) ([]*types.Document, error) {
	if int64(len(in)) <= s.size {
		return in, nil
	}

	picked := append([]*types.Document(nil), in...)
	s.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	return picked[:s.size], nil
}

// lookupStage joins documents from another collection by field equality.
type lookupStage struct {
	db     string
	source Source

	from         string
	localField   string
	foreignField string
	as           string
}

func newLookupStage(arg any, db string, source Source) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$lookup needs a document")
	}

	if source == nil {
		return nil, lazyerrors.New("$lookup is not available here")
	}

	s := &lookupStage{db: db, source: source}

	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"from", &s.from},
		{"localField", &s.localField},
		{"foreignField", &s.foreignField},
		{"as", &s.as},
	} {
		v, err := spec.Get(field.name)
		if err != nil {
			return nil, lazyerrors.Errorf("$lookup needs a %s field", field.name)
		}

		str, ok := v.(string)
		if !ok {
			return nil, lazyerrors.Errorf("$lookup %s must be a string", field.name)
		}

		*field.dst = str
	}

	return s, nil
}

func (s *lookupStage) Process(in []*types.Document) ([]*types.Document, error) {
	if len(in) == 0 {
		return nil, nil
	}

	foreign, err := s.source.Fetch(s.db, s.from, lookupFetchLimit)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Document, 0, len(in))

	for _, doc := range in {
		local, localErr := types.GetByPath(doc, s.localField)

		matched := types.MakeArray(0)
		for _, f := range foreign {
			fv, fErr := types.GetByPath(f, s.foreignField)

			var equal bool
			switch {
			case localErr != nil && fErr != nil:
				equal = true
			case localErr != nil || fErr != nil:
				equal = false
			default:
				equal = types.Compare(local, fv) == types.Equal
			}

			if equal {
				if err := matched.Append(f); err != nil {
					return nil, lazyerrors.Error(err)
				}
			}
		}

		res := doc.DeepCopy()
		if err := types.SetByPath(res, s.as, matched); err != nil {
			return nil, lazyerrors.Error(err)
		}

		out = append(out, res)
	}

	return out, nil
}

// facetStage runs sub-pipelines over the same input and collects each
// result under its own field of a single output document.
type facetStage struct {
	names     []string
	pipelines []*Pipeline
}

func newFacetStage(arg any, db string, source Source) (stage, error) {
	spec, ok := arg.(*types.Document)
	if !ok || spec.Len() == 0 {
		return nil, lazyerrors.New("$facet needs a non-empty document")
	}

	s := &facetStage{}

	for _, name := range spec.Keys() {
		v, _ := spec.Get(name)

		stages, ok := v.(*types.Array)
		if !ok {
			return nil, lazyerrors.Errorf("$facet %s must be a pipeline array", name)
		}

		sub, err := New(db, stages, source)
		if err != nil {
			return nil, err
		}

		s.names = append(s.names, name)
		s.pipelines = append(s.pipelines, sub)
	}

	return s, nil
}

func (s *facetStage) Process(in []*types.Document) ([]*types.Document, error) {
	res := types.MakeDocument(len(s.names))

	for i, name := range s.names {
		docs, err := s.pipelines[i].Run(in)
		if err != nil {
			return nil, err
		}

		arr := types.MakeArray(len(docs))
		for _, d := range docs {
			if err := arr.Append(d); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}

		res.Set(name, arr)
	}

	return []*types.Document{res}, nil
}

// outStage writes the stream to another collection and emits nothing.
type outStage struct {
	db         string
	collection string
	source     Source
}

func newOutStage(arg any, db string, source Source) (stage, error) {
	if source == nil {
		return nil, lazyerrors.New("$out is not available here")
	}

	s := &outStage{db: db, source: source}

	switch arg := arg.(type) {
	case string:
		s.collection = arg
	case *types.Document:
		if v, err := arg.Get("db"); err == nil {
			if str, ok := v.(string); ok {
				s.db = str
			}
		}

		v, err := arg.Get("coll")
		if err != nil {
			return nil, lazyerrors.New("$out needs a coll field")
		}

		str, ok := v.(string)
		if !ok {
			return nil, lazyerrors.New("$out coll must be a string")
		}
		s.collection = str
	default:
		return nil, lazyerrors.New("$out needs a string or a document")
	}

	return s, nil
}

func (s *outStage) Process(in []*types.Document) ([]*types.Document, error) {
	if err := s.source.Store(s.db, s.collection, in); err != nil {
		return nil, err
	}

	return nil, nil
}

// mergeStage is $out with a target spec under "into"; merge semantics
// degenerate to an insert because documents are never persisted.
type mergeStage struct {
	out *outStage
}

func newMergeStage(arg any, db string, source Source) (stage, error) {
	if source == nil {
		return nil, lazyerrors.New("$merge is not available here")
	}

	spec, ok := arg.(*types.Document)
	if !ok {
		// a bare collection name is also accepted
		if name, isString := arg.(string); isString {
			return &mergeStage{out: &outStage{db: db, collection: name, source: source}}, nil
		}
		return nil, lazyerrors.New("$merge needs a document or a string")
	}

	into, err := spec.Get("into")
	if err != nil {
		return nil, lazyerrors.New("$merge needs an into field")
	}

	o, err := newOutStage(into, db, source)
	if err != nil {
		return nil, err
	}

	return &mergeStage{out: o.(*outStage)}, nil
}

func (s *mergeStage) Process(in []*types.Document) ([]*types.Document, error) {
	return s.out.Process(in)
}
