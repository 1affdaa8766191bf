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

// Package inference derives a statistical model from a sample of documents:
// type detection, enum detection, format and pattern detection, histogram
// and string-model construction.
package inference

import (
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/DataFlood/DataFlood/internal/model"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// minHistogramSamples is the sample size below which no histogram is built.
const minHistogramSamples = 10

// maxStringModelSamples caps the frequency-sorted values feeding a string model.
const maxStringModelSamples = 20

// Inferrer builds models from document samples.
type Inferrer struct {
	enums *EnumDetector

	// DetectFormats enables format and pattern detection for strings.
	DetectFormats bool

	// ForeignKeyHints enables relationship tagging on object models.
	ForeignKeyHints bool
}

// NewInferrer returns an inferrer with all detections enabled.
// The rng drives reservoir sampling during enum detection.
func NewInferrer(rng *rand.Rand) *Inferrer {
	return &Inferrer{
		enums:           NewEnumDetector(rng),
		DetectFormats:   true,
		ForeignKeyHints: true,
	}
}

// InferDocuments builds a model describing the given documents.
func (inf *Inferrer) InferDocuments(docs []*types.Document) (*model.Model, error) {
	values := make([]any, len(docs))
	for i, doc := range docs {
		values[i] = doc
	}

	return inf.Infer(values)
}

// Infer builds a model describing the union of the given values.
// Heterogeneous root types produce an anyOf model.
func (inf *Inferrer) Infer(values []any) (*model.Model, error) {
	if len(values) == 0 {
		return nil, lazyerrors.New("inference: empty sample")
	}

	m := inf.infer(values, "")
	m.Schema = model.SchemaURI

	return m, nil
}

// infer dispatches on the semantic types present in the sample.
func (inf *Inferrer) infer(values []any, fieldName string) *model.Model {
	byType := map[string][]any{}
	var order []string

	for _, v := range values {
		t := semanticType(v)
		if _, ok := byType[t]; !ok {
			order = append(order, t)
		}
		byType[t] = append(byType[t], v)
	}

	if len(order) == 1 {
		return inf.inferTyped(order[0], values, fieldName)
	}

	members := make([]*model.Model, len(order))
	for i, t := range order {
		members[i] = inf.inferTyped(t, byType[t], fieldName)
	}

	return &model.Model{AnyOf: members}
}

func (inf *Inferrer) inferTyped(typ string, values []any, fieldName string) *model.Model {
	switch typ {
	case "object":
		docs := make([]*types.Document, len(values))
		for i, v := range values {
			docs[i] = v.(*types.Document)
		}
		return inf.inferObject(docs)

	case "array":
		arrays := make([]*types.Array, len(values))
		for i, v := range values {
			arrays[i] = v.(*types.Array)
		}
		return inf.inferArray(arrays, fieldName)

	case "string":
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = stringOf(v)
		}
		return inf.inferString(strs, fieldName)

	case "integer", "number":
		nums := make([]float64, len(values))
		for i, v := range values {
			nums[i], _ = numericValue(v)
		}
		return inf.inferNumeric(nums, typ == "integer")

	case "boolean":
		return &model.Model{Type: "boolean"}

	default:
		return &model.Model{Type: "null"}
	}
}

func (inf *Inferrer) inferObject(docs []*types.Document) *model.Model {
	var names []string
	presence := map[string]int{}
	valuesByName := map[string][]any{}

	for _, doc := range docs {
		for _, k := range doc.Keys() {
			if _, ok := presence[k]; !ok {
				names = append(names, k)
			}
			presence[k]++

			v, _ := doc.Get(k)
			if _, isNull := v.(types.NullType); isNull || v == nil {
				continue
			}

			valuesByName[k] = append(valuesByName[k], v)
		}
	}

	m := &model.Model{
		Type:       "object",
		Properties: make(map[string]*model.Model, len(names)),
	}

	for _, name := range names {
		if presence[name] == len(docs) {
			m.Required = append(m.Required, name)
		}

		vals := valuesByName[name]
		if len(vals) == 0 {
			m.Properties[name] = &model.Model{Type: "null"}
			continue
		}

		m.Properties[name] = inf.infer(vals, name)

		if inf.ForeignKeyHints {
			if rel := foreignKeyHint(name, vals); rel != nil {
				m.Relationships = append(m.Relationships, *rel)
			}
		}
	}

	return m
}

func (inf *Inferrer) inferArray(arrays []*types.Array, fieldName string) *model.Model {
	m := &model.Model{Type: "array"}

	minLen, maxLen := arrays[0].Len(), arrays[0].Len()
	var elements []any

	for _, a := range arrays {
		l := a.Len()
		minLen = min(minLen, l)
		maxLen = max(maxLen, l)

		seen := map[string]struct{}{}
		distinct := true

		for _, v := range a.Slice() {
			elements = append(elements, v)

			key := types.FormatValue(v)
			if _, ok := seen[key]; ok {
				distinct = false
			}
			seen[key] = struct{}{}
		}

		if distinct && l > 1 {
			m.UniqueItems = true
		}
	}

	m.MinItems, m.MaxItems = &minLen, &maxLen

	if len(elements) > 0 {
		m.Items = inf.infer(elements, fieldName)
	}

	return m
}

func (inf *Inferrer) inferString(values []string, fieldName string) *model.Model {
	m := &model.Model{Type: "string"}

	minLen, maxLen := len(values[0]), len(values[0])
	for _, v := range values {
		minLen = min(minLen, len(v))
		maxLen = max(maxLen, len(v))
	}
	m.MinLength, m.MaxLength = &minLen, &maxLen

	if dec := inf.enums.Detect(values, fieldName); dec.ShouldCreateEnum {
		m.Enum = make([]any, len(dec.EnumValues))
		for i, v := range dec.EnumValues {
			m.Enum[i] = v
		}

		return m
	}

	if inf.DetectFormats {
		if m.Format = detectFormat(values); m.Format == "" {
			m.Pattern = detectPattern(values)
		}
	}

	m.StringModel = model.BuildStringModel(topFrequencySample(values, maxStringModelSamples))

	return m
}

func (inf *Inferrer) inferNumeric(values []float64, isInt bool) *model.Model {
	typ := "number"
	if isInt {
		typ = "integer"
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	m := &model.Model{
		Type:    typ,
		Minimum: &minV,
		Maximum: &maxV,
	}

	if step := detectMultipleOf(values); step > 1 {
		m.MultipleOf = &step
	}

	if len(values) >= minHistogramSamples {
		m.Histogram = model.BuildHistogram(values)
	}

	return m
}

// topFrequencySample restricts a string multiset to the occurrences of its
// n most frequent distinct values.
func topFrequencySample(values []string, n int) []string {
	freq := map[string]int{}
	for _, v := range values {
		freq[v]++
	}

	if len(freq) <= n {
		return values
	}

	m := &enumMetrics{freq: freq, uniqueCount: len(freq)}
	keep := map[string]struct{}{}
	for _, v := range m.distinctByFrequency()[:n] {
		keep[v] = struct{}{}
	}

	res := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := keep[v]; ok {
			res = append(res, v)
		}
	}

	return res
}

// detectMultipleOf returns the GCD of consecutive differences of the sorted
// sample when it exceeds 1 and divides every value; 0 otherwise.
func detectMultipleOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	for _, v := range values {
		if v != math.Trunc(v) {
			return 0
		}
	}

	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var g int64
	for i := 1; i < len(sorted); i++ {
		d := int64(sorted[i] - sorted[i-1])
		if d == 0 {
			continue
		}
		g = gcd(g, d)
	}

	if g <= 1 {
		return 0
	}

	for _, v := range values {
		if int64(v)%g != 0 {
			return 0
		}
	}

	return float64(g)
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// fkNameRe matches property names that look like references to other entities.
var fkNameRe = regexp.MustCompile(`^(parent_|child_|reference_|related_)?(.+)_(id|ref|key)$`)

// foreignKeyHint tags a property as a probable foreign key when its name
// matches the reference shape and its values are mostly distinct.
func foreignKeyHint(name string, values []any) *model.Relationship {
	sub := fkNameRe.FindStringSubmatch(strings.ToLower(name))
	if sub == nil {
		return nil
	}

	distinct := map[string]struct{}{}
	for _, v := range values {
		distinct[types.FormatValue(v)] = struct{}{}
	}

	ratio := float64(len(distinct)) / float64(len(values))
	if ratio <= 0.5 {
		return nil
	}

	relType := "reference"
	switch sub[1] {
	case "parent_":
		relType = "parent"
	case "child_":
		relType = "child"
	}

	return &model.Relationship{
		Field:            name,
		Type:             "foreign_key",
		ReferencedEntity: sub[2],
		RelationshipType: relType,
		Confidence:       ratio,
	}
}

// semanticType maps a document value onto the model type vocabulary.
// Numeric values with no fractional part are integers.
func semanticType(v any) string {
	switch v := v.(type) {
	case *types.Document:
		return "object"
	case *types.Array:
		return "array"
	case string:
		return "string"
	case int32, int64:
		return "integer"
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return "integer"
		}
		return "number"
	case bool:
		return "boolean"
	case nil, types.NullType:
		return "null"
	default:
		// ObjectIDs, timestamps, and other BSON scalars train as strings
		return "string"
	}
}

func numericValue(v any) (float64, bool) {
	switch v := v.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func stringOf(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case types.ObjectID:
		return v.Hex()
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05.000Z")
	default:
		return types.FormatValue(v)
	}
}
