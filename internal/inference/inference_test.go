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

package inference

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataFlood/DataFlood/internal/model"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/must"
)

func newTestInferrer() *Inferrer {
	return NewInferrer(rand.New(rand.NewSource(1)))
}

func TestInferTwoDocuments(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must.NotFail(types.NewDocument("a", int32(1), "b", "x")),
		must.NotFail(types.NewDocument("a", int32(2), "b", "y", "c", true)),
	}

	m, err := newTestInferrer().InferDocuments(docs)
	require.NoError(t, err)

	assert.Equal(t, "object", m.Type)
	assert.Equal(t, model.SchemaURI, m.Schema)
	assert.Equal(t, []string{"a", "b"}, m.Required)

	a := m.Properties["a"]
	require.NotNil(t, a)
	assert.Equal(t, "integer", a.Type)
	assert.Equal(t, float64(1), *a.Minimum)
	assert.Equal(t, float64(2), *a.Maximum)

	b := m.Properties["b"]
	require.NotNil(t, b)
	assert.Equal(t, "string", b.Type)
	assert.Equal(t, 1, *b.MinLength)
	assert.Equal(t, 1, *b.MaxLength)

	c := m.Properties["c"]
	require.NotNil(t, c)
	assert.Equal(t, "boolean", c.Type)
}

func TestInferEmptySample(t *testing.T) {
	t.Parallel()

	_, err := newTestInferrer().Infer(nil)
	assert.Error(t, err)
}

func TestInferHeterogeneousRoots(t *testing.T) {
	t.Parallel()

	m, err := newTestInferrer().Infer([]any{"x", int32(1)})
	require.NoError(t, err)

	require.Len(t, m.AnyOf, 2)
	assert.Equal(t, "string", m.AnyOf[0].Type)
	assert.Equal(t, "integer", m.AnyOf[1].Type)
}

func TestInferHistogram(t *testing.T) {
	t.Parallel()

	values := make([]any, 10)
	for i := range values {
		values[i] = int32(i + 1)
	}

	m, err := newTestInferrer().Infer(values)
	require.NoError(t, err)

	assert.Equal(t, "integer", m.Type)
	require.NotNil(t, m.Histogram)
	assert.Len(t, m.Histogram.Bins, 10)
	assert.InDelta(t, 3.3219, m.Histogram.EntropyScore, 0.0001)
}

func TestInferNoHistogramBelowThreshold(t *testing.T) {
	t.Parallel()

	m, err := newTestInferrer().Infer([]any{int32(1), int32(2), int32(3)})
	require.NoError(t, err)
	assert.Nil(t, m.Histogram)
}

func TestInferMultipleOf(t *testing.T) {
	t.Parallel()

	m, err := newTestInferrer().Infer([]any{int32(10), int32(20), int32(30), int32(50)})
	require.NoError(t, err)

	require.NotNil(t, m.MultipleOf)
	assert.Equal(t, float64(10), *m.MultipleOf)
}

func TestInferArray(t *testing.T) {
	t.Parallel()

	arrays := []any{
		must.NotFail(types.NewArray(int32(1), int32(2), int32(3))),
		must.NotFail(types.NewArray(int32(4), int32(5))),
	}

	m, err := newTestInferrer().Infer(arrays)
	require.NoError(t, err)

	assert.Equal(t, "array", m.Type)
	assert.Equal(t, 2, *m.MinItems)
	assert.Equal(t, 3, *m.MaxItems)
	assert.True(t, m.UniqueItems)
	require.NotNil(t, m.Items)
	assert.Equal(t, "integer", m.Items.Type)
}

func TestInferFormatDetection(t *testing.T) {
	t.Parallel()

	m, err := newTestInferrer().Infer([]any{
		"alice@example.com", "bob@example.org", "carol@example.net",
	})
	require.NoError(t, err)

	assert.Equal(t, "string", m.Type)
	assert.Equal(t, "email", m.Format)
}

func TestInferForeignKeyHint(t *testing.T) {
	t.Parallel()

	docs := make([]*types.Document, 10)
	for i := range docs {
		docs[i] = must.NotFail(types.NewDocument(
			"customer_id", fmt.Sprintf("c-%d", i),
			"status", "active",
		))
	}

	m, err := newTestInferrer().InferDocuments(docs)
	require.NoError(t, err)

	require.Len(t, m.Relationships, 1)
	rel := m.Relationships[0]
	assert.Equal(t, "customer_id", rel.Field)
	assert.Equal(t, "foreign_key", rel.Type)
	assert.Equal(t, "customer", rel.ReferencedEntity)
	assert.Equal(t, "reference", rel.RelationshipType)
	assert.Greater(t, rel.Confidence, 0.5)
}

func TestDetectEnumStandardSet(t *testing.T) {
	t.Parallel()

	week := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

	var values []string
	for i := 0; i < 10; i++ {
		values = append(values, week...)
	}

	dec := NewEnumDetector(rand.New(rand.NewSource(1))).Detect(values, "day")

	assert.True(t, dec.ShouldCreateEnum)
	assert.Equal(t, ConfidenceHigh, dec.Confidence)
	assert.Equal(t, CategoryStandardSet, dec.Category)
	assert.ElementsMatch(t, week, dec.EnumValues)
}

func TestDetectEnumHighCardinality(t *testing.T) {
	t.Parallel()

	values := make([]string, 100)
	for i := range values {
		values[i] = fmt.Sprintf("user-%d", i)
	}

	dec := NewEnumDetector(rand.New(rand.NewSource(1))).Detect(values, "login")

	assert.False(t, dec.ShouldCreateEnum)
	assert.Equal(t, CategoryNotEnum, dec.Category)
}

func TestDetectEnumStable(t *testing.T) {
	t.Parallel()

	values := []string{"red", "green", "blue", "red", "green", "red"}

	a := NewEnumDetector(rand.New(rand.NewSource(7))).Detect(values, "color")
	b := NewEnumDetector(rand.New(rand.NewSource(7))).Detect(values, "color")

	assert.Equal(t, a, b)
}

func TestDetectFormats(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		want   string
		values []string
	}{
		{"uuid", []string{"550e8400-e29b-41d4-a716-446655440000"}},
		{"date", []string{"2024-01-15", "2023-12-31"}},
		{"time", []string{"13:45:00"}},
		{"ipv4", []string{"10.0.0.1", "192.168.1.254"}},
		{"uri", []string{"https://example.com/x", "ftp://host/file"}},
		{"", []string{"plain", "text"}},
		{"", []string{"2024-01-15", "not a date"}},
	} {
		assert.Equal(t, tc.want, detectFormat(tc.values), "values %v", tc.values)
	}
}
