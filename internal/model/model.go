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

// Package model defines the statistical collection model:
// a JSON-Schema-shaped tree extended with histograms for numeric fields
// and character/n-gram/value-frequency models for string fields.
package model

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// SchemaURI is written into the root model's $schema property.
const SchemaURI = "http://json-schema.org/draft-07/schema#"

// Model is one node of the schema tree. A property's schema is itself a Model.
//
// Exactly one of (enum, anyOf, type) shapes the generator's top-level choice;
// when several are present, enum wins, then anyOf, then type.
type Model struct {
	Schema string `json:"$schema,omitempty"`

	Type       string            `json:"type,omitempty"`
	Properties map[string]*Model `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`

	Items       *Model `json:"items,omitempty"`
	MinItems    *int   `json:"minItems,omitempty"`
	MaxItems    *int   `json:"maxItems,omitempty"`
	UniqueItems bool   `json:"uniqueItems,omitempty"`

	Minimum    *float64 `json:"minimum,omitempty"`
	Maximum    *float64 `json:"maximum,omitempty"`
	MultipleOf *float64 `json:"multipleOf,omitempty"`

	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Format    string `json:"format,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	AnyOf   []*Model `json:"anyOf,omitempty"`
	Enum    []any    `json:"enum,omitempty"`
	Default any      `json:"default,omitempty"`

	Histogram   *Histogram     `json:"histogram,omitempty"`
	StringModel *StringModel   `json:"stringModel,omitempty"`
	TidesConfig map[string]any `json:"tidesConfig,omitempty"`

	Relationships []Relationship `json:"relationships,omitempty"`
}

// Relationship is a foreign-key hint attached to an object model.
type Relationship struct {
	Field            string  `json:"field"`
	Type             string  `json:"type"`
	ReferencedEntity string  `json:"referencedEntity"`
	RelationshipType string  `json:"relationshipType"`
	Confidence       float64 `json:"confidence"`
}

// MarshalCanonical returns the canonical JSON form of the model.
//
// The root carries $schema; nested models never do, which the Model
// builders already guarantee. Keys with zero values are omitted.
func (m *Model) MarshalCanonical() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return b, nil
}

// UnmarshalModel parses the canonical JSON form.
func UnmarshalModel(b []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &m, nil
}

// Canonical returns the canonical JSON form as a string, for deduplication
// and comparison. A model that fails to marshal compares unequal to everything.
func (m *Model) Canonical() string {
	b, err := m.MarshalCanonical()
	if err != nil {
		return ""
	}

	return string(b)
}

// DeepCopy returns an independent copy of the model tree.
func (m *Model) DeepCopy() *Model {
	if m == nil {
		return nil
	}

	res := *m

	if m.Properties != nil {
		res.Properties = make(map[string]*Model, len(m.Properties))
		for k, v := range m.Properties {
			res.Properties[k] = v.DeepCopy()
		}
	}

	res.Required = append([]string(nil), m.Required...)
	res.Items = m.Items.DeepCopy()

	res.MinItems = copyPtr(m.MinItems)
	res.MaxItems = copyPtr(m.MaxItems)
	res.Minimum = copyPtr(m.Minimum)
	res.Maximum = copyPtr(m.Maximum)
	res.MultipleOf = copyPtr(m.MultipleOf)
	res.MinLength = copyPtr(m.MinLength)
	res.MaxLength = copyPtr(m.MaxLength)

	if m.AnyOf != nil {
		res.AnyOf = make([]*Model, len(m.AnyOf))
		for i, v := range m.AnyOf {
			res.AnyOf[i] = v.DeepCopy()
		}
	}

	res.Enum = append([]any(nil), m.Enum...)
	res.Histogram = m.Histogram.DeepCopy()
	res.StringModel = m.StringModel.DeepCopy()

	if m.TidesConfig != nil {
		res.TidesConfig = make(map[string]any, len(m.TidesConfig))
		for k, v := range m.TidesConfig {
			res.TidesConfig[k] = v
		}
	}

	res.Relationships = append([]Relationship(nil), m.Relationships...)

	return &res
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p
	return &v
}

// round4 rounds to 4 decimal places, the precision of entropy and range values.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// round2 rounds to 2 decimal places, the precision of frequency percentages.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// shannonEntropy computes -Σ p·log₂(p) over the given counts.
func shannonEntropy(counts []int) float64 {
	var total int
	for _, c := range counts {
		total += c
	}

	if total == 0 {
		return 0
	}

	var h float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}

		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}

	return h
}

// clamp01 clamps v into [0, 1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// sortedKeys returns the map's keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
