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

package model

import (
	"math"

	"github.com/DataFlood/DataFlood/internal/types"
)

// Merge combines two models into one that matches the union of their
// sample populations. Neither input is modified.
//
// Format and pattern retention is order-sensitive: when only one side
// carries a value, that value survives, so merge(a, b) and merge(b, a)
// can differ when the sides disagree.
func Merge(a, b *Model) *Model {
	switch {
	case a == nil:
		return b.DeepCopy()
	case b == nil:
		return a.DeepCopy()
	}

	if a.Type != b.Type && a.Type != "" && b.Type != "" {
		return mergeAsAnyOf(a, b)
	}

	res := &Model{
		Schema: a.Schema,
		Type:   firstNonEmpty(a.Type, b.Type),
		Format: firstNonEmpty(a.Format, b.Format),
	}

	if res.Format == "" {
		res.Pattern = firstNonEmpty(a.Pattern, b.Pattern)
	}

	res.Minimum = mergeBound(a.Minimum, b.Minimum, math.Min)
	res.Maximum = mergeBound(a.Maximum, b.Maximum, math.Max)
	res.MultipleOf = mergeMultipleOf(a.MultipleOf, b.MultipleOf)

	res.MinLength = mergeIntBound(a.MinLength, b.MinLength, minInt)
	res.MaxLength = mergeIntBound(a.MaxLength, b.MaxLength, maxInt)

	res.MinItems = mergeIntBound(a.MinItems, b.MinItems, minInt)
	res.MaxItems = mergeIntBound(a.MaxItems, b.MaxItems, maxInt)
	res.UniqueItems = a.UniqueItems || b.UniqueItems

	res.Histogram = MergeHistograms(a.Histogram, b.Histogram)
	res.StringModel = MergeStringModels(a.StringModel, b.StringModel)

	res.Enum = mergeEnums(a.Enum, b.Enum)
	res.Properties, res.Required = mergeProperties(a, b)

	if a.Items != nil || b.Items != nil {
		res.Items = Merge(a.Items, b.Items)
	}

	res.AnyOf = dedupeAnyOf(append(copyModels(a.AnyOf), copyModels(b.AnyOf)...))

	if res.Default = a.Default; res.Default == nil {
		res.Default = b.Default
	}

	res.TidesConfig = copyMap(a.TidesConfig)
	if res.TidesConfig == nil {
		res.TidesConfig = copyMap(b.TidesConfig)
	}

	res.Relationships = mergeRelationships(a.Relationships, b.Relationships)

	return res
}

// mergeAsAnyOf turns two differently-typed models into a union.
// Existing unions are flattened before deduplication.
func mergeAsAnyOf(a, b *Model) *Model {
	var members []*Model

	for _, m := range []*Model{a, b} {
		if len(m.AnyOf) > 0 {
			members = append(members, copyModels(m.AnyOf)...)
			continue
		}

		c := m.DeepCopy()
		c.Schema = ""
		members = append(members, c)
	}

	return &Model{
		Schema: firstNonEmpty(a.Schema, b.Schema),
		AnyOf:  dedupeAnyOf(members),
	}
}

func mergeProperties(a, b *Model) (map[string]*Model, []string) {
	if a.Properties == nil && b.Properties == nil {
		return nil, nil
	}

	props := make(map[string]*Model, len(a.Properties)+len(b.Properties))

	for name, pa := range a.Properties {
		if pb, ok := b.Properties[name]; ok {
			props[name] = Merge(pa, pb)
			continue
		}
		props[name] = pa.DeepCopy()
	}

	for name, pb := range b.Properties {
		if _, ok := props[name]; !ok {
			props[name] = pb.DeepCopy()
		}
	}

	// required is the intersection, restricted to surviving properties
	inB := make(map[string]struct{}, len(b.Required))
	for _, name := range b.Required {
		inB[name] = struct{}{}
	}

	var required []string
	for _, name := range a.Required {
		if _, ok := inB[name]; !ok {
			continue
		}
		if _, ok := props[name]; !ok {
			continue
		}
		required = append(required, name)
	}

	return props, required
}

func mergeEnums(a, b []any) []any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}

	var res []any
	seen := map[string]struct{}{}

	for _, v := range append(append([]any(nil), a...), b...) {
		key := types.FormatValue(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		res = append(res, v)
	}

	return res
}

// dedupeAnyOf removes members with identical canonical forms, keeping order.
func dedupeAnyOf(members []*Model) []*Model {
	if len(members) == 0 {
		return nil
	}

	var res []*Model
	seen := map[string]struct{}{}

	for _, m := range members {
		key := m.Canonical()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		res = append(res, m)
	}

	return res
}

func mergeRelationships(a, b []Relationship) []Relationship {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}

	byField := map[string]Relationship{}
	for _, r := range append(append([]Relationship(nil), a...), b...) {
		if prev, ok := byField[r.Field]; !ok || r.Confidence > prev.Confidence {
			byField[r.Field] = r
		}
	}

	fields := sortedKeys(byField)
	res := make([]Relationship, len(fields))
	for i, f := range fields {
		res[i] = byField[f]
	}

	return res
}

func mergeBound(a, b *float64, pick func(float64, float64) float64) *float64 {
	switch {
	case a == nil:
		return copyPtr(b)
	case b == nil:
		return copyPtr(a)
	}

	v := pick(*a, *b)
	return &v
}

// minInt and maxInt are the builtins as values for mergeIntBound.
func minInt(a, b int) int { return min(a, b) }
func maxInt(a, b int) int { return max(a, b) }

func mergeIntBound(a, b *int, pick func(int, int) int) *int {
	switch {
	case a == nil:
		return copyPtr(b)
	case b == nil:
		return copyPtr(a)
	}

	v := pick(*a, *b)
	return &v
}

// mergeMultipleOf keeps a common step only when both sides agree on one.
func mergeMultipleOf(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}

	if *a == *b {
		return copyPtr(a)
	}

	if g := gcdFloat(*a, *b); g > 1 {
		return &g
	}

	return nil
}

// gcdFloat computes the GCD of two positive values that are whole numbers.
func gcdFloat(a, b float64) float64 {
	if a != math.Trunc(a) || b != math.Trunc(b) || a <= 0 || b <= 0 {
		return 0
	}

	x, y := int64(a), int64(b)
	for y != 0 {
		x, y = y, x%y
	}

	return float64(x)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}

	return b
}

func copyModels(ms []*Model) []*Model {
	if ms == nil {
		return nil
	}

	res := make([]*Model, len(ms))
	for i, m := range ms {
		res[i] = m.DeepCopy()
	}

	return res
}

// SortedPropertyNames returns an object's property names in ascending order,
// for deterministic iteration during generation.
func (m *Model) SortedPropertyNames() []string {
	return sortedKeys(m.Properties)
}
