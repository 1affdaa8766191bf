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

// Package generator samples documents from statistical models.
//
// All draws of one generator come from a single pseudo-random stream,
// so the output is deterministic given the same seed and model.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/DataFlood/DataFlood/internal/model"
	"github.com/DataFlood/DataFlood/internal/types"
)

// optionalFieldProbability is the inclusion chance of a non-required property.
const optionalFieldProbability = 0.8

// notInRetries bounds regeneration attempts under a NotIn constraint.
const notInRetries = 25

const (
	defaultMinItems = 1
	defaultMaxItems = 5

	defaultMinimum = 0
	defaultMaximum = 100
)

// undefined is the internal "produce nothing" value; object generation
// drops properties that resolve to it.
type undefined struct{}

// Generator samples values from models.
type Generator struct {
	rng             *rand.Rand
	entropyOverride *float64
}

// New returns a generator. A nil seed draws one from the wall clock;
// a nil entropyOverride leaves each string model's own entropy in charge.
func New(seed *int64, entropyOverride *float64) *Generator {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}

	return &Generator{
		rng:             rand.New(rand.NewSource(s)),
		entropyOverride: entropyOverride,
	}
}

// Document samples one document from the model. Non-object roots are
// wrapped under a "value" key so the result is always a document.
func (g *Generator) Document(m *model.Model, constraints Constraints) *types.Document {
	v := g.generate(m, Constraint{}, false, constraints, "")

	if doc, ok := v.(*types.Document); ok {
		return doc
	}

	if _, ok := v.(undefined); ok {
		return types.MakeDocument(0)
	}

	doc := types.MakeDocument(1)
	doc.Set("value", v)

	return doc
}

// ObjectID draws a document id from the generator's own stream, so
// seeded runs produce stable ids.
func (g *Generator) ObjectID() types.ObjectID {
	var id types.ObjectID
	for i := range id {
		id[i] = byte(g.rng.Intn(256))
	}

	return id
}

// Value samples one unconstrained value from the model.
func (g *Generator) Value(m *model.Model) any {
	v := g.generate(m, Constraint{}, false, nil, "")
	if _, ok := v.(undefined); ok {
		return types.Null
	}

	return v
}

func (g *Generator) generate(m *model.Model, con Constraint, hasCon bool, cons Constraints, path string) any {
	if hasCon {
		if con.HasEquals {
			return deepCopyValue(con.Equals)
		}

		if len(con.Enum) > 0 {
			return deepCopyValue(con.Enum[g.rng.Intn(len(con.Enum))])
		}
	}

	if hasCon && len(con.NotIn) > 0 {
		excluded := make(map[string]struct{}, len(con.NotIn))
		for _, v := range con.NotIn {
			excluded[types.FormatValue(v)] = struct{}{}
		}

		inner := con
		inner.NotIn = nil

		v := g.generate(m, inner, true, cons, path)
		for i := 0; i < notInRetries; i++ {
			if _, ok := excluded[types.FormatValue(v)]; !ok {
				break
			}
			v = g.generate(m, inner, true, cons, path)
		}

		return v
	}

	// enum wins, then anyOf, then type
	switch {
	case len(m.Enum) > 0:
		return deepCopyValue(m.Enum[g.rng.Intn(len(m.Enum))])

	case len(m.AnyOf) > 0:
		return g.generate(m.AnyOf[g.rng.Intn(len(m.AnyOf))], con, hasCon, cons, path)
	}

	switch m.Type {
	case "object":
		return g.generateObject(m, cons, path)

	case "array":
		return g.generateArray(m, cons, path)

	case "integer":
		return int64(math.Floor(g.generateNumber(m, con, hasCon)))

	case "number":
		return g.generateNumber(m, con, hasCon)

	case "boolean":
		return g.rng.Intn(2) == 1

	case "string":
		return g.generateString(m)

	case "null":
		return types.Null

	default:
		if m.Default != nil {
			return deepCopyValue(m.Default)
		}
		return undefined{}
	}
}

func (g *Generator) generateObject(m *model.Model, cons Constraints, path string) *types.Document {
	required := make(map[string]struct{}, len(m.Required))
	for _, name := range m.Required {
		required[name] = struct{}{}
	}

	doc := types.MakeDocument(len(m.Properties))

	for _, name := range m.SortedPropertyNames() {
		childCon, hasChildCon := cons.child(path, name)

		if _, isRequired := required[name]; !isRequired && !hasChildCon {
			if g.rng.Float64() >= optionalFieldProbability {
				continue
			}
		}

		childPath := name
		if path != "" {
			childPath = path + "." + name
		}

		v := g.generate(m.Properties[name], childCon, hasChildCon, cons, childPath)
		if _, ok := v.(undefined); ok {
			continue
		}

		doc.Set(name, v)
	}

	return doc
}

func (g *Generator) generateArray(m *model.Model, cons Constraints, path string) *types.Array {
	minItems, maxItems := defaultMinItems, defaultMaxItems
	if m.MinItems != nil {
		minItems = *m.MinItems
	}
	if m.MaxItems != nil {
		maxItems = *m.MaxItems
	}
	if maxItems < minItems {
		maxItems = minItems
	}

	n := minItems
	if maxItems > minItems {
		n += g.rng.Intn(maxItems - minItems + 1)
	}

	arr := types.MakeArray(n)

	for i := 0; i < n; i++ {
		if m.Items == nil {
			_ = arr.Append(types.Null)
			continue
		}

		v := g.generate(m.Items, Constraint{}, false, nil, "")
		if _, ok := v.(undefined); ok {
			v = types.Null
		}

		if m.UniqueItems {
			for retry := 0; retry < notInRetries && arr.Contains(v); retry++ {
				v = g.generate(m.Items, Constraint{}, false, nil, "")
			}
		}

		_ = arr.Append(v)
	}

	return arr
}

func (g *Generator) generateNumber(m *model.Model, con Constraint, hasCon bool) float64 {
	lo, hi := float64(defaultMinimum), float64(defaultMaximum)
	if m.Minimum != nil {
		lo = *m.Minimum
	}
	if m.Maximum != nil {
		hi = *m.Maximum
	}

	var v float64
	if m.Histogram != nil && len(m.Histogram.Bins) > 0 {
		bin := m.Histogram.PickBin(g.rng.Float64() * 100)
		v = bin.RangeStart + g.rng.Float64()*(bin.RangeEnd-bin.RangeStart)
	} else {
		if hi < lo {
			hi = lo
		}
		v = lo + g.rng.Float64()*(hi-lo)
	}

	if hasCon {
		if con.Min != nil {
			cl := *con.Min
			if con.MinExclusive {
				cl = math.Nextafter(cl, math.Inf(1))
				if m.Type == "integer" {
					cl = *con.Min + 1
				}
			}
			if v < cl {
				v = cl
			}
		}

		if con.Max != nil {
			ch := *con.Max
			if con.MaxExclusive {
				ch = math.Nextafter(ch, math.Inf(-1))
				if m.Type == "integer" {
					ch = *con.Max - 1
				}
			}
			if v > ch {
				v = ch
			}
		}
	}

	if m.MultipleOf != nil && *m.MultipleOf > 0 {
		step := *m.MultipleOf
		v = math.Round(v/step) * step

		if m.Minimum != nil && v < *m.Minimum {
			v += step
		}
		if m.Maximum != nil && v > *m.Maximum {
			v -= step
		}
	}

	return v
}

// deepCopyValue guards composite constraint and enum values against aliasing.
func deepCopyValue(v any) any {
	switch v := v.(type) {
	case *types.Document:
		return v.DeepCopy()
	case *types.Array:
		return v.DeepCopy()
	default:
		return v
	}
}
