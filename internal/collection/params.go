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
	"strings"

	"github.com/DataFlood/DataFlood/internal/generator"
	"github.com/DataFlood/DataFlood/internal/types"
)

// GenerationParams are the seed and entropy override lifted from the top
// level of a query. They steer the generator but never the filter.
type GenerationParams struct {
	Seed    *int64
	Entropy *float64
}

// ExtractGenerationParams removes $seed/_seed and $entropy/_entropy from
// the query and returns them alongside the cleaned filter.
func ExtractGenerationParams(query *types.Document) (*types.Document, GenerationParams) {
	var params GenerationParams

	if query == nil {
		return nil, params
	}

	filter := query.DeepCopy()

	for _, key := range []string{"$seed", "_seed"} {
		if v, err := filter.Get(key); err == nil {
			if n, ok := numericValue(v); ok {
				s := int64(n)
				params.Seed = &s
			}
			filter.Remove(key)
		}
	}

	for _, key := range []string{"$entropy", "_entropy"} {
		if v, err := filter.Get(key); err == nil {
			if n, ok := numericValue(v); ok {
				e := n
				params.Entropy = &e
			}
			filter.Remove(key)
		}
	}

	return filter, params
}

// ExtractConstraints derives per-field generation constraints from the
// comparison operators of a filter. Logical operators and operators
// without a generation meaning are matched by the post-filter instead.
func ExtractConstraints(filter *types.Document) generator.Constraints {
	if filter == nil || filter.Len() == 0 {
		return nil
	}

	cons := generator.Constraints{}

	for _, field := range filter.Keys() {
		if strings.HasPrefix(field, "$") {
			continue
		}

		cond, _ := filter.Get(field)

		condDoc, ok := cond.(*types.Document)
		if !ok || !isOperatorDoc(condDoc) {
			// a scalar condition pins the generated value
			cons[field] = generator.Constraint{Equals: cond, HasEquals: true}
			continue
		}

		var c generator.Constraint
		var bound bool

		for _, op := range condDoc.Keys() {
			arg, _ := condDoc.Get(op)

			switch op {
			case "$eq":
				c = generator.Constraint{Equals: arg, HasEquals: true}
				bound = true

			case "$gt", "$gte":
				if n, ok := numericValue(arg); ok {
					v := n
					c.Min = &v
					c.MinExclusive = op == "$gt"
					bound = true
				}

			case "$lt", "$lte":
				if n, ok := numericValue(arg); ok {
					v := n
					c.Max = &v
					c.MaxExclusive = op == "$lt"
					bound = true
				}

			case "$in":
				if arr, ok := arg.(*types.Array); ok {
					c.Enum = arr.Slice()
					bound = true
				}

			case "$nin":
				if arr, ok := arg.(*types.Array); ok {
					c.NotIn = arr.Slice()
					bound = true
				}
			}
		}

		if bound {
			cons[field] = c
		}
	}

	if len(cons) == 0 {
		return nil
	}

	return cons
}
