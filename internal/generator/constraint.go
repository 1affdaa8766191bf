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

package generator

// Constraint guides generation of a single field. Zero value means
// unconstrained.
type Constraint struct {
	// Equals pins the field to one value when HasEquals is set.
	Equals    any
	HasEquals bool

	// Min and Max bound numeric draws; the exclusive flags mirror $gt/$lt.
	Min          *float64
	Max          *float64
	MinExclusive bool
	MaxExclusive bool

	// Enum restricts the field to the listed values.
	Enum []any

	// NotIn rejects the listed values.
	NotIn []any
}

// Constraints maps dotted field paths to their guidance.
type Constraints map[string]Constraint

// child returns the constraint for a nested field.
func (c Constraints) child(prefix, name string) (Constraint, bool) {
	if c == nil {
		return Constraint{}, false
	}

	path := name
	if prefix != "" {
		path = prefix + "." + name
	}

	con, ok := c[path]
	return con, ok
}
