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

package types

import "fmt"

// Array represents a BSON array: an ordered sequence of values.
type Array struct {
	elements []any
}

// MakeArray creates an empty array with the given capacity.
func MakeArray(capacity int) *Array {
	return &Array{
		elements: make([]any, 0, capacity),
	}
}

// NewArray creates an array from the given values.
func NewArray(values ...any) (*Array, error) {
	arr := MakeArray(len(values))
	for _, v := range values {
		if err := arr.Append(v); err != nil {
			return nil, err
		}
	}

	return arr, nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.elements)
}

// Get returns the element at the given index.
func (a *Array) Get(index int) (any, error) {
	if index < 0 || index >= len(a.elements) {
		return nil, fmt.Errorf("types.Array.Get: index %d is out of bounds [0-%d)", index, len(a.elements))
	}

	return a.elements[index], nil
}

// Set sets the element at the given index.
func (a *Array) Set(index int, value any) error {
	if index < 0 || index >= len(a.elements) {
		return fmt.Errorf("types.Array.Set: index %d is out of bounds [0-%d)", index, len(a.elements))
	}

	if err := validateValue(value); err != nil {
		return fmt.Errorf("types.Array.Set: %w", err)
	}

	a.elements[index] = value

	return nil
}

// Append appends the given values to the array.
func (a *Array) Append(values ...any) error {
	for _, v := range values {
		if err := validateValue(v); err != nil {
			return fmt.Errorf("types.Array.Append: %w", err)
		}

		a.elements = append(a.elements, v)
	}

	return nil
}

// Remove removes the element at the given index; it panics on out-of-bounds.
func (a *Array) Remove(index int) {
	if index < 0 || index >= len(a.elements) {
		panic(fmt.Sprintf("types.Array.Remove: index %d is out of bounds [0-%d)", index, len(a.elements)))
	}

	a.elements = append(a.elements[:index], a.elements[index+1:]...)
}

// Slice returns all elements as a Go slice.
//
// The returned slice aliases the array's storage.
func (a *Array) Slice() []any {
	return a.elements
}

// Contains reports whether the array contains a value equal to the given one.
func (a *Array) Contains(value any) bool {
	for _, e := range a.elements {
		if Compare(e, value) == Equal {
			return true
		}
	}

	return false
}

// DeepCopy returns a deep copy of the array.
func (a *Array) DeepCopy() *Array {
	res := MakeArray(len(a.elements))
	for _, e := range a.elements {
		res.elements = append(res.elements, deepCopy(e))
	}

	return res
}
