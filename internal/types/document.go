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

import (
	"fmt"
)

// field represents a single document field in the decoded form.
type field struct {
	value any
	key   string
}

// Document represents a BSON document: an ordered set of (key, value) pairs.
//
// Duplicate keys are not allowed.
type Document struct {
	fields []field
}

// MakeDocument creates an empty document with the given capacity.
func MakeDocument(capacity int) *Document {
	return &Document{
		fields: make([]field, 0, capacity),
	}
}

// NewDocument creates a document from the given pairs of keys and values.
func NewDocument(pairs ...any) (*Document, error) {
	l := len(pairs)
	if l%2 != 0 {
		return nil, fmt.Errorf("types.NewDocument: invalid number of arguments: %d", l)
	}

	doc := MakeDocument(l / 2)

	for i := 0; i < l; i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("types.NewDocument: invalid key type: %T", pairs[i])
		}

		if err := doc.add(key, pairs[i+1]); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// Len returns the number of fields.
func (d *Document) Len() int {
	return len(d.fields)
}

// Keys returns document keys in field order.
//
// It returns nil for an empty document.
func (d *Document) Keys() []string {
	if len(d.fields) == 0 {
		return nil
	}

	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.key
	}

	return keys
}

// Values returns document values in field order.
//
// It returns nil for an empty document.
func (d *Document) Values() []any {
	if len(d.fields) == 0 {
		return nil
	}

	values := make([]any, len(d.fields))
	for i, f := range d.fields {
		values[i] = f.value
	}

	return values
}

// Map returns an unordered map of all fields.
func (d *Document) Map() map[string]any {
	m := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		m[f.key] = f.value
	}

	return m
}

// Command returns the first document's key lowercased.
// That is often used as a command name.
//
// It returns an empty string if the document is empty.
func (d *Document) Command() string {
	if len(d.fields) == 0 {
		return ""
	}

	return d.fields[0].key
}

// Has reports whether the document has a field with the given key.
func (d *Document) Has(key string) bool {
	for _, f := range d.fields {
		if f.key == key {
			return true
		}
	}

	return false
}

// Get returns the value of the field with the given key.
func (d *Document) Get(key string) (any, error) {
	for _, f := range d.fields {
		if f.key == key {
			return f.value, nil
		}
	}

	return nil, fmt.Errorf("types.Document.Get: key not found: %q", key)
}

// add appends a new field; the key must not be present already.
func (d *Document) add(key string, value any) error {
	if d.Has(key) {
		return fmt.Errorf("types.Document.add: duplicate key: %q", key)
	}

	if err := validateValue(value); err != nil {
		return fmt.Errorf("types.Document.add: %q: %w", key, err)
	}

	d.fields = append(d.fields, field{key: key, value: value})

	return nil
}

// Set sets the value for the given key, replacing it if the key is already present.
func (d *Document) Set(key string, value any) {
	if err := validateValue(value); err != nil {
		panic(fmt.Sprintf("types.Document.Set: %q: %v", key, err))
	}

	for i, f := range d.fields {
		if f.key == key {
			d.fields[i].value = value
			return
		}
	}

	d.fields = append(d.fields, field{key: key, value: value})
}

// Remove removes the field with the given key; it is a no-op if the key is absent.
func (d *Document) Remove(key string) {
	for i, f := range d.fields {
		if f.key == key {
			d.fields = append(d.fields[:i], d.fields[i+1:]...)
			return
		}
	}
}

// DeepCopy returns a deep copy of the document.
func (d *Document) DeepCopy() *Document {
	res := MakeDocument(len(d.fields))
	for _, f := range d.fields {
		res.fields = append(res.fields, field{key: f.key, value: deepCopy(f.value)})
	}

	return res
}
