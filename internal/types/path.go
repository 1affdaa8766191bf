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
	"strconv"
	"strings"
)

// GetByPath returns the value addressed by the dotted path.
//
// Path elements address document keys; a numeric element addresses an array index.
func GetByPath(value any, path string) (any, error) {
	if path == "" {
		return nil, fmt.Errorf("types.GetByPath: empty path")
	}

	for _, p := range strings.Split(path, ".") {
		switch v := value.(type) {
		case *Document:
			var err error
			if value, err = v.Get(p); err != nil {
				return nil, err
			}

		case *Array:
			i, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("types.GetByPath: %q is not an array index", p)
			}

			if value, err = v.Get(i); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("types.GetByPath: %q is inside a non-composite value", p)
		}
	}

	return value, nil
}

// HasByPath reports whether the dotted path resolves to a value.
func HasByPath(value any, path string) bool {
	_, err := GetByPath(value, path)
	return err == nil
}

// SetByPath sets the value at the dotted path, creating intermediate documents as needed.
func SetByPath(doc *Document, path string, value any) error {
	parts := strings.Split(path, ".")

	for i, p := range parts {
		if i == len(parts)-1 {
			doc.Set(p, value)
			return nil
		}

		next, err := doc.Get(p)
		if err != nil {
			sub := MakeDocument(1)
			doc.Set(p, sub)
			doc = sub
			continue
		}

		sub, ok := next.(*Document)
		if !ok {
			return fmt.Errorf("types.SetByPath: cannot descend into %q (%T)", p, next)
		}

		doc = sub
	}

	return nil
}

// RemoveByPath removes the value at the dotted path; missing paths are ignored.
func RemoveByPath(doc *Document, path string) {
	parts := strings.Split(path, ".")

	for i, p := range parts {
		if i == len(parts)-1 {
			doc.Remove(p)
			return
		}

		next, err := doc.Get(p)
		if err != nil {
			return
		}

		sub, ok := next.(*Document)
		if !ok {
			return
		}

		doc = sub
	}
}
