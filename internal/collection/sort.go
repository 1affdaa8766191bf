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
	"sort"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// SortDocuments sorts docs in place by a sort specification like
// {age: -1, name: 1}. Missing fields order first on ascending keys.
func SortDocuments(docs []*types.Document, spec *types.Document) error {
	if spec == nil || spec.Len() == 0 {
		return nil
	}

	type sortKey struct {
		field      string
		descending bool
	}

	keys := make([]sortKey, 0, spec.Len())
	for _, field := range spec.Keys() {
		v, _ := spec.Get(field)

		order, ok := numericValue(v)
		if !ok || (order != 1 && order != -1) {
			return lazyerrors.Errorf("invalid sort order for %s", field)
		}

		keys = append(keys, sortKey{field: field, descending: order == -1})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, aErr := types.GetByPath(docs[i], k.field)
			b, bErr := types.GetByPath(docs[j], k.field)

			// missing fields sort before present ones
			switch {
			case aErr != nil && bErr != nil:
				continue
			case aErr != nil:
				return !k.descending
			case bErr != nil:
				return k.descending
			}

			switch types.Compare(a, b) {
			case types.Less:
				return !k.descending
			case types.Greater:
				return k.descending
			}
		}

		return false
	})

	return nil
}
