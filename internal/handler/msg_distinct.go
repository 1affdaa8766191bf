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

package handler

import (
	"context"

	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/types"
)

// msgDistinct serves the distinct command over a synthesized result set.
func (h *Handler) msgDistinct(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "distinct")
	if err != nil {
		return nil, err
	}

	key, err := getRequiredParam[string](document, "key")
	if err != nil {
		return nil, err
	}

	query := getOptionalParam[*types.Document](document, "query", nil)

	docs, err := c.Find(&collection.FindParams{Filter: query})
	if err != nil {
		return nil, err
	}

	values := types.MakeArray(0)
	seen := map[string]struct{}{}

	for _, doc := range docs {
		v, err := types.GetByPath(doc, key)
		if err != nil {
			continue
		}

		// array fields contribute their elements, like a multikey index
		elems := []any{v}
		if arr, ok := v.(*types.Array); ok {
			elems = arr.Slice()
		}

		for _, e := range elems {
			fp := types.FormatValue(e)
			if _, ok := seen[fp]; ok {
				continue
			}
			seen[fp] = struct{}{}

			if err := values.Append(e); err != nil {
				return nil, err
			}
		}
	}

	return okDoc("values", values), nil
}
