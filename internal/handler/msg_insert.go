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

	"github.com/DataFlood/DataFlood/internal/types"
)

// msgInsert serves the insert command. Documents train the collection
// model; none of them are persisted.
func (h *Handler) msgInsert(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "insert")
	if err != nil {
		return nil, err
	}

	arr, err := getRequiredParam[*types.Array](document, "documents")
	if err != nil {
		return nil, err
	}

	docs := make([]*types.Document, 0, arr.Len())
	for _, v := range arr.Slice() {
		d, ok := v.(*types.Document)
		if !ok {
			return nil, NewCommandErrorf(ErrTypeMismatch, "documents must contain documents, got %T", v)
		}
		docs = append(docs, d)
	}

	res, err := c.Insert(docs)
	if err != nil {
		return nil, err
	}

	return okDoc("n", int32(res.Count)), nil
}
