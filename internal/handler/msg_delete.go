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

// msgDelete serves the delete command.
func (h *Handler) msgDelete(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "delete")
	if err != nil {
		return nil, err
	}

	arr, err := getRequiredParam[*types.Array](document, "deletes")
	if err != nil {
		return nil, err
	}

	var n int32

	for _, v := range arr.Slice() {
		spec, ok := v.(*types.Document)
		if !ok {
			return nil, NewCommandErrorf(ErrTypeMismatch, "deletes must contain documents, got %T", v)
		}

		q := getOptionalParam[*types.Document](spec, "q", nil)

		limit, err := getIntParam(spec, "limit", 0)
		if err != nil {
			return nil, err
		}
		if limit != 0 && limit != 1 {
			return nil, NewCommandErrorf(ErrFailedToParse, "delete limit must be 0 or 1, got %d", limit)
		}

		deleted, err := c.Delete(q, limit)
		if err != nil {
			return nil, err
		}

		n += int32(deleted)
	}

	return okDoc("n", n), nil
}
