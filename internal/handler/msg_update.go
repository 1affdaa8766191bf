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

// msgUpdate serves the update command.
func (h *Handler) msgUpdate(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "update")
	if err != nil {
		return nil, err
	}

	arr, err := getRequiredParam[*types.Array](document, "updates")
	if err != nil {
		return nil, err
	}

	var n, nModified int32
	upserted := types.MakeArray(0)

	for i, v := range arr.Slice() {
		spec, ok := v.(*types.Document)
		if !ok {
			return nil, NewCommandErrorf(ErrTypeMismatch, "updates must contain documents, got %T", v)
		}

		q := getOptionalParam[*types.Document](spec, "q", nil)

		u, err := getRequiredParam[*types.Document](spec, "u")
		if err != nil {
			return nil, err
		}

		multi := getBoolParam(spec, "multi", false)
		upsert := getBoolParam(spec, "upsert", false)

		res, err := c.Update(q, u, multi, upsert)
		if err != nil {
			return nil, err
		}

		n += int32(res.Matched)
		nModified += int32(res.Modified)

		if res.UpsertedID != nil {
			n++

			entry := types.MakeDocument(2)
			entry.Set("index", int32(i))
			entry.Set("_id", res.UpsertedID)
			_ = upserted.Append(entry)
		}
	}

	if upserted.Len() > 0 {
		return okDoc("n", n, "nModified", nModified, "upserted", upserted), nil
	}

	return okDoc("n", n, "nModified", nModified), nil
}
