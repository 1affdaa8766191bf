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

// msgGetMore serves the getMore command.
func (h *Handler) msgGetMore(ctx context.Context, document *types.Document) (*types.Document, error) {
	id, err := getRequiredParam[int64](document, "getMore")
	if err != nil {
		return nil, err
	}

	coll, err := getRequiredParam[string](document, "collection")
	if err != nil {
		return nil, err
	}

	db := getOptionalParam(document, "$db", "")

	batchSize, err := getIntParam(document, "batchSize", defaultBatchSize)
	if err != nil {
		return nil, err
	}

	cur := h.cursors.Get(id)
	if cur == nil {
		return nil, NewCommandErrorf(ErrCursorNotFound, "cursor id %d not found", id)
	}

	if cur.DB() != db || cur.Collection() != coll {
		return nil, NewCommandErrorf(
			ErrBadValue,
			"cursor %d belongs to namespace %s, not %s.%s", id, cur.Namespace(), db, coll,
		)
	}

	batch, _ := cur.NextBatch(int(batchSize))

	// a non-empty batch keeps the cursor open even if it drained the
	// buffer; the empty batch after it closes the cursor
	cursorID := id
	if len(batch) == 0 {
		h.cursors.Close(id)
		cursorID = 0
	}

	return cursorReply(cur.Namespace(), cursorID, "nextBatch", batch), nil
}

// msgKillCursors serves the killCursors command.
func (h *Handler) msgKillCursors(ctx context.Context, document *types.Document) (*types.Document, error) {
	if _, err := getRequiredParam[string](document, "killCursors"); err != nil {
		return nil, err
	}

	ids, err := getRequiredParam[*types.Array](document, "cursors")
	if err != nil {
		return nil, err
	}

	killed := types.MakeArray(ids.Len())
	notFound := types.MakeArray(0)

	for _, v := range ids.Slice() {
		id, ok := v.(int64)
		if !ok {
			return nil, NewCommandErrorf(ErrTypeMismatch, "cursor ids must be long, got %T", v)
		}

		if h.cursors.Close(id) {
			_ = killed.Append(id)
		} else {
			_ = notFound.Append(id)
		}
	}

	return okDoc(
		"cursorsKilled", killed,
		"cursorsNotFound", notFound,
		"cursorsAlive", types.MakeArray(0),
		"cursorsUnknown", types.MakeArray(0),
	), nil
}
