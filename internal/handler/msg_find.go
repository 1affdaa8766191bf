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
	"github.com/DataFlood/DataFlood/internal/cursor"
	"github.com/DataFlood/DataFlood/internal/types"
)

// defaultBatchSize is the first-batch size when the client does not set one.
const defaultBatchSize = 101

// msgFind serves the find command.
func (h *Handler) msgFind(ctx context.Context, conn *ConnInfo, document *types.Document) (*types.Document, error) {
	c, db, coll, err := h.collectionFor(document, "find")
	if err != nil {
		return nil, err
	}

	skip, err := getIntParam(document, "skip", 0)
	if err != nil {
		return nil, err
	}

	limit, err := getIntParam(document, "limit", 0)
	if err != nil {
		return nil, err
	}

	batchSize, err := getIntParam(document, "batchSize", defaultBatchSize)
	if err != nil {
		return nil, err
	}
	if batchSize < 0 {
		return nil, NewCommandErrorf(ErrBadValue, "batchSize must be non-negative")
	}

	singleBatch := getBoolParam(document, "singleBatch", false)

	params := &collection.FindParams{
		Filter:     getOptionalParam[*types.Document](document, "filter", nil),
		Sort:       getOptionalParam[*types.Document](document, "sort", nil),
		Projection: getOptionalParam[*types.Document](document, "projection", nil),
		Skip:       skip,
		Limit:      limit,
	}

	docs, err := c.Find(params)
	if err != nil {
		return nil, err
	}

	ns := db + "." + coll

	if singleBatch || int64(len(docs)) <= batchSize {
		return cursorReply(ns, 0, "firstBatch", docs), nil
	}

	cur := h.cursors.New(&cursor.NewParams{
		DB:         db,
		Collection: coll,
		ConnID:     conn.ID,
		Buffer:     docs,
	})

	// the cursor survives its last partial batch; it reports id 0 only
	// once a getMore drains nothing
	batch, _ := cur.NextBatch(int(batchSize))

	return cursorReply(ns, cur.ID(), "firstBatch", batch), nil
}
