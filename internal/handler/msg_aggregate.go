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

	"github.com/DataFlood/DataFlood/internal/aggregation"
	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/cursor"
	"github.com/DataFlood/DataFlood/internal/types"
)

// aggregateBaseLimit bounds how many documents are synthesized as
// pipeline input.
const aggregateBaseLimit = 100

// registrySource adapts the collection registry to the pipeline's view of
// other collections.
type registrySource struct {
	registry *collection.Registry
}

func (s *registrySource) Fetch(db, coll string, limit int64) ([]*types.Document, error) {
	c, err := s.registry.Collection(db, coll)
	if err != nil {
		return nil, err
	}

	return c.Find(&collection.FindParams{Limit: limit})
}

func (s *registrySource) Store(db, coll string, docs []*types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	c, err := s.registry.Collection(db, coll)
	if err != nil {
		return err
	}

	_, err = c.Insert(docs)

	return err
}

// msgAggregate serves the aggregate command.
//
// The pipeline input is a synthesized result set; when the first stage is
// a $match its filter also constrains generation, so predicates on the
// base collection behave like a find.
func (h *Handler) msgAggregate(ctx context.Context, conn *ConnInfo, document *types.Document) (*types.Document, error) {
	c, db, coll, err := h.collectionFor(document, "aggregate")
	if err != nil {
		return nil, err
	}

	stages, err := getRequiredParam[*types.Array](document, "pipeline")
	if err != nil {
		return nil, err
	}

	pipeline, err := aggregation.New(db, stages, &registrySource{registry: h.registry})
	if err != nil {
		return nil, NewCommandErrorf(ErrFailedToParse, "%s", err)
	}

	var filter *types.Document
	if stages.Len() > 0 {
		if first, ok := firstStage(stages); ok && first.Keys()[0] == "$match" {
			filter = getOptionalParam[*types.Document](first, "$match", nil)
		}
	}

	base, err := c.Find(&collection.FindParams{Filter: filter, Limit: aggregateBaseLimit})
	if err != nil {
		return nil, err
	}

	docs, err := pipeline.Run(base)
	if err != nil {
		return nil, err
	}

	batchSize := int64(defaultBatchSize)
	if cursorOpts := getOptionalParam[*types.Document](document, "cursor", nil); cursorOpts != nil {
		if batchSize, err = getIntParam(cursorOpts, "batchSize", defaultBatchSize); err != nil {
			return nil, err
		}
	}

	ns := db + "." + coll

	if int64(len(docs)) <= batchSize {
		return cursorReply(ns, 0, "firstBatch", docs), nil
	}

	cur := h.cursors.New(&cursor.NewParams{
		DB:         db,
		Collection: coll,
		ConnID:     conn.ID,
		Buffer:     docs,
	})

	// as with find, the cursor stays open through its last partial batch
	batch, _ := cur.NextBatch(int(batchSize))

	return cursorReply(ns, cur.ID(), "firstBatch", batch), nil
}

func firstStage(stages *types.Array) (*types.Document, bool) {
	v, err := stages.Get(0)
	if err != nil {
		return nil, false
	}

	doc, ok := v.(*types.Document)
	if !ok || len(doc.Keys()) != 1 {
		return nil, false
	}

	return doc, true
}
