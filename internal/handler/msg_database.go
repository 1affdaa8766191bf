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
	"slices"

	"github.com/DataFlood/DataFlood/internal/types"
)

// msgListDatabases serves the listDatabases command.
func (h *Handler) msgListDatabases(ctx context.Context, document *types.Document) (*types.Document, error) {
	names, err := h.registry.ListDatabases()
	if err != nil {
		return nil, err
	}

	nameOnly := getBoolParam(document, "nameOnly", false)

	databases := types.MakeArray(len(names))
	var totalSize int64

	for _, name := range names {
		db := types.MakeDocument(3)
		db.Set("name", name)

		if !nameOnly {
			// models are small; report a nominal size per collection
			colls, err := h.registry.ListCollections(name)
			if err != nil {
				return nil, err
			}

			size := int64(len(colls)) * 4096
			totalSize += size

			db.Set("sizeOnDisk", size)
			db.Set("empty", len(colls) == 0)
		}

		if err := databases.Append(db); err != nil {
			return nil, err
		}
	}

	if nameOnly {
		return okDoc("databases", databases), nil
	}

	return okDoc("databases", databases, "totalSize", totalSize, "totalSizeMb", totalSize/1024/1024), nil
}

// msgListCollections serves the listCollections command.
func (h *Handler) msgListCollections(ctx context.Context, document *types.Document) (*types.Document, error) {
	db := getOptionalParam(document, "$db", "")
	if db == "" {
		return nil, NewCommandErrorf(ErrInvalidNamespace, "no database name provided")
	}

	names, err := h.registry.ListCollections(db)
	if err != nil {
		return nil, err
	}

	docs := make([]*types.Document, 0, len(names))
	for _, name := range names {
		info := types.MakeDocument(2)
		info.Set("readOnly", false)

		idIndex := types.MakeDocument(3)
		idKey := types.MakeDocument(1)
		idKey.Set("_id", int32(1))
		idIndex.Set("v", int32(2))
		idIndex.Set("key", idKey)
		idIndex.Set("name", "_id_")

		d := types.MakeDocument(5)
		d.Set("name", name)
		d.Set("type", "collection")
		d.Set("options", types.MakeDocument(0))
		d.Set("info", info)
		d.Set("idIndex", idIndex)

		docs = append(docs, d)
	}

	return cursorReply(db+".$cmd.listCollections", 0, "firstBatch", docs), nil
}

// msgCreate serves the create command. Creation is implicit everywhere
// else; this only opens the collection so it exists in the registry.
func (h *Handler) msgCreate(ctx context.Context, document *types.Document) (*types.Document, error) {
	if _, _, _, err := h.collectionFor(document, "create"); err != nil {
		return nil, err
	}

	return okDoc(), nil
}

// msgDrop serves the drop command.
func (h *Handler) msgDrop(ctx context.Context, document *types.Document) (*types.Document, error) {
	db, coll, err := commandParams(document, "drop")
	if err != nil {
		return nil, err
	}

	existing, err := h.registry.ListCollections(db)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(existing, coll) {
		return nil, NewCommandErrorf(ErrNamespaceNotFound, "ns not found")
	}

	c, err := h.registry.Collection(db, coll)
	if err != nil {
		return nil, err
	}
	nIndexes := int32(len(c.ListIndexes()))

	if err := h.registry.DropCollection(db, coll); err != nil {
		return nil, err
	}

	return okDoc("nIndexesWas", nIndexes, "ns", db+"."+coll), nil
}

// msgDropDatabase serves the dropDatabase command.
func (h *Handler) msgDropDatabase(ctx context.Context, document *types.Document) (*types.Document, error) {
	db := getOptionalParam(document, "$db", "")
	if db == "" {
		return nil, NewCommandErrorf(ErrInvalidNamespace, "no database name provided")
	}

	if err := h.registry.DropDatabase(db); err != nil {
		return nil, err
	}

	return okDoc("dropped", db), nil
}

// msgDBStats serves the dbStats command.
func (h *Handler) msgDBStats(ctx context.Context, document *types.Document) (*types.Document, error) {
	db := getOptionalParam(document, "$db", "")
	if db == "" {
		return nil, NewCommandErrorf(ErrInvalidNamespace, "no database name provided")
	}

	colls, err := h.registry.ListCollections(db)
	if err != nil {
		return nil, err
	}

	var objects, indexes int64
	for _, name := range colls {
		c, err := h.registry.Collection(db, name)
		if err != nil {
			return nil, err
		}

		objects += c.Stats().DocumentCount
		indexes += int64(len(c.ListIndexes()))
	}

	return okDoc(
		"db", db,
		"collections", int32(len(colls)),
		"views", int32(0),
		"objects", objects,
		"indexes", indexes,
		"dataSize", float64(objects*512),
		"storageSize", float64(len(colls)*4096),
		"totalSize", float64(len(colls)*4096),
		"scaleFactor", float64(1),
	), nil
}

// msgCollStats serves the collStats command.
func (h *Handler) msgCollStats(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, db, coll, err := h.collectionFor(document, "collStats")
	if err != nil {
		return nil, err
	}

	stats := c.Stats()

	return okDoc(
		"ns", db+"."+coll,
		"count", int32(stats.DocumentCount),
		"size", float64(stats.DocumentCount*512),
		"storageSize", float64(4096),
		"nindexes", int32(len(c.ListIndexes())),
		"totalIndexSize", float64(0),
		"scaleFactor", int32(1),
		"capped", false,
	), nil
}
