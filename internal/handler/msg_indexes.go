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
	"strconv"
	"strings"

	"github.com/DataFlood/DataFlood/internal/types"
)

// msgListIndexes serves the listIndexes command.
func (h *Handler) msgListIndexes(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, db, coll, err := h.collectionFor(document, "listIndexes")
	if err != nil {
		return nil, err
	}

	indexes := c.ListIndexes()

	docs := make([]*types.Document, 0, len(indexes))
	for _, idx := range indexes {
		d := types.MakeDocument(4)
		d.Set("v", int32(2))
		d.Set("key", idx.Key)
		d.Set("name", idx.Name)
		if idx.Unique && idx.Name != "_id_" {
			d.Set("unique", true)
		}

		docs = append(docs, d)
	}

	return cursorReply(db+"."+coll, 0, "firstBatch", docs), nil
}

// msgCreateIndexes serves the createIndexes command. Indexes are metadata
// only; nothing is built.
func (h *Handler) msgCreateIndexes(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "createIndexes")
	if err != nil {
		return nil, err
	}

	arr, err := getRequiredParam[*types.Array](document, "indexes")
	if err != nil {
		return nil, err
	}

	before := int32(len(c.ListIndexes()))

	for _, v := range arr.Slice() {
		spec, ok := v.(*types.Document)
		if !ok {
			return nil, NewCommandErrorf(ErrTypeMismatch, "indexes must contain documents, got %T", v)
		}

		key, err := getRequiredParam[*types.Document](spec, "key")
		if err != nil {
			return nil, err
		}
		if key.Len() == 0 {
			return nil, NewCommandErrorf(ErrInvalidIndexSpecificationOption, "index key must not be empty")
		}

		name := getOptionalParam(spec, "name", "")
		if name == "" {
			name = defaultIndexName(key)
		}

		unique := getBoolParam(spec, "unique", false)

		if err := c.CreateIndex(name, key, unique); err != nil {
			return nil, NewCommandErrorf(ErrInvalidIndexSpecificationOption, "%s", err)
		}
	}

	return okDoc(
		"numIndexesBefore", before,
		"numIndexesAfter", int32(len(c.ListIndexes())),
		"createdCollectionAutomatically", before == 1,
	), nil
}

// defaultIndexName derives the conventional name key_1_other_-1.
func defaultIndexName(key *types.Document) string {
	parts := make([]string, 0, key.Len()*2)

	values := key.Values()
	for i, field := range key.Keys() {
		order := "1"
		switch v := values[i].(type) {
		case int32:
			order = strconv.Itoa(int(v))
		case int64:
			order = strconv.FormatInt(v, 10)
		case float64:
			order = strconv.Itoa(int(v))
		case string:
			order = v
		}

		parts = append(parts, field, order)
	}

	return strings.Join(parts, "_")
}

// msgDropIndexes serves the dropIndexes command.
func (h *Handler) msgDropIndexes(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "dropIndexes")
	if err != nil {
		return nil, err
	}

	before := int32(len(c.ListIndexes()))

	index, err := document.Get("index")
	if err != nil {
		return nil, NewCommandErrorf(ErrBadValue, "required parameter \"index\" is missing")
	}

	switch index := index.(type) {
	case string:
		if index == "*" {
			for _, idx := range c.ListIndexes() {
				if idx.Name == "_id_" {
					continue
				}
				if err := c.DropIndex(idx.Name); err != nil {
					return nil, err
				}
			}

			return okDoc("nIndexesWas", before, "msg", "non-_id indexes dropped for collection"), nil
		}

		if err := c.DropIndex(index); err != nil {
			return nil, NewCommandErrorf(ErrIndexNotFound, "%s", err)
		}

	case *types.Array:
		for _, v := range index.Slice() {
			name, ok := v.(string)
			if !ok {
				return nil, NewCommandErrorf(ErrTypeMismatch, "index names must be strings, got %T", v)
			}

			if err := c.DropIndex(name); err != nil {
				return nil, NewCommandErrorf(ErrIndexNotFound, "%s", err)
			}
		}

	default:
		return nil, NewCommandErrorf(ErrTypeMismatch, "index must be a string or an array, got %T", index)
	}

	return okDoc("nIndexesWas", before), nil
}
