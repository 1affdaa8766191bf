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

// msgFindAndModify serves the findAndModify command.
func (h *Handler) msgFindAndModify(ctx context.Context, document *types.Document) (*types.Document, error) {
	cmd := "findAndModify"
	if !document.Has(cmd) {
		cmd = "findandmodify"
	}

	c, _, _, err := h.collectionFor(document, cmd)
	if err != nil {
		return nil, err
	}

	query := getOptionalParam[*types.Document](document, "query", nil)
	sort := getOptionalParam[*types.Document](document, "sort", nil)
	remove := getBoolParam(document, "remove", false)
	returnNew := getBoolParam(document, "new", false)
	upsert := getBoolParam(document, "upsert", false)
	fields := getOptionalParam[*types.Document](document, "fields", nil)

	update := getOptionalParam[*types.Document](document, "update", nil)
	if update == nil && !remove {
		return nil, NewCommandErrorf(ErrFailedToParse, "either an update or remove=true must be specified")
	}
	if update != nil && remove {
		return nil, NewCommandErrorf(ErrFailedToParse, "cannot specify both an update and remove=true")
	}

	docs, err := c.Find(&collection.FindParams{Filter: query, Sort: sort, Limit: 1})
	if err != nil {
		return nil, err
	}

	lastError := types.MakeDocument(2)

	if len(docs) == 0 {
		if !upsert || remove {
			lastError.Set("n", int32(0))
			if !remove {
				lastError.Set("updatedExisting", false)
			}

			return okDoc("lastErrorObject", lastError, "value", types.Null), nil
		}

		res, err := c.Update(query, update, false, true)
		if err != nil {
			return nil, err
		}

		lastError.Set("n", int32(1))
		lastError.Set("updatedExisting", false)
		if res.UpsertedID != nil {
			lastError.Set("upserted", res.UpsertedID)
		}

		value := any(types.Null)
		if returnNew {
			upserted := types.MakeDocument(1)
			if _, err := collection.ApplyUpdate(upserted, update); err != nil {
				return nil, err
			}
			if res.UpsertedID != nil && !upserted.Has("_id") {
				upserted.Set("_id", res.UpsertedID)
			}
			value = upserted
		}

		return okDoc("lastErrorObject", lastError, "value", value), nil
	}

	found := docs[0]

	if remove {
		if _, err := c.Delete(query, 1); err != nil {
			return nil, err
		}

		lastError.Set("n", int32(1))

		return okDoc("lastErrorObject", lastError, "value", h.projectValue(found, fields)), nil
	}

	before := found.DeepCopy()

	if _, err := collection.ApplyUpdate(found, update); err != nil {
		return nil, err
	}

	lastError.Set("n", int32(1))
	lastError.Set("updatedExisting", true)

	value := before
	if returnNew {
		value = found
	}

	return okDoc("lastErrorObject", lastError, "value", h.projectValue(value, fields)), nil
}

func (h *Handler) projectValue(doc *types.Document, fields *types.Document) any {
	if fields == nil || fields.Len() == 0 {
		return doc
	}

	projected, err := collection.Project(doc, fields)
	if err != nil {
		return doc
	}

	return projected
}
