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
	"strings"

	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/types"
)

// getRequiredParam returns the value of the given key, failing with
// BadValue when missing and TypeMismatch when of the wrong type.
func getRequiredParam[T any](doc *types.Document, key string) (T, error) {
	var zero T

	v, err := doc.Get(key)
	if err != nil {
		return zero, NewCommandErrorf(ErrBadValue, "required parameter %q is missing", key)
	}

	res, ok := v.(T)
	if !ok {
		return zero, NewCommandErrorf(ErrTypeMismatch, "parameter %q has wrong type %T", key, v)
	}

	return res, nil
}

// getOptionalParam returns the value of the given key, or the fallback
// when the key is missing or of another type.
func getOptionalParam[T any](doc *types.Document, key string, fallback T) T {
	v, err := doc.Get(key)
	if err != nil {
		return fallback
	}

	res, ok := v.(T)
	if !ok {
		return fallback
	}

	return res
}

// getIntParam returns the value of the given key as int64, accepting any
// numeric BSON type; the fallback is used when the key is missing.
func getIntParam(doc *types.Document, key string, fallback int64) (int64, error) {
	v, err := doc.Get(key)
	if err != nil {
		return fallback, nil
	}

	switch v := v.(type) {
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, NewCommandErrorf(ErrTypeMismatch, "parameter %q must be a number, got %T", key, v)
	}
}

// getBoolParam returns the value of the given key as bool, accepting
// numeric truthiness the way drivers send it.
func getBoolParam(doc *types.Document, key string, fallback bool) bool {
	v, err := doc.Get(key)
	if err != nil {
		return fallback
	}

	switch v := v.(type) {
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return fallback
	}
}

// commandParams extracts the target database and collection of a command:
// the command key's value names the collection and $db names the database.
func commandParams(doc *types.Document, cmd string) (string, string, error) {
	coll, err := getRequiredParam[string](doc, cmd)
	if err != nil {
		return "", "", err
	}

	db := getOptionalParam(doc, "$db", "")
	if db == "" {
		return "", "", NewCommandErrorf(ErrInvalidNamespace, "no database name provided for %s", cmd)
	}

	return db, coll, nil
}

// collectionFor resolves the command's target collection.
func (h *Handler) collectionFor(doc *types.Document, cmd string) (*collection.Collection, string, string, error) {
	db, coll, err := commandParams(doc, cmd)
	if err != nil {
		return nil, "", "", err
	}

	c, err := h.registry.Collection(db, coll)
	if err != nil {
		return nil, "", "", err
	}

	return c, db, coll, nil
}

// splitNamespace splits "db.collection" into its parts.
func splitNamespace(ns string) (string, string, error) {
	db, coll, found := strings.Cut(ns, ".")
	if !found || db == "" || coll == "" {
		return "", "", NewCommandErrorf(ErrInvalidNamespace, "invalid namespace %q", ns)
	}

	return db, coll, nil
}

// okDoc builds a reply document ending with ok: 1.
func okDoc(pairs ...any) *types.Document {
	doc := types.MakeDocument(len(pairs)/2 + 1)
	for i := 0; i < len(pairs); i += 2 {
		doc.Set(pairs[i].(string), pairs[i+1])
	}
	doc.Set("ok", float64(1))

	return doc
}

// cursorReply builds the standard {cursor: {...}, ok: 1} reply.
func cursorReply(ns string, id int64, batchField string, docs []*types.Document) *types.Document {
	batch := types.MakeArray(len(docs))
	for _, d := range docs {
		_ = batch.Append(d)
	}

	c := types.MakeDocument(3)
	c.Set("id", id)
	c.Set("ns", ns)
	c.Set(batchField, batch)

	return okDoc("cursor", c)
}
