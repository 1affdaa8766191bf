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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/cursor"
	"github.com/DataFlood/DataFlood/internal/storage"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/must"
	"github.com/DataFlood/DataFlood/internal/wire"
)

func doc(pairs ...any) *types.Document {
	if len(pairs)%2 != 0 {
		panic("doc: odd number of arguments")
	}

	d := types.MakeDocument(len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1])
	}

	return d
}

func arr(values ...any) *types.Array {
	a := types.MakeArray(len(values))
	must.NoError(a.Append(values...))

	return a
}

func testHandler(t *testing.T) *Handler {
	t.Helper()

	backend, err := storage.New(t.TempDir(), 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	return New(&NewOpts{
		L:        zaptest.NewLogger(t),
		Registry: collection.NewRegistry(backend, nil, zaptest.NewLogger(t)),
		Cursors:  cursor.NewRegistry(0, 0, zaptest.NewLogger(t)),
	})
}

func testConn() *ConnInfo {
	return &ConnInfo{ID: "conn-1", PeerAddr: "127.0.0.1:54321"}
}

// call sends a command document through the OP_MSG path and returns the
// reply document.
func call(t *testing.T, h *Handler, command *types.Document) *types.Document {
	t.Helper()

	msg, err := wire.NewOpMsg(command)
	require.NoError(t, err)

	reply, err := h.HandleOpMsg(context.Background(), testConn(), msg)
	require.NoError(t, err)

	res, err := reply.Document()
	require.NoError(t, err)

	return res
}

func requireOK(t *testing.T, res *types.Document) {
	t.Helper()

	ok, err := res.Get("ok")
	require.NoError(t, err)
	require.Equal(t, float64(1), ok, "reply: %s", types.FormatValue(res))
}

// seed trains a model in db.coll by inserting user documents.
func seed(t *testing.T, h *Handler, db, coll string) {
	t.Helper()

	docs := make([]any, 0, collection.DefaultTrainThreshold)
	for i := 0; i < collection.DefaultTrainThreshold; i++ {
		docs = append(docs, doc(
			"name", fmt.Sprintf("user-%d", i),
			"age", int32(20+i),
		))
	}

	res := call(t, h, doc("insert", coll, "$db", db, "documents", arr(docs...)))
	requireOK(t, res)
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	h := testHandler(t)

	t.Run("OpQuery", func(t *testing.T) {
		t.Parallel()

		reply, err := h.HandleOpQuery(context.Background(), testConn(), &wire.OpQuery{
			FullCollectionName: "admin.$cmd",
			NumberToReturn:     -1,
			Query:              doc("isMaster", int32(1)),
		})
		require.NoError(t, err)
		require.Len(t, reply.Documents, 1)

		res := reply.Documents[0]
		requireOK(t, res)

		for _, field := range []string{"maxBsonObjectSize", "maxMessageSizeBytes", "minWireVersion", "maxWireVersion"} {
			v, err := res.Get(field)
			require.NoError(t, err, "field %s", field)
			_, isInt32 := v.(int32)
			assert.True(t, isInt32, "field %s must be int32", field)
		}

		isMaster, err := res.Get("ismaster")
		require.NoError(t, err)
		assert.Equal(t, true, isMaster)
	})

	t.Run("OpMsgHello", func(t *testing.T) {
		t.Parallel()

		res := call(t, h, doc("hello", int32(1), "$db", "admin"))
		requireOK(t, res)

		v, err := res.Get("isWritablePrimary")
		require.NoError(t, err)
		assert.Equal(t, true, v)
	})
}

func TestPing(t *testing.T) {
	t.Parallel()

	res := call(t, testHandler(t), doc("ping", int32(1), "$db", "admin"))
	requireOK(t, res)
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	res := call(t, testHandler(t), doc("frobnicate", int32(1), "$db", "test"))

	ok, _ := res.Get("ok")
	code, _ := res.Get("code")
	codeName, _ := res.Get("codeName")

	assert.Equal(t, float64(0), ok)
	assert.Equal(t, int32(ErrCommandNotFound), code)
	assert.Equal(t, "CommandNotFound", codeName)
}

func TestInsertAndFind(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"find", "users",
		"$db", "test",
		"filter", doc("age", doc("$gte", int32(25))),
		"limit", int64(10),
	))
	requireOK(t, res)

	c, err := res.Get("cursor")
	require.NoError(t, err)
	cursorDoc := c.(*types.Document)

	id, _ := cursorDoc.Get("id")
	assert.Equal(t, int64(0), id, "a small result fits in the first batch")

	batch, err := cursorDoc.Get("firstBatch")
	require.NoError(t, err)

	docs := batch.(*types.Array)
	require.NotZero(t, docs.Len())

	for _, v := range docs.Slice() {
		d := v.(*types.Document)
		assert.True(t, d.Has("_id"))

		age, err := d.Get("age")
		require.NoError(t, err)

		switch age := age.(type) {
		case int32:
			assert.GreaterOrEqual(t, age, int32(25))
		case int64:
			assert.GreaterOrEqual(t, age, int64(25))
		case float64:
			assert.GreaterOrEqual(t, age, float64(25))
		default:
			t.Fatalf("unexpected age type %T", age)
		}
	}
}

func TestFindGetMoreExhaustion(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"find", "users",
		"$db", "test",
		"limit", int64(237),
		"batchSize", int64(50),
	))
	requireOK(t, res)

	cursorDoc := mustGet[*types.Document](t, res, "cursor")
	id := mustGet[int64](t, cursorDoc, "id")
	require.NotZero(t, id)

	first := mustGet[*types.Array](t, cursorDoc, "firstBatch")
	require.Equal(t, 50, first.Len())

	total := first.Len()

	// the partial fourth batch still carries the live cursor id
	for _, want := range []int{50, 50, 50, 37} {
		res = call(t, h, doc(
			"getMore", id,
			"collection", "users",
			"$db", "test",
			"batchSize", int64(50),
		))
		requireOK(t, res)

		cursorDoc = mustGet[*types.Document](t, res, "cursor")
		batch := mustGet[*types.Array](t, cursorDoc, "nextBatch")
		assert.Equal(t, want, batch.Len())
		total += batch.Len()

		gotID := mustGet[int64](t, cursorDoc, "id")
		assert.Equal(t, id, gotID)
	}

	assert.Equal(t, 237, total)

	// the empty fifth batch reports id 0 and closes the cursor
	res = call(t, h, doc(
		"getMore", id,
		"collection", "users",
		"$db", "test",
		"batchSize", int64(50),
	))
	requireOK(t, res)

	cursorDoc = mustGet[*types.Document](t, res, "cursor")
	batch := mustGet[*types.Array](t, cursorDoc, "nextBatch")
	assert.Zero(t, batch.Len())
	assert.Zero(t, mustGet[int64](t, cursorDoc, "id"))

	// the cursor is gone now
	res = call(t, h, doc("getMore", id, "collection", "users", "$db", "test"))
	code, _ := res.Get("code")
	assert.Equal(t, int32(ErrCursorNotFound), code)
}

func TestKillCursors(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"find", "users",
		"$db", "test",
		"limit", int64(100),
		"batchSize", int64(10),
	))
	requireOK(t, res)

	cursorDoc := mustGet[*types.Document](t, res, "cursor")
	id := mustGet[int64](t, cursorDoc, "id")
	require.NotZero(t, id)

	res = call(t, h, doc(
		"killCursors", "users",
		"$db", "test",
		"cursors", arr(id, int64(12345)),
	))
	requireOK(t, res)

	killed := mustGet[*types.Array](t, res, "cursorsKilled")
	notFound := mustGet[*types.Array](t, res, "cursorsNotFound")
	assert.Equal(t, 1, killed.Len())
	assert.Equal(t, 1, notFound.Len())
}

func TestCount(t *testing.T) {
	t.Parallel()

	h := testHandler(t)

	res := call(t, h, doc("count", "empty", "$db", "test"))
	requireOK(t, res)
	assert.Equal(t, int32(0), mustGet[int32](t, res, "n"))

	seed(t, h, "test", "users")

	res = call(t, h, doc("count", "users", "$db", "test"))
	requireOK(t, res)
	assert.Equal(t, int32(collection.DefaultCountSurrogate), mustGet[int32](t, res, "n"))
}

func TestDistinct(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc("distinct", "users", "$db", "test", "key", "name"))
	requireOK(t, res)

	values := mustGet[*types.Array](t, res, "values")
	assert.NotZero(t, values.Len())

	seen := map[string]struct{}{}
	for _, v := range values.Slice() {
		fp := types.FormatValue(v)
		_, dup := seen[fp]
		assert.False(t, dup, "distinct values must be unique")
		seen[fp] = struct{}{}
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"aggregate", "users",
		"$db", "test",
		"pipeline", arr(
			doc("$group", doc("_id", types.Null, "n", doc("$sum", int32(1)))),
		),
		"cursor", doc(),
	))
	requireOK(t, res)

	cursorDoc := mustGet[*types.Document](t, res, "cursor")
	batch := mustGet[*types.Array](t, cursorDoc, "firstBatch")
	require.Equal(t, 1, batch.Len())

	group := must.NotFail(batch.Get(0)).(*types.Document)
	n := mustGet[int32](t, group, "n")
	assert.NotZero(t, n)
}

func TestListDatabasesAndCollections(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "db1", "users")
	seed(t, h, "db1", "orders")

	res := call(t, h, doc("listDatabases", int32(1), "$db", "admin"))
	requireOK(t, res)

	dbs := mustGet[*types.Array](t, res, "databases")
	require.Equal(t, 1, dbs.Len())

	name := mustGet[string](t, must.NotFail(dbs.Get(0)).(*types.Document), "name")
	assert.Equal(t, "db1", name)

	res = call(t, h, doc("listCollections", int32(1), "$db", "db1"))
	requireOK(t, res)

	cursorDoc := mustGet[*types.Document](t, res, "cursor")
	batch := mustGet[*types.Array](t, cursorDoc, "firstBatch")
	require.Equal(t, 2, batch.Len())

	first := must.NotFail(batch.Get(0)).(*types.Document)
	assert.Equal(t, "orders", mustGet[string](t, first, "name"))
	assert.Equal(t, "collection", mustGet[string](t, first, "type"))
}

func TestIndexCommands(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"createIndexes", "users",
		"$db", "test",
		"indexes", arr(doc("key", doc("name", int32(1)), "name", "name_1")),
	))
	requireOK(t, res)
	assert.Equal(t, int32(1), mustGet[int32](t, res, "numIndexesBefore"))
	assert.Equal(t, int32(2), mustGet[int32](t, res, "numIndexesAfter"))

	res = call(t, h, doc("listIndexes", "users", "$db", "test"))
	requireOK(t, res)

	cursorDoc := mustGet[*types.Document](t, res, "cursor")
	batch := mustGet[*types.Array](t, cursorDoc, "firstBatch")
	assert.Equal(t, 2, batch.Len())

	res = call(t, h, doc("dropIndexes", "users", "$db", "test", "index", "name_1"))
	requireOK(t, res)
	assert.Equal(t, int32(2), mustGet[int32](t, res, "nIndexesWas"))
}

func TestDropCommands(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc("drop", "users", "$db", "test"))
	requireOK(t, res)

	res = call(t, h, doc("drop", "users", "$db", "test"))
	code, _ := res.Get("code")
	assert.Equal(t, int32(ErrNamespaceNotFound), code, "dropping twice fails")

	seed(t, h, "test", "users")

	res = call(t, h, doc("dropDatabase", int32(1), "$db", "test"))
	requireOK(t, res)
	assert.Equal(t, "test", mustGet[string](t, res, "dropped"))
}

func TestUpdateDelete(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"update", "users",
		"$db", "test",
		"updates", arr(doc("q", doc(), "u", doc("$set", doc("reviewed", true)))),
	))
	requireOK(t, res)
	assert.Equal(t, int32(1), mustGet[int32](t, res, "n"))

	res = call(t, h, doc(
		"delete", "users",
		"$db", "test",
		"deletes", arr(doc("q", doc(), "limit", int32(1))),
	))
	requireOK(t, res)
	assert.Equal(t, int32(1), mustGet[int32](t, res, "n"))
}

func TestFindAndModify(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	res := call(t, h, doc(
		"findAndModify", "users",
		"$db", "test",
		"query", doc(),
		"update", doc("$set", doc("flag", true)),
		"new", true,
	))
	requireOK(t, res)

	value, err := res.Get("value")
	require.NoError(t, err)

	flag, err := value.(*types.Document).Get("flag")
	require.NoError(t, err)
	assert.Equal(t, true, flag)

	lastError := mustGet[*types.Document](t, res, "lastErrorObject")
	assert.Equal(t, int32(1), mustGet[int32](t, lastError, "n"))
}

func TestSeededFindDeterminism(t *testing.T) {
	t.Parallel()

	h := testHandler(t)
	seed(t, h, "test", "users")

	find := func() string {
		res := call(t, h, doc(
			"find", "users",
			"$db", "test",
			"filter", doc("$seed", int64(7)),
			"limit", int64(5),
		))
		requireOK(t, res)

		cursorDoc := mustGet[*types.Document](t, res, "cursor")
		batch := mustGet[*types.Array](t, cursorDoc, "firstBatch")
		require.Equal(t, 5, batch.Len())

		return types.FormatValue(batch)
	}

	assert.Equal(t, find(), find(), "the same seed produces the same documents")
}

func mustGet[T any](t *testing.T, doc *types.Document, key string) T {
	t.Helper()

	v, err := doc.Get(key)
	require.NoError(t, err, "key %s in %s", key, types.FormatValue(doc))

	res, ok := v.(T)
	require.True(t, ok, "key %s has type %T", key, v)

	return res
}
