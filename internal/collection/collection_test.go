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

package collection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DataFlood/DataFlood/internal/storage"
	"github.com/DataFlood/DataFlood/internal/types"
)

// doc builds a document from key/value pairs.
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

// arr builds an array from values.
func arr(values ...any) *types.Array {
	a := types.MakeArray(len(values))
	if err := a.Append(values...); err != nil {
		panic(err)
	}

	return a
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	backend, err := storage.New(t.TempDir(), 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	return NewRegistry(backend, nil, zaptest.NewLogger(t))
}

// seedUsers inserts enough user documents to cross the training threshold.
func seedUsers(t *testing.T, c *Collection) {
	t.Helper()

	docs := make([]*types.Document, 0, DefaultTrainThreshold)
	for i := 0; i < DefaultTrainThreshold; i++ {
		docs = append(docs, doc(
			"name", fmt.Sprintf("user-%d", i),
			"age", int32(20+i),
			"active", i%2 == 0,
		))
	}

	res, err := c.Insert(docs)
	require.NoError(t, err)
	require.Equal(t, int64(DefaultTrainThreshold), res.Count)
}

func TestInsertTrainsAtThreshold(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	docs := make([]*types.Document, 0, DefaultTrainThreshold-1)
	for i := 0; i < DefaultTrainThreshold-1; i++ {
		docs = append(docs, doc("n", int32(i)))
	}

	res, err := c.Insert(docs)
	require.NoError(t, err)
	assert.Len(t, res.IDs, DefaultTrainThreshold-1)
	assert.False(t, c.Stats().ModelTrained, "below the threshold nothing trains")

	_, err = c.Insert([]*types.Document{doc("n", int32(99))})
	require.NoError(t, err)

	stats := c.Stats()
	assert.True(t, stats.ModelTrained)
	assert.Equal(t, int64(1), stats.ModelVersion)
	assert.Equal(t, int64(DefaultTrainThreshold), stats.DocumentCount)

	m := c.Model()
	require.NotNil(t, m)
	assert.Equal(t, "object", m.Type)
	assert.Contains(t, m.Properties, "n")
}

func TestInsertAssignsIDs(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "ids")
	require.NoError(t, err)

	res, err := c.Insert([]*types.Document{
		doc("_id", "fixed", "n", int32(1)),
		doc("n", int32(2)),
	})
	require.NoError(t, err)
	require.Len(t, res.IDs, 2)

	assert.Equal(t, "fixed", res.IDs[0])
	_, isObjectID := res.IDs[1].(types.ObjectID)
	assert.True(t, isObjectID, "missing _id gets an ObjectID")
}

func TestFindGeneratesMatchingDocuments(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	seedUsers(t, c)

	docs, err := c.Find(&FindParams{
		Filter: doc("age", doc("$gte", int32(25))),
		Limit:  20,
	})
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	for _, d := range docs {
		assert.True(t, d.Has("_id"))

		age, err := d.Get("age")
		require.NoError(t, err)

		n, ok := numericValue(age)
		require.True(t, ok)
		assert.GreaterOrEqual(t, n, 25.0, "every returned document matches the filter")
	}
}

func TestFindUntrained(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "empty")
	require.NoError(t, err)

	docs, err := c.Find(&FindParams{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFindTrainsBufferedInserts(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "partial")
	require.NoError(t, err)

	// below the threshold, so the insert itself does not train
	_, err = c.Insert([]*types.Document{
		doc("kind", "a"),
		doc("kind", "b"),
	})
	require.NoError(t, err)
	require.False(t, c.Stats().ModelTrained)

	docs, err := c.Find(&FindParams{Limit: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, docs)
	assert.True(t, c.Stats().ModelTrained, "first read trains the buffer")
}

func TestFindSeededDeterminism(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	seedUsers(t, c)

	find := func() []*types.Document {
		docs, err := c.Find(&FindParams{
			Filter: doc("$seed", int64(7)),
			Limit:  5,
		})
		require.NoError(t, err)
		require.Len(t, docs, 5)

		return docs
	}

	first := find()
	second := find()

	for i := range first {
		assert.Equal(t, types.FormatValue(first[i]), types.FormatValue(second[i]))
	}
}

func TestFindSkipLimitSortProjection(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	seedUsers(t, c)

	seed := int64(1)
	docs, err := c.Find(&FindParams{
		Filter:     doc("$seed", seed),
		Sort:       doc("age", int32(1)),
		Projection: doc("age", int32(1)),
		Skip:       2,
		Limit:      4,
	})
	require.NoError(t, err)
	require.Len(t, docs, 4)

	var prev float64 = -1
	for _, d := range docs {
		assert.ElementsMatch(t, []string{"_id", "age"}, d.Keys())

		age, err := d.Get("age")
		require.NoError(t, err)

		n, ok := numericValue(age)
		require.True(t, ok)
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestCountSurrogate(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	assert.Zero(t, c.Count(nil), "untrained collections count as empty")

	seedUsers(t, c)

	assert.Equal(t, int64(DefaultCountSurrogate), c.Count(nil))
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	seedUsers(t, c)

	res, err := c.Update(nil, doc("$set", doc("reviewed", true)), false, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)
	assert.Equal(t, int64(1), res.Modified)
	assert.Nil(t, res.UpsertedID)
}

func TestUpdateUpsert(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "fresh")
	require.NoError(t, err)

	res, err := c.Update(doc("name", "nobody"), doc("$set", doc("name", "created")), false, true)
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
	assert.NotNil(t, res.UpsertedID)
	assert.Equal(t, int64(1), c.Stats().DocumentCount)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	seedUsers(t, c)

	deleted, err := c.Delete(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, int64(DefaultTrainThreshold-3), c.Stats().DocumentCount)

	assert.NotNil(t, c.Model(), "delete never touches the model")
}

func TestIndexes(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	indexes := c.ListIndexes()
	require.Len(t, indexes, 1)
	assert.Equal(t, "_id_", indexes[0].Name)

	key := doc("name", int32(1))
	require.NoError(t, c.CreateIndex("name_1", key, false))
	require.NoError(t, c.CreateIndex("name_1", key, false), "same key is a no-op")

	err = c.CreateIndex("name_1", doc("name", int32(-1)), false)
	assert.Error(t, err, "same name with a different key conflicts")

	assert.Len(t, c.ListIndexes(), 2)

	assert.Error(t, c.DropIndex("_id_"))
	assert.Error(t, c.DropIndex("missing"))
	require.NoError(t, c.DropIndex("name_1"))
	assert.Len(t, c.ListIndexes(), 1)
}

func TestDrop(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)

	seedUsers(t, c)
	require.NotNil(t, c.Model())

	require.NoError(t, c.Drop())

	assert.Nil(t, c.Model())
	assert.Zero(t, c.Stats().DocumentCount)
	assert.False(t, c.Stats().ModelTrained)
}

func TestModelPersistsAcrossRegistries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	backend, err := storage.New(dir, 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	r := NewRegistry(backend, nil, zaptest.NewLogger(t))
	c, err := r.Collection("testdb", "users")
	require.NoError(t, err)
	seedUsers(t, c)

	backend2, err := storage.New(dir, 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	r2 := NewRegistry(backend2, nil, zaptest.NewLogger(t))
	c2, err := r2.Collection("testdb", "users")
	require.NoError(t, err)

	assert.True(t, c2.Stats().ModelTrained, "a stored model is picked up on open")

	docs, err := c2.Find(&FindParams{Limit: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, docs)
}

func TestRegistryListing(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)

	dbs, err := r.ListDatabases()
	require.NoError(t, err)
	assert.Empty(t, dbs)

	c, err := r.Collection("db1", "users")
	require.NoError(t, err)
	seedUsers(t, c)

	c2, err := r.Collection("db2", "orders")
	require.NoError(t, err)
	_, err = c2.Insert([]*types.Document{doc("n", int32(1))})
	require.NoError(t, err)

	// opened but never written; must not be listed
	_, err = r.Collection("db3", "ghost")
	require.NoError(t, err)

	dbs, err = r.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "db2"}, dbs)

	colls, err := r.ListCollections("db1")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, colls)

	colls, err = r.ListCollections("db3")
	require.NoError(t, err)
	assert.Empty(t, colls)
}

func TestRegistryDrop(t *testing.T) {
	t.Parallel()

	r := testRegistry(t)

	c, err := r.Collection("db1", "users")
	require.NoError(t, err)
	seedUsers(t, c)

	require.NoError(t, r.DropCollection("db1", "users"))

	colls, err := r.ListCollections("db1")
	require.NoError(t, err)
	assert.Empty(t, colls)

	c, err = r.Collection("db1", "users")
	require.NoError(t, err)
	seedUsers(t, c)

	require.NoError(t, r.DropDatabase("db1"))

	dbs, err := r.ListDatabases()
	require.NoError(t, err)
	assert.Empty(t, dbs)
}
