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

// Package collection implements per-(database, name) collection state:
// the trained model, pending-training buffer, document cache, indexes,
// and the find/insert/update/delete semantics on top of the generator.
//
// Inserted documents are never persisted; they only train the model.
package collection

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/generator"
	"github.com/DataFlood/DataFlood/internal/inference"
	"github.com/DataFlood/DataFlood/internal/model"
	"github.com/DataFlood/DataFlood/internal/storage"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// DefaultTrainThreshold is the pending-buffer size that triggers training.
const DefaultTrainThreshold = 10

// DefaultCountSurrogate is the count reported for any trained collection;
// no document store exists to count.
const DefaultCountSurrogate = 100

// defaultFindLimit bounds generation for queries without a limit.
const defaultFindLimit = 100

// overgenerateFactor bounds how many candidates the post-filter may reject
// before a find gives up on filling its quota.
const overgenerateFactor = 3

// Index is index metadata. Indexes never accelerate anything; they are
// tracked so clients see what they created.
type Index struct {
	Key    *types.Document
	Name   string
	Unique bool
}

// Info describes a collection's state and operation counters.
type Info struct {
	CreatedAt time.Time
	UpdatedAt time.Time

	Database string
	Name     string

	DocumentCount int64
	ModelVersion  int64

	QueryCount     int64
	InsertCount    int64
	UpdateCount    int64
	DeleteCount    int64
	GeneratedCount int64

	ModelTrained bool
}

// Collection is the synthesized collection for one (database, name) pair.
type Collection struct {
	l        *zap.Logger
	backend  *storage.Backend
	inferrer *inference.Inferrer

	model   *model.Model
	pending []*types.Document
	cache   map[string]*types.Document
	indexes []Index

	info Info

	trainThreshold int
	countSurrogate int64

	// mu serializes all state mutation; a find against the model snapshot
	// runs outside the lock
	mu sync.Mutex
}

func newCollection(db, name string, backend *storage.Backend, inferrer *inference.Inferrer,
	trainThreshold int, countSurrogate int64, l *zap.Logger,
) (*Collection, error) {
	m, err := backend.LoadModel(db, name)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	now := time.Now()

	c := &Collection{
		l:        l,
		backend:  backend,
		inferrer: inferrer,
		model:    m,
		cache:    map[string]*types.Document{},
		indexes:  []Index{defaultIDIndex()},
		info: Info{
			CreatedAt:    now,
			UpdatedAt:    now,
			Database:     db,
			Name:         name,
			ModelTrained: m != nil,
		},
		trainThreshold: trainThreshold,
		countSurrogate: countSurrogate,
	}

	return c, nil
}

func defaultIDIndex() Index {
	key := types.MakeDocument(1)
	key.Set("_id", int32(1))

	return Index{Name: "_id_", Key: key, Unique: true}
}

// InsertResult reports the outcome of an insert.
type InsertResult struct {
	IDs   []any
	Count int64
}

// Insert buffers documents for training and assigns ids where missing.
// When the buffer reaches the training threshold the model is retrained:
// the first training infers a fresh model, later ones merge into it.
func (c *Collection) Insert(docs []*types.Document) (*InsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := &InsertResult{IDs: make([]any, 0, len(docs))}

	for _, doc := range docs {
		d := doc.DeepCopy()

		id, err := d.Get("_id")
		if err != nil {
			id = types.NewObjectID()
			set := types.MakeDocument(d.Len() + 1)
			set.Set("_id", id)
			values := d.Values()
			for i, k := range d.Keys() {
				set.Set(k, values[i])
			}
			d = set
		}

		c.pending = append(c.pending, d)
		c.cache[types.FormatValue(id)] = d

		res.IDs = append(res.IDs, id)
		res.Count++
	}

	c.info.DocumentCount += res.Count
	c.info.InsertCount += res.Count
	c.info.UpdatedAt = time.Now()

	if len(c.pending) >= c.trainThreshold {
		if err := c.train(); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// train folds the pending buffer into the model. Callers hold the lock.
func (c *Collection) train() error {
	if len(c.pending) == 0 {
		return nil
	}

	inferred, err := c.inferrer.InferDocuments(c.pending)
	if err != nil {
		return lazyerrors.Error(err)
	}

	if c.model != nil {
		inferred = model.Merge(c.model, inferred)
		inferred.Schema = model.SchemaURI
	}

	if err = c.backend.SaveModel(c.info.Database, c.info.Name, inferred); err != nil {
		return lazyerrors.Error(err)
	}

	c.model = inferred
	c.pending = nil
	c.info.ModelTrained = true
	c.info.ModelVersion++

	c.l.Debug(
		"model trained",
		zap.String("db", c.info.Database),
		zap.String("collection", c.info.Name),
		zap.Int64("version", c.info.ModelVersion),
	)

	return nil
}

// FindParams are the query options of a find.
type FindParams struct {
	Filter     *types.Document
	Sort       *types.Document
	Projection *types.Document
	Skip       int64
	Limit      int64
}

// Find synthesizes documents matching the filter.
//
// Generation parameters ($seed/$entropy) are lifted from the filter, the
// comparison operators become generation constraints, and the full filter
// is applied again as a post-filter, so every returned document matches.
func (c *Collection) Find(params *FindParams) ([]*types.Document, error) {
	filter, genParams := ExtractGenerationParams(params.Filter)

	c.mu.Lock()

	// an untrained collection with buffered inserts trains on first read
	if c.model == nil && len(c.pending) > 0 {
		if err := c.train(); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}

	m := c.model
	c.info.QueryCount++
	c.mu.Unlock()

	if m == nil {
		return nil, nil
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultFindLimit
	}

	skip := params.Skip
	if skip < 0 {
		skip = 0
	}

	total := int(skip + limit)
	gen := generator.New(genParams.Seed, genParams.Entropy)
	cons := ExtractConstraints(filter)

	matched := make([]*types.Document, 0, total)
	attempts := total*overgenerateFactor + 20

	var generated int64
	for i := 0; i < attempts && len(matched) < total; i++ {
		doc := gen.Document(m, cons)
		generated++

		if !doc.Has("_id") {
			withID := types.MakeDocument(doc.Len() + 1)
			withID.Set("_id", gen.ObjectID())
			values := doc.Values()
			for j, k := range doc.Keys() {
				withID.Set(k, values[j])
			}
			doc = withID
		}

		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}

		if ok {
			matched = append(matched, doc)
		}
	}

	c.mu.Lock()
	c.info.GeneratedCount += generated
	c.mu.Unlock()

	if err := SortDocuments(matched, params.Sort); err != nil {
		return nil, err
	}

	if int(skip) >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]

	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}

	if params.Projection != nil && params.Projection.Len() > 0 {
		for i, doc := range matched {
			projected, err := Project(doc, params.Projection)
			if err != nil {
				return nil, err
			}
			matched[i] = projected
		}
	}

	return matched, nil
}

// FindOne returns the first match or nil.
func (c *Collection) FindOne(filter *types.Document) (*types.Document, error) {
	docs, err := c.Find(&FindParams{Filter: filter, Limit: 1})
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, nil
	}

	return docs[0], nil
}

// Count returns the count surrogate for trained collections and 0 for
// untrained ones; there is no document store to count.
func (c *Collection) Count(_ *types.Document) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model == nil && len(c.pending) == 0 {
		return 0
	}

	return c.countSurrogate
}

// UpdateResult reports the outcome of an update.
type UpdateResult struct {
	UpsertedID any
	Matched    int64
	Modified   int64
}

// Update applies update operators to matching documents in the cache.
// With upsert, a miss constructs a document by applying the update to an
// empty one.
func (c *Collection) Update(filter, update *types.Document, multi, upsert bool) (*UpdateResult, error) {
	limit := int64(1)
	if multi {
		limit = defaultFindLimit
	}

	docs, err := c.Find(&FindParams{Filter: filter, Limit: limit})
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range docs {
		changed, err := ApplyUpdate(doc, update)
		if err != nil {
			return nil, err
		}

		res.Matched++
		if changed {
			res.Modified++
		}

		if id, err := doc.Get("_id"); err == nil {
			c.cache[types.FormatValue(id)] = doc
		}
	}

	if res.Matched == 0 && upsert {
		doc := types.MakeDocument(1)
		if _, err := ApplyUpdate(doc, update); err != nil {
			return nil, err
		}

		id, err := doc.Get("_id")
		if err != nil {
			id = types.NewObjectID()
			doc.Set("_id", id)
		}

		c.cache[types.FormatValue(id)] = doc
		c.pending = append(c.pending, doc)
		c.info.DocumentCount++
		res.UpsertedID = id
	}

	c.info.UpdateCount++
	c.info.UpdatedAt = time.Now()

	return res, nil
}

// Delete evicts matching documents from the cache and decrements the
// document counter. The model is untouched.
func (c *Collection) Delete(filter *types.Document, limit int64) (int64, error) {
	findLimit := limit
	if findLimit <= 0 {
		findLimit = defaultFindLimit
	}

	docs, err := c.Find(&FindParams{Filter: filter, Limit: findLimit})
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := int64(len(docs))
	for _, doc := range docs {
		if id, err := doc.Get("_id"); err == nil {
			delete(c.cache, types.FormatValue(id))
		}
	}

	if c.info.DocumentCount -= deleted; c.info.DocumentCount < 0 {
		c.info.DocumentCount = 0
	}

	c.info.DeleteCount++
	c.info.UpdatedAt = time.Now()

	return deleted, nil
}

// CreateIndex records index metadata. Recreating an existing index with
// the same key is a no-op.
func (c *Collection) CreateIndex(name string, key *types.Document, unique bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, idx := range c.indexes {
		if idx.Name == name {
			if types.FormatValue(idx.Key) == types.FormatValue(key) {
				return nil
			}
			return lazyerrors.Errorf("index %s already exists with a different key", name)
		}
	}

	c.indexes = append(c.indexes, Index{Name: name, Key: key, Unique: unique})
	c.info.UpdatedAt = time.Now()

	return nil
}

// DropIndex removes index metadata; _id_ is undroppable.
func (c *Collection) DropIndex(name string) error {
	if name == "_id_" {
		return lazyerrors.New("cannot drop _id index")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, idx := range c.indexes {
		if idx.Name == name {
			c.indexes = append(c.indexes[:i], c.indexes[i+1:]...)
			c.info.UpdatedAt = time.Now()
			return nil
		}
	}

	return lazyerrors.Errorf("index not found with name [%s]", name)
}

// ListIndexes returns a snapshot of the index metadata.
func (c *Collection) ListIndexes() []Index {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Index(nil), c.indexes...)
}

// Drop removes the model and resets all collection state.
func (c *Collection) Drop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.DeleteModel(c.info.Database, c.info.Name); err != nil {
		return lazyerrors.Error(err)
	}

	c.model = nil
	c.pending = nil
	c.cache = map[string]*types.Document{}
	c.indexes = []Index{defaultIDIndex()}
	c.info.DocumentCount = 0
	c.info.ModelTrained = false
	c.info.UpdatedAt = time.Now()

	return nil
}

// Model returns the current model snapshot, which may be nil.
func (c *Collection) Model() *model.Model {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.model
}

// Stats returns a snapshot of the collection info.
func (c *Collection) Stats() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.info
}
