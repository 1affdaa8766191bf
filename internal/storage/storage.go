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

// Package storage persists collection models as one JSON file per
// collection under <base>/<database>/<collection>.json, with an LRU
// cache in front of the filesystem.
package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/model"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// DefaultCacheSize is the default model cache capacity.
const DefaultCacheSize = 100

const modelExt = ".json"

// Backend stores and caches collection models. Models on disk are
// authoritative; the cache is an optimization.
type Backend struct {
	l     *zap.Logger
	cache *lruCache

	base string

	rw sync.Mutex

	hits   int64
	misses int64
	loads  int64
	saves  int64
}

// New creates a backend rooted at base, creating the directory if needed.
func New(base string, cacheSize int, l *zap.Logger) (*Backend, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	if err := os.MkdirAll(base, 0o777); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &Backend{
		l:     l,
		cache: newLRUCache(cacheSize),
		base:  base,
	}, nil
}

// LoadModel returns the model for the collection, or nil if none is stored.
// A missing file is not an error; a corrupt file is.
func (b *Backend) LoadModel(db, coll string) (*model.Model, error) {
	path, err := b.modelPath(db, coll)
	if err != nil {
		return nil, err
	}

	b.rw.Lock()
	defer b.rw.Unlock()

	key := db + "/" + coll
	if m, ok := b.cache.get(key); ok {
		b.hits++
		return m, nil
	}
	b.misses++

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, lazyerrors.Error(err)
	}

	m, err := model.UnmarshalModel(data)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	b.cache.put(key, m)
	b.loads++

	return m, nil
}

// SaveModel writes the model atomically (write to a temporary file in the
// same directory, then rename) and refreshes the cache.
func (b *Backend) SaveModel(db, coll string, m *model.Model) error {
	path, err := b.modelPath(db, coll)
	if err != nil {
		return err
	}

	data, err := m.MarshalCanonical()
	if err != nil {
		return lazyerrors.Error(err)
	}

	b.rw.Lock()
	defer b.rw.Unlock()

	if err = os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return lazyerrors.Error(err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), coll+".*.tmp")
	if err != nil {
		return lazyerrors.Error(err)
	}

	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return lazyerrors.Error(err)
	}

	if err = f.Sync(); err != nil {
		_ = f.Close()
		return lazyerrors.Error(err)
	}

	if err = f.Close(); err != nil {
		return lazyerrors.Error(err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return lazyerrors.Error(err)
	}

	b.cache.put(db+"/"+coll, m)
	b.saves++

	b.l.Debug("model saved", zap.String("db", db), zap.String("collection", coll), zap.Int("bytes", len(data)))

	return nil
}

// DeleteModel removes the stored model and evicts it from the cache.
// Deleting a model that does not exist is not an error.
func (b *Backend) DeleteModel(db, coll string) error {
	path, err := b.modelPath(db, coll)
	if err != nil {
		return err
	}

	b.rw.Lock()
	defer b.rw.Unlock()

	b.cache.remove(db + "/" + coll)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return lazyerrors.Error(err)
	}

	return nil
}

// ListDatabases returns database names in sorted order.
func (b *Backend) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(b.base)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	var res []string
	for _, e := range entries {
		if e.IsDir() {
			res = append(res, e.Name())
		}
	}

	return res, nil
}

// ListCollections returns collection names of a database in sorted order.
// A missing database has no collections.
func (b *Backend) ListCollections(db string) ([]string, error) {
	if err := validateName(db); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(b.base, db))

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, lazyerrors.Error(err)
	}

	var res []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), modelExt) {
			res = append(res, strings.TrimSuffix(e.Name(), modelExt))
		}
	}

	return res, nil
}

// DropDatabase removes the database directory and all cached models under it.
func (b *Backend) DropDatabase(db string) error {
	if err := validateName(db); err != nil {
		return err
	}

	colls, err := b.ListCollections(db)
	if err != nil {
		return err
	}

	b.rw.Lock()
	defer b.rw.Unlock()

	for _, coll := range colls {
		b.cache.remove(db + "/" + coll)
	}

	if err := os.RemoveAll(filepath.Join(b.base, db)); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

func (b *Backend) modelPath(db, coll string) (string, error) {
	if err := validateName(db); err != nil {
		return "", err
	}
	if err := validateName(coll); err != nil {
		return "", err
	}

	return filepath.Join(b.base, db, coll+modelExt), nil
}

// validateName rejects names that could escape the storage root.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return lazyerrors.Errorf("storage: invalid name %q", name)
	}

	return nil
}

// Describe implements prometheus.Collector.
func (b *Backend) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(b, ch)
}

// Collect implements prometheus.Collector.
func (b *Backend) Collect(ch chan<- prometheus.Metric) {
	b.rw.Lock()
	cached, hits, misses, loads, saves := b.cache.len(), b.hits, b.misses, b.loads, b.saves
	b.rw.Unlock()

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_storage_cached_models", "Models currently cached.", nil, nil),
		prometheus.GaugeValue,
		float64(cached),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_storage_cache_hits_total", "Model cache hits.", nil, nil),
		prometheus.CounterValue,
		float64(hits),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_storage_cache_misses_total", "Model cache misses.", nil, nil),
		prometheus.CounterValue,
		float64(misses),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_storage_loads_total", "Models loaded from disk.", nil, nil),
		prometheus.CounterValue,
		float64(loads),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_storage_saves_total", "Models saved to disk.", nil, nil),
		prometheus.CounterValue,
		float64(saves),
	)
}

// check interfaces
var (
	_ prometheus.Collector = (*Backend)(nil)
)
