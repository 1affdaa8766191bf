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
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/inference"
	"github.com/DataFlood/DataFlood/internal/storage"
)

// RegistryOpts tune the collections a registry creates.
type RegistryOpts struct {
	// TrainThreshold is the pending-buffer size that triggers training;
	// 0 means DefaultTrainThreshold.
	TrainThreshold int

	// CountSurrogate is the count reported for trained collections;
	// 0 means DefaultCountSurrogate.
	CountSurrogate int64
}

// Registry owns all open collections.
type Registry struct {
	l        *zap.Logger
	backend  *storage.Backend
	inferrer *inference.Inferrer
	colls    map[string]*Collection

	opts RegistryOpts

	rw sync.Mutex
}

// NewRegistry creates a registry over the given storage backend.
func NewRegistry(backend *storage.Backend, opts *RegistryOpts, l *zap.Logger) *Registry {
	o := RegistryOpts{}
	if opts != nil {
		o = *opts
	}
	if o.TrainThreshold <= 0 {
		o.TrainThreshold = DefaultTrainThreshold
	}
	if o.CountSurrogate <= 0 {
		o.CountSurrogate = DefaultCountSurrogate
	}

	return &Registry{
		l:        l,
		backend:  backend,
		inferrer: inference.NewInferrer(rand.New(rand.NewSource(time.Now().UnixNano()))),
		colls:    map[string]*Collection{},
		opts:     o,
	}
}

// Collection returns the collection for the (database, name) pair,
// opening it on first use.
func (r *Registry) Collection(db, name string) (*Collection, error) {
	r.rw.Lock()
	defer r.rw.Unlock()

	key := db + "/" + name
	if c, ok := r.colls[key]; ok {
		return c, nil
	}

	c, err := newCollection(db, name, r.backend, r.inferrer, r.opts.TrainThreshold, r.opts.CountSurrogate, r.l)
	if err != nil {
		return nil, err
	}

	r.colls[key] = c

	return c, nil
}

// DropCollection drops the collection's model and forgets it.
func (r *Registry) DropCollection(db, name string) error {
	c, err := r.Collection(db, name)
	if err != nil {
		return err
	}

	if err := c.Drop(); err != nil {
		return err
	}

	r.rw.Lock()
	delete(r.colls, db+"/"+name)
	r.rw.Unlock()

	return nil
}

// DropDatabase removes every collection of the database.
func (r *Registry) DropDatabase(db string) error {
	if err := r.backend.DropDatabase(db); err != nil {
		return err
	}

	r.rw.Lock()
	defer r.rw.Unlock()

	for key := range r.colls {
		if c := r.colls[key]; c.info.Database == db {
			delete(r.colls, key)
		}
	}

	return nil
}

// ListDatabases returns the union of stored and in-memory database names.
func (r *Registry) ListDatabases() ([]string, error) {
	stored, err := r.backend.ListDatabases()
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, db := range stored {
		seen[db] = struct{}{}
	}

	r.rw.Lock()
	for _, c := range r.colls {
		if c.Stats().DocumentCount > 0 || c.Stats().ModelTrained {
			seen[c.info.Database] = struct{}{}
		}
	}
	r.rw.Unlock()

	res := make([]string, 0, len(seen))
	for db := range seen {
		res = append(res, db)
	}
	sort.Strings(res)

	return res, nil
}

// ListCollections returns the union of stored and in-memory collection
// names of the database.
func (r *Registry) ListCollections(db string) ([]string, error) {
	stored, err := r.backend.ListCollections(db)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, name := range stored {
		seen[name] = struct{}{}
	}

	r.rw.Lock()
	for _, c := range r.colls {
		if c.info.Database != db {
			continue
		}

		if stats := c.Stats(); stats.DocumentCount > 0 || stats.ModelTrained {
			seen[c.info.Name] = struct{}{}
		}
	}
	r.rw.Unlock()

	res := make([]string, 0, len(seen))
	for name := range seen {
		res = append(res, name)
	}
	sort.Strings(res)

	return res, nil
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(r, ch)
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.rw.Lock()
	open := len(r.colls)

	var trained int
	var generated int64
	for _, c := range r.colls {
		stats := c.Stats()
		if stats.ModelTrained {
			trained++
		}
		generated += stats.GeneratedCount
	}
	r.rw.Unlock()

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_collections_open", "Open collections.", nil, nil),
		prometheus.GaugeValue,
		float64(open),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_collections_trained", "Collections with a trained model.", nil, nil),
		prometheus.GaugeValue,
		float64(trained),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_documents_generated_total", "Documents synthesized by all collections.", nil, nil),
		prometheus.CounterValue,
		float64(generated),
	)
}

// check interfaces
var (
	_ prometheus.Collector = (*Registry)(nil)
)
