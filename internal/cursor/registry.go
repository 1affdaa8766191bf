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

package cursor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/types"
)

// DefaultMaxCursors bounds the number of live cursors; the least recently
// used one is evicted when a new cursor would exceed it.
const DefaultMaxCursors = 1000

// DefaultIdleTimeout is the idle time after which a cursor is reaped.
const DefaultIdleTimeout = 10 * time.Minute

// sweepInterval limits how often the sweeper scans for idle cursors.
const sweepInterval = time.Minute

// NewParams describe the cursor to register.
type NewParams struct {
	DB         string
	Collection string
	ConnID     string

	Buffer []*types.Document

	// Limit caps the total number of documents the cursor may return;
	// 0 means unlimited.
	Limit int64
}

// Registry owns all live cursors.
type Registry struct {
	l       *zap.Logger
	rng     *rand.Rand
	cursors map[int64]*Cursor

	maxCursors  int
	idleTimeout time.Duration
	lastSweep   time.Time

	created int64
	evicted int64
	reaped  int64

	rw sync.Mutex
}

// NewRegistry creates a cursor registry. Zero values select the defaults.
func NewRegistry(maxCursors int, idleTimeout time.Duration, l *zap.Logger) *Registry {
	if maxCursors <= 0 {
		maxCursors = DefaultMaxCursors
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	return &Registry{
		l:           l,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cursors:     map[int64]*Cursor{},
		maxCursors:  maxCursors,
		idleTimeout: idleTimeout,
	}
}

// New registers a cursor over the given buffer and returns it.
func (r *Registry) New(params *NewParams) *Cursor {
	r.rw.Lock()
	defer r.rw.Unlock()

	r.sweep()

	if len(r.cursors) >= r.maxCursors {
		r.evictOldest()
	}

	now := time.Now()

	c := &Cursor{
		created:      now,
		lastAccessed: now,
		db:           params.DB,
		collection:   params.Collection,
		buffer:       params.Buffer,
		id:           r.nextID(),
		limit:        params.Limit,
		connID:       params.ConnID,
	}

	r.cursors[c.id] = c
	r.created++

	r.l.Debug(
		"cursor created",
		zap.Int64("id", c.id),
		zap.String("ns", c.Namespace()),
		zap.Int("buffered", len(params.Buffer)),
	)

	return c
}

// Get returns the live cursor with the given id, or nil.
func (r *Registry) Get(id int64) *Cursor {
	r.rw.Lock()
	defer r.rw.Unlock()

	r.sweep()

	return r.cursors[id]
}

// Close closes and forgets the cursor; it reports whether the id was live.
func (r *Registry) Close(id int64) bool {
	r.rw.Lock()
	defer r.rw.Unlock()

	c, ok := r.cursors[id]
	if !ok {
		return false
	}

	c.close()
	delete(r.cursors, id)

	return true
}

// CloseConn closes every cursor opened by the given connection.
func (r *Registry) CloseConn(connID string) {
	r.rw.Lock()
	defer r.rw.Unlock()

	for id, c := range r.cursors {
		if c.connID == connID {
			c.close()
			delete(r.cursors, id)
		}
	}
}

// Len returns the number of live cursors.
func (r *Registry) Len() int {
	r.rw.Lock()
	defer r.rw.Unlock()

	return len(r.cursors)
}

// nextID draws a non-zero id not currently in use. Callers hold the lock.
func (r *Registry) nextID() int64 {
	for {
		id := r.rng.Int63()
		if id == 0 {
			continue
		}

		if _, ok := r.cursors[id]; !ok {
			return id
		}
	}
}

// evictOldest drops the least recently used cursor. Callers hold the lock.
func (r *Registry) evictOldest() {
	var oldest *Cursor
	for _, c := range r.cursors {
		if oldest == nil || c.idleSince().Before(oldest.idleSince()) {
			oldest = c
		}
	}

	if oldest == nil {
		return
	}

	oldest.close()
	delete(r.cursors, oldest.id)
	r.evicted++

	r.l.Debug("cursor evicted", zap.Int64("id", oldest.id))
}

// sweep reaps idle cursors at most once per sweepInterval. Callers hold
// the lock.
func (r *Registry) sweep() {
	now := time.Now()
	if now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now

	for id, c := range r.cursors {
		if now.Sub(c.idleSince()) > r.idleTimeout {
			c.close()
			delete(r.cursors, id)
			r.reaped++

			r.l.Debug("idle cursor reaped", zap.Int64("id", id))
		}
	}
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(r, ch)
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.rw.Lock()
	open := len(r.cursors)
	created := r.created
	evicted := r.evicted
	reaped := r.reaped
	r.rw.Unlock()

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_cursors_open", "Live cursors.", nil, nil),
		prometheus.GaugeValue,
		float64(open),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_cursors_created_total", "Cursors created.", nil, nil),
		prometheus.CounterValue,
		float64(created),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_cursors_evicted_total", "Cursors evicted by the size cap.", nil, nil),
		prometheus.CounterValue,
		float64(evicted),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc("dataflood_cursors_reaped_total", "Cursors reaped by the idle timeout.", nil, nil),
		prometheus.CounterValue,
		float64(reaped),
	)
}

// check interfaces
var (
	_ prometheus.Collector = (*Registry)(nil)
)
