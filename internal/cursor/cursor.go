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

// Package cursor tracks server-side cursors over pre-generated result sets.
package cursor

import (
	"sync"
	"time"

	"github.com/DataFlood/DataFlood/internal/types"
)

// Cursor holds the remainder of a result set between getMore calls.
//
// The result set is fully materialized at creation; a getMore only slices
// the next batch off the buffer.
type Cursor struct {
	created      time.Time
	lastAccessed time.Time

	db         string
	collection string

	buffer   []*types.Document
	position int

	id    int64
	sent  int64
	limit int64

	connID string

	exhausted bool
	closed    bool

	rw sync.Mutex
}

// ID returns the wire-visible cursor id.
func (c *Cursor) ID() int64 {
	return c.id
}

// Namespace returns the db.collection string the cursor was opened on.
func (c *Cursor) Namespace() string {
	return c.db + "." + c.collection
}

// DB returns the cursor's database name.
func (c *Cursor) DB() string {
	return c.db
}

// Collection returns the cursor's collection name.
func (c *Cursor) Collection() string {
	return c.collection
}

// NextBatch returns up to batchSize documents and reports whether the
// cursor is exhausted afterwards. A non-positive batchSize drains the rest.
func (c *Cursor) NextBatch(batchSize int) ([]*types.Document, bool) {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.lastAccessed = time.Now()

	if c.closed || c.exhausted {
		return nil, true
	}

	remaining := len(c.buffer) - c.position
	if batchSize <= 0 || batchSize > remaining {
		batchSize = remaining
	}

	if c.limit > 0 && c.sent+int64(batchSize) > c.limit {
		batchSize = int(c.limit - c.sent)
		if batchSize < 0 {
			batchSize = 0
		}
	}

	batch := c.buffer[c.position : c.position+batchSize]
	c.position += batchSize
	c.sent += int64(batchSize)

	if c.position >= len(c.buffer) || (c.limit > 0 && c.sent >= c.limit) {
		c.exhausted = true
	}

	return batch, c.exhausted
}

// Exhausted reports whether the cursor has no more documents.
func (c *Cursor) Exhausted() bool {
	c.rw.Lock()
	defer c.rw.Unlock()

	return c.exhausted || c.closed
}

func (c *Cursor) close() {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.closed = true
	c.buffer = nil
}

func (c *Cursor) idleSince() time.Time {
	c.rw.Lock()
	defer c.rw.Unlock()

	return c.lastAccessed
}
