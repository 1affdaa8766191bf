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

package storage

import (
	"container/list"

	"github.com/DataFlood/DataFlood/internal/model"
)

// lruCache is a fixed-capacity least-recently-used model cache.
// It is not safe for concurrent use; the backend serializes access.
type lruCache struct {
	entries  map[string]*list.Element
	order    *list.List
	capacity int
}

type lruEntry struct {
	key   string
	model *model.Model
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

func (c *lruCache) get(key string) (*model.Model, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(el)

	return el.Value.(*lruEntry).model, true
}

func (c *lruCache) put(key string, m *model.Model) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).model = m
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, model: m})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}

func (c *lruCache) remove(key string) {
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

func (c *lruCache) len() int {
	return c.order.Len()
}
