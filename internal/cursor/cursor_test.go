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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DataFlood/DataFlood/internal/types"
)

func buffer(n int) []*types.Document {
	docs := make([]*types.Document, n)
	for i := range docs {
		d := types.MakeDocument(1)
		d.Set("n", int32(i))
		docs[i] = d
	}

	return docs
}

func TestNextBatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, 0, zaptest.NewLogger(t))

	c := r.New(&NewParams{DB: "test", Collection: "values", Buffer: buffer(237)})
	require.NotZero(t, c.ID())
	assert.Equal(t, "test.values", c.Namespace())

	var total int
	for _, want := range []int{50, 50, 50, 50, 37} {
		batch, exhausted := c.NextBatch(50)
		assert.Len(t, batch, want)
		assert.Equal(t, want == 37, exhausted)
		total += len(batch)
	}
	assert.Equal(t, 237, total)

	batch, exhausted := c.NextBatch(50)
	assert.Empty(t, batch)
	assert.True(t, exhausted)
}

func TestNextBatchDrain(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, 0, zaptest.NewLogger(t))
	c := r.New(&NewParams{DB: "test", Collection: "values", Buffer: buffer(10)})

	batch, exhausted := c.NextBatch(0)
	assert.Len(t, batch, 10)
	assert.True(t, exhausted)
}

func TestNextBatchLimit(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, 0, zaptest.NewLogger(t))
	c := r.New(&NewParams{DB: "test", Collection: "values", Buffer: buffer(100), Limit: 7})

	batch, exhausted := c.NextBatch(5)
	assert.Len(t, batch, 5)
	assert.False(t, exhausted)

	batch, exhausted = c.NextBatch(5)
	assert.Len(t, batch, 2, "the limit caps the total sent")
	assert.True(t, exhausted)
}

func TestRegistryGetClose(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, 0, zaptest.NewLogger(t))
	c := r.New(&NewParams{DB: "test", Collection: "values", Buffer: buffer(5)})

	assert.Same(t, c, r.Get(c.ID()))
	assert.Nil(t, r.Get(c.ID()+1))

	assert.True(t, r.Close(c.ID()))
	assert.False(t, r.Close(c.ID()))
	assert.Nil(t, r.Get(c.ID()))
	assert.Zero(t, r.Len())

	batch, exhausted := c.NextBatch(5)
	assert.Empty(t, batch)
	assert.True(t, exhausted)
}

func TestRegistryEviction(t *testing.T) {
	t.Parallel()

	r := NewRegistry(3, 0, zaptest.NewLogger(t))

	first := r.New(&NewParams{DB: "test", Collection: "values", Buffer: buffer(1)})
	time.Sleep(time.Millisecond)

	for i := 0; i < 3; i++ {
		r.New(&NewParams{DB: "test", Collection: "values", Buffer: buffer(1)})
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 3, r.Len())
	assert.Nil(t, r.Get(first.ID()), "the oldest cursor is evicted first")
}

func TestRegistryCloseConn(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, 0, zaptest.NewLogger(t))

	a := r.New(&NewParams{DB: "test", Collection: "values", ConnID: "conn-a", Buffer: buffer(1)})
	b := r.New(&NewParams{DB: "test", Collection: "values", ConnID: "conn-b", Buffer: buffer(1)})

	r.CloseConn("conn-a")

	assert.Nil(t, r.Get(a.ID()))
	assert.Same(t, b, r.Get(b.ID()))
}
