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

package clientconn

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/cursor"
	"github.com/DataFlood/DataFlood/internal/handler"
	"github.com/DataFlood/DataFlood/internal/storage"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/wire"
)

func startListener(t *testing.T) net.Addr {
	t.Helper()

	l := zaptest.NewLogger(t)

	backend, err := storage.New(t.TempDir(), 0, l)
	require.NoError(t, err)

	h := handler.New(&handler.NewOpts{
		L:        l,
		Registry: collection.NewRegistry(backend, nil, l),
		Cursors:  cursor.NewRegistry(0, 0, l),
	})

	listener := NewListener(&NewListenerOpts{
		ListenAddr: "127.0.0.1:0",
		Handler:    h,
		Logger:     l,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		_ = listener.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("listener did not stop")
		}
	})

	return listener.Addr()
}

type client struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	requestID int32
}

func dial(t *testing.T, addr net.Addr) *client {
	t.Helper()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

// command round-trips one OP_MSG command and returns the reply document.
func (c *client) command(t *testing.T, command *types.Document) *types.Document {
	t.Helper()

	msg, err := wire.NewOpMsg(command)
	require.NoError(t, err)

	b, err := msg.MarshalBinary()
	require.NoError(t, err)

	c.requestID++
	header := &wire.MsgHeader{
		MessageLength: int32(len(b) + wire.MsgHeaderLen),
		RequestID:     c.requestID,
		OpCode:        wire.OpCodeMsg,
	}

	require.NoError(t, wire.WriteMessage(c.w, header, msg))
	require.NoError(t, c.w.Flush())

	resHeader, resBody, err := wire.ReadMessage(c.r)
	require.NoError(t, err)
	require.Equal(t, c.requestID, resHeader.ResponseTo)
	require.Equal(t, wire.OpCodeMsg, resHeader.OpCode)

	res, err := resBody.(*wire.OpMsg).Document()
	require.NoError(t, err)

	return res
}

func cdoc(pairs ...any) *types.Document {
	d := types.MakeDocument(len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1])
	}

	return d
}

func TestConnLifecycle(t *testing.T) {
	t.Parallel()

	addr := startListener(t)
	c := dial(t, addr)

	// handshake
	res := c.command(t, cdoc("hello", int32(1), "$db", "admin"))
	ok, err := res.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, float64(1), ok)

	// train a model
	docs := types.MakeArray(10)
	for i := 0; i < 10; i++ {
		require.NoError(t, docs.Append(cdoc("value", int32(i))))
	}

	res = c.command(t, cdoc("insert", "numbers", "$db", "test", "documents", docs))
	ok, err = res.Get("ok")
	require.NoError(t, err)
	require.Equal(t, float64(1), ok)

	n, err := res.Get("n")
	require.NoError(t, err)
	assert.Equal(t, int32(10), n)

	// query the synthesized collection
	res = c.command(t, cdoc("find", "numbers", "$db", "test", "limit", int64(5)))
	ok, err = res.Get("ok")
	require.NoError(t, err)
	require.Equal(t, float64(1), ok)

	cur, err := res.Get("cursor")
	require.NoError(t, err)

	batch, err := cur.(*types.Document).Get("firstBatch")
	require.NoError(t, err)
	assert.Equal(t, 5, batch.(*types.Array).Len())

	// a command failure keeps the connection usable
	res = c.command(t, cdoc("bogus", int32(1), "$db", "test"))
	ok, err = res.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, float64(0), ok)

	res = c.command(t, cdoc("ping", int32(1), "$db", "admin"))
	ok, err = res.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, float64(1), ok)
}

func TestConnLegacyHandshake(t *testing.T) {
	t.Parallel()

	addr := startListener(t)
	c := dial(t, addr)

	query := &wire.OpQuery{
		FullCollectionName: "admin.$cmd",
		NumberToReturn:     -1,
		Query:              cdoc("isMaster", int32(1)),
	}

	b, err := query.MarshalBinary()
	require.NoError(t, err)

	c.requestID++
	header := &wire.MsgHeader{
		MessageLength: int32(len(b) + wire.MsgHeaderLen),
		RequestID:     c.requestID,
		OpCode:        wire.OpCodeQuery,
	}

	require.NoError(t, wire.WriteMessage(c.w, header, query))
	require.NoError(t, c.w.Flush())

	resHeader, resBody, err := wire.ReadMessage(c.r)
	require.NoError(t, err)
	assert.Equal(t, wire.OpCodeReply, resHeader.OpCode)
	assert.Equal(t, c.requestID, resHeader.ResponseTo)

	reply := resBody.(*wire.OpReply)
	require.Len(t, reply.Documents, 1)

	ok, err := reply.Documents[0].Get("ok")
	require.NoError(t, err)
	assert.Equal(t, float64(1), ok)
}

func TestConnMultipleClients(t *testing.T) {
	t.Parallel()

	addr := startListener(t)

	a := dial(t, addr)
	b := dial(t, addr)

	resA := a.command(t, cdoc("ping", int32(1), "$db", "admin"))
	resB := b.command(t, cdoc("ping", int32(1), "$db", "admin"))

	okA, _ := resA.Get("ok")
	okB, _ := resB.Get("ok")
	assert.Equal(t, float64(1), okA)
	assert.Equal(t, float64(1), okB)
}
