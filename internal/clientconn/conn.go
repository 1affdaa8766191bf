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

// Package clientconn accepts client connections and runs their request
// loops.
package clientconn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/handler"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
	"github.com/DataFlood/DataFlood/internal/wire"
)

// lastRequestID is the source of response request ids across all
// connections.
var lastRequestID atomic.Int32

// conn is a single accepted client connection.
type conn struct {
	netConn net.Conn
	h       *handler.Handler
	l       *zap.Logger
	info    *handler.ConnInfo
}

// newConn wraps an accepted network connection.
func newConn(netConn net.Conn, h *handler.Handler, l *zap.Logger) *conn {
	info := &handler.ConnInfo{
		ID:       fmt.Sprintf("%s-%d", netConn.RemoteAddr(), lastRequestID.Add(1)),
		PeerAddr: netConn.RemoteAddr().String(),
	}

	return &conn{
		netConn: netConn,
		h:       h,
		l:       l.With(zap.String("conn", info.ID)),
		info:    info,
	}
}

// run serves the connection until the client disconnects, the context is
// canceled, or a protocol error occurs.
//
// Command failures are reported to the client as error documents and do
// not terminate the loop; framing errors do.
func (c *conn) run(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = lazyerrors.Errorf("panic: %v", p)
		}

		c.h.CloseConn(c.info)
		_ = c.netConn.Close()
	}()

	// the deadline watcher unblocks reads when the context ends
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = c.netConn.Close()
		case <-done:
		}
	}()

	r := bufio.NewReader(c.netConn)
	w := bufio.NewWriter(c.netConn)

	for {
		reqHeader, reqBody, err := wire.ReadMessage(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return lazyerrors.Error(err)
		}

		resBody, routeErr := c.route(ctx, reqHeader, reqBody)

		if resBody != nil {
			if err := c.writeReply(w, reqHeader, resBody); err != nil {
				return err
			}
		}

		// protocol-level failures close the connection after the
		// error reply, if any, has been written
		if routeErr != nil {
			return routeErr
		}
	}
}

// route dispatches one request. A nil response means no reply is sent.
func (c *conn) route(ctx context.Context, reqHeader *wire.MsgHeader, reqBody wire.MsgBody) (wire.MsgBody, error) {
	c.l.Debug(
		"request",
		zap.Int32("id", reqHeader.RequestID),
		zap.Stringer("opcode", reqHeader.OpCode),
	)

	switch body := reqBody.(type) {
	case *wire.OpMsg:
		res, err := c.h.HandleOpMsg(ctx, c.info, body)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		if body.Flags.FlagSet(wire.OpMsgMoreToCome) {
			return nil, nil
		}

		return res, nil

	case *wire.OpQuery:
		return c.h.HandleOpQuery(ctx, c.info, body)

	case *wire.OpGetMore:
		return c.h.HandleOpGetMore(ctx, c.info, body)

	case *wire.OpKillCursors:
		c.h.HandleOpKillCursors(ctx, c.info, body)
		return nil, nil

	case *wire.OpInsert:
		if err := c.h.HandleOpInsert(ctx, c.info, body); err != nil {
			c.l.Warn("legacy insert failed", zap.Error(err))
		}
		return nil, nil

	case *wire.OpUpdate:
		if err := c.h.HandleOpUpdate(ctx, c.info, body); err != nil {
			c.l.Warn("legacy update failed", zap.Error(err))
		}
		return nil, nil

	case *wire.OpDelete:
		if err := c.h.HandleOpDelete(ctx, c.info, body); err != nil {
			c.l.Warn("legacy delete failed", zap.Error(err))
		}
		return nil, nil

	case *wire.OpCompressed:
		return errorReply("compression is not supported"), lazyerrors.New("compression is not supported")

	default:
		return errorReply(fmt.Sprintf("unhandled opcode %s", reqHeader.OpCode)), lazyerrors.Errorf("unhandled message %T", body)
	}
}

// errorReply builds a best-effort error reply for protocol-level failures.
func errorReply(msg string) *wire.OpReply {
	doc := types.MakeDocument(2)
	doc.Set("ok", float64(0))
	doc.Set("errmsg", msg)

	return &wire.OpReply{
		Documents:      []*types.Document{doc},
		NumberReturned: 1,
	}
}

func (c *conn) writeReply(w *bufio.Writer, reqHeader *wire.MsgHeader, resBody wire.MsgBody) error {
	b, err := resBody.MarshalBinary()
	if err != nil {
		return lazyerrors.Error(err)
	}

	opCode := wire.OpCodeMsg
	if _, isReply := resBody.(*wire.OpReply); isReply {
		opCode = wire.OpCodeReply
	}

	resHeader := &wire.MsgHeader{
		MessageLength: int32(len(b) + wire.MsgHeaderLen),
		RequestID:     lastRequestID.Add(1),
		ResponseTo:    reqHeader.RequestID,
		OpCode:        opCode,
	}

	if err := wire.WriteMessage(w, resHeader, resBody); err != nil {
		return lazyerrors.Error(err)
	}

	if err := w.Flush(); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}
