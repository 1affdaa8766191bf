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

// Package handler dispatches wire protocol commands to collections.
package handler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/cursor"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
	"github.com/DataFlood/DataFlood/internal/wire"
)

// ConnInfo identifies the client connection a request arrived on.
type ConnInfo struct {
	// ID is unique per accepted connection; cursors are bound to it.
	ID string

	// PeerAddr is the remote address for logging and whatsmyuri.
	PeerAddr string
}

// NewOpts are the options for creating a handler.
type NewOpts struct {
	L        *zap.Logger
	Registry *collection.Registry
	Cursors  *cursor.Registry
}

// Handler routes commands to the collection registry.
type Handler struct {
	l        *zap.Logger
	registry *collection.Registry
	cursors  *cursor.Registry

	startTime time.Time

	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
}

// New creates a handler.
func New(opts *NewOpts) *Handler {
	return &Handler{
		l:         opts.L,
		registry:  opts.Registry,
		cursors:   opts.Cursors,
		startTime: time.Now(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dataflood",
				Subsystem: "handler",
				Name:      "requests_total",
				Help:      "Total commands handled.",
			},
			[]string{"command"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dataflood",
				Subsystem: "handler",
				Name:      "responses_total",
				Help:      "Total command responses by result.",
			},
			[]string{"command", "result"},
		),
	}
}

// Registry returns the collection registry the handler routes to.
func (h *Handler) Registry() *collection.Registry {
	return h.registry
}

// Cursors returns the cursor registry.
func (h *Handler) Cursors() *cursor.Registry {
	return h.cursors
}

// HandleOpMsg processes an OP_MSG request and always produces a reply:
// command failures come back as error documents.
func (h *Handler) HandleOpMsg(ctx context.Context, conn *ConnInfo, msg *wire.OpMsg) (*wire.OpMsg, error) {
	document, err := msg.Document()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	cmd := "<empty>"
	if keys := document.Keys(); len(keys) > 0 {
		cmd = keys[0]
	}

	h.requests.WithLabelValues(cmd).Inc()

	resDoc, err := h.dispatch(ctx, conn, cmd, document)
	if err != nil {
		h.responses.WithLabelValues(cmd, "error").Inc()
		h.l.Debug("command failed", zap.String("command", cmd), zap.Error(err))

		resDoc = errorDocument(err)
	} else {
		h.responses.WithLabelValues(cmd, "ok").Inc()
	}

	reply, err := wire.NewOpMsg(resDoc)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return reply, nil
}

// HandleOpQuery processes a legacy OP_QUERY request. Only the handshake
// pseudo-commands on *.$cmd are served; everything else is an error reply.
func (h *Handler) HandleOpQuery(ctx context.Context, conn *ConnInfo, query *wire.OpQuery) (*wire.OpReply, error) {
	reply := &wire.OpReply{NumberReturned: 1}

	cmd := "<empty>"
	if query.Query != nil {
		if keys := query.Query.Keys(); len(keys) > 0 {
			cmd = keys[0]
		}
	}

	h.requests.WithLabelValues(cmd).Inc()

	switch cmd {
	case "isMaster", "ismaster", "hello":
		reply.Documents = []*types.Document{h.helloResponse()}
		h.responses.WithLabelValues(cmd, "ok").Inc()
	default:
		err := NewCommandErrorf(ErrCommandNotFound, "no such command: '%s'", cmd)
		reply.Documents = []*types.Document{errorDocument(err)}
		h.responses.WithLabelValues(cmd, "error").Inc()
	}

	return reply, nil
}

// HandleOpGetMore serves a legacy OP_GET_MORE against an open cursor.
func (h *Handler) HandleOpGetMore(ctx context.Context, conn *ConnInfo, op *wire.OpGetMore) (*wire.OpReply, error) {
	c := h.cursors.Get(op.CursorID)
	if c == nil {
		return &wire.OpReply{
			ResponseFlags: wire.OpReplyFlags(wire.OpReplyCursorNotFound),
			CursorID:      op.CursorID,
		}, nil
	}

	batch, _ := c.NextBatch(int(op.NumberToReturn))

	cursorID := c.ID()
	if len(batch) == 0 {
		h.cursors.Close(cursorID)
		cursorID = 0
	}

	return &wire.OpReply{
		Documents:      batch,
		CursorID:       cursorID,
		NumberReturned: int32(len(batch)),
	}, nil
}

// HandleOpKillCursors closes the requested cursors. No reply is sent.
func (h *Handler) HandleOpKillCursors(ctx context.Context, conn *ConnInfo, op *wire.OpKillCursors) {
	for _, id := range op.CursorIDs {
		h.cursors.Close(id)
	}
}

// HandleOpInsert serves a legacy fire-and-forget insert.
func (h *Handler) HandleOpInsert(ctx context.Context, conn *ConnInfo, op *wire.OpInsert) error {
	db, coll, err := splitNamespace(op.FullCollectionName)
	if err != nil {
		return err
	}

	c, err := h.registry.Collection(db, coll)
	if err != nil {
		return lazyerrors.Error(err)
	}

	_, err = c.Insert(op.Documents)

	return err
}

// HandleOpUpdate serves a legacy fire-and-forget update.
func (h *Handler) HandleOpUpdate(ctx context.Context, conn *ConnInfo, op *wire.OpUpdate) error {
	db, coll, err := splitNamespace(op.FullCollectionName)
	if err != nil {
		return err
	}

	c, err := h.registry.Collection(db, coll)
	if err != nil {
		return lazyerrors.Error(err)
	}

	multi := op.Flags&wire.OpUpdateMultiUpdate != 0
	upsert := op.Flags&wire.OpUpdateUpsert != 0

	_, err = c.Update(op.Selector, op.Update, multi, upsert)

	return err
}

// HandleOpDelete serves a legacy fire-and-forget delete.
func (h *Handler) HandleOpDelete(ctx context.Context, conn *ConnInfo, op *wire.OpDelete) error {
	db, coll, err := splitNamespace(op.FullCollectionName)
	if err != nil {
		return err
	}

	c, err := h.registry.Collection(db, coll)
	if err != nil {
		return lazyerrors.Error(err)
	}

	limit := int64(0)
	if op.Flags&wire.OpDeleteSingleRemove != 0 {
		limit = 1
	}

	_, err = c.Delete(op.Selector, limit)

	return err
}

// CloseConn releases per-connection state.
func (h *Handler) CloseConn(conn *ConnInfo) {
	h.cursors.CloseConn(conn.ID)
}

func (h *Handler) dispatch(ctx context.Context, conn *ConnInfo, cmd string, document *types.Document) (*types.Document, error) {
	switch cmd {
	case "hello", "isMaster", "ismaster":
		return h.msgHello(ctx, document)
	case "ping":
		return h.msgPing(ctx, document)
	case "buildInfo", "buildinfo":
		return h.msgBuildInfo(ctx, document)
	case "getParameter":
		return h.msgGetParameter(ctx, document)
	case "whatsmyuri":
		return h.msgWhatsMyURI(ctx, conn, document)
	case "connectionStatus":
		return h.msgConnectionStatus(ctx, document)
	case "getLog":
		return h.msgGetLog(ctx, document)
	case "serverStatus":
		return h.msgServerStatus(ctx, document)
	case "getCmdLineOpts":
		return h.msgGetCmdLineOpts(ctx, document)

	case "find":
		return h.msgFind(ctx, conn, document)
	case "getMore":
		return h.msgGetMore(ctx, document)
	case "killCursors":
		return h.msgKillCursors(ctx, document)
	case "insert":
		return h.msgInsert(ctx, document)
	case "update":
		return h.msgUpdate(ctx, document)
	case "delete":
		return h.msgDelete(ctx, document)
	case "findAndModify", "findandmodify":
		return h.msgFindAndModify(ctx, document)
	case "aggregate":
		return h.msgAggregate(ctx, conn, document)
	case "count":
		return h.msgCount(ctx, document)
	case "distinct":
		return h.msgDistinct(ctx, document)
	case "explain":
		return h.msgExplain(ctx, document)

	case "listDatabases":
		return h.msgListDatabases(ctx, document)
	case "listCollections":
		return h.msgListCollections(ctx, document)
	case "listIndexes":
		return h.msgListIndexes(ctx, document)
	case "createIndexes":
		return h.msgCreateIndexes(ctx, document)
	case "dropIndexes":
		return h.msgDropIndexes(ctx, document)
	case "create":
		return h.msgCreate(ctx, document)
	case "drop":
		return h.msgDrop(ctx, document)
	case "dropDatabase":
		return h.msgDropDatabase(ctx, document)
	case "dbStats":
		return h.msgDBStats(ctx, document)
	case "collStats":
		return h.msgCollStats(ctx, document)

	default:
		return nil, NewCommandErrorf(ErrCommandNotFound, "no such command: '%s'", cmd)
	}
}

// Describe implements prometheus.Collector.
func (h *Handler) Describe(ch chan<- *prometheus.Desc) {
	h.requests.Describe(ch)
	h.responses.Describe(ch)
}

// Collect implements prometheus.Collector.
func (h *Handler) Collect(ch chan<- prometheus.Metric) {
	h.requests.Collect(ch)
	h.responses.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Handler)(nil)
)
