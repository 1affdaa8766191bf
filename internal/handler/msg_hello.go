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

package handler

import (
	"context"
	"time"

	"github.com/DataFlood/DataFlood/internal/types"
)

// Wire protocol limits advertised during the handshake.
const (
	maxBSONObjectSize   = int32(16777216)
	maxMessageSizeBytes = int32(48000000)
	maxWriteBatchSize   = int32(100000)

	minWireVersion = int32(0)
	maxWireVersion = int32(17)
)

// msgHello serves the hello and isMaster handshake commands.
func (h *Handler) msgHello(ctx context.Context, document *types.Document) (*types.Document, error) {
	return h.helloResponse(), nil
}

func (h *Handler) helloResponse() *types.Document {
	res := types.MakeDocument(10)
	res.Set("ismaster", true)
	res.Set("isWritablePrimary", true)
	res.Set("maxBsonObjectSize", maxBSONObjectSize)
	res.Set("maxMessageSizeBytes", maxMessageSizeBytes)
	res.Set("maxWriteBatchSize", maxWriteBatchSize)
	res.Set("localTime", time.Now().UTC())
	res.Set("minWireVersion", minWireVersion)
	res.Set("maxWireVersion", maxWireVersion)
	res.Set("readOnly", false)
	res.Set("ok", float64(1))

	return res
}
