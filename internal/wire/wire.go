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

// Package wire implements the MongoDB wire protocol framing.
package wire

import (
	"fmt"
	"strings"
)

// OpCode represents a wire operation code.
type OpCode int32

const (
	// OpCodeReply is used for replies to legacy client requests.
	OpCodeReply = OpCode(1)

	// OpCodeUpdate is a legacy update request.
	OpCodeUpdate = OpCode(2001)

	// OpCodeInsert is a legacy insert request.
	OpCodeInsert = OpCode(2002)

	// OpCodeQuery is a legacy query request.
	OpCodeQuery = OpCode(2004)

	// OpCodeGetMore is a legacy cursor iteration request.
	OpCodeGetMore = OpCode(2005)

	// OpCodeDelete is a legacy delete request.
	OpCodeDelete = OpCode(2006)

	// OpCodeKillCursors is a legacy cursor release request.
	OpCodeKillCursors = OpCode(2007)

	// OpCodeCompressed wraps another message in a compressed envelope.
	OpCodeCompressed = OpCode(2012)

	// OpCodeMsg is the current opcode for both requests and replies.
	OpCodeMsg = OpCode(2013)
)

// String implements fmt.Stringer.
func (c OpCode) String() string {
	switch c {
	case OpCodeReply:
		return "OP_REPLY"
	case OpCodeUpdate:
		return "OP_UPDATE"
	case OpCodeInsert:
		return "OP_INSERT"
	case OpCodeQuery:
		return "OP_QUERY"
	case OpCodeGetMore:
		return "OP_GET_MORE"
	case OpCodeDelete:
		return "OP_DELETE"
	case OpCodeKillCursors:
		return "OP_KILL_CURSORS"
	case OpCodeCompressed:
		return "OP_COMPRESSED"
	case OpCodeMsg:
		return "OP_MSG"
	default:
		return fmt.Sprintf("OpCode(%d)", int32(c))
	}
}

// flagBit is a single bit of a message's flag word.
type flagBit uint32

// flags is a message's flag word.
type flags uint32

// string formats set bits using the given bit namer.
func (f flags) string(namer func(flagBit) string) string {
	res := make([]string, 0, 2)

	for i := 0; i < 32; i++ {
		if bit := flagBit(1 << i); f&flags(bit) != 0 {
			res = append(res, namer(bit))
		}
	}

	return "[" + strings.Join(res, ", ") + "]"
}
