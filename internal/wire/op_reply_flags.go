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

package wire

import "fmt"

// OpReplyFlagBit is a bit of an OpReply's response flags.
type OpReplyFlagBit flagBit

const (
	// OpReplyCursorNotFound is set when the requested cursor id is unknown.
	OpReplyCursorNotFound = OpReplyFlagBit(1 << 0) // CursorNotFound

	// OpReplyQueryFailure is set when the query failed; the reply holds one error document.
	OpReplyQueryFailure = OpReplyFlagBit(1 << 1) // QueryFailure

	// OpReplyShardConfigStale is unused by this server.
	OpReplyShardConfigStale = OpReplyFlagBit(1 << 2) // ShardConfigStale

	// OpReplyAwaitCapable is set to indicate getMore await support.
	OpReplyAwaitCapable = OpReplyFlagBit(1 << 3) // AwaitCapable
)

// String implements fmt.Stringer.
func (bit OpReplyFlagBit) String() string {
	switch bit {
	case OpReplyCursorNotFound:
		return "CursorNotFound"
	case OpReplyQueryFailure:
		return "QueryFailure"
	case OpReplyShardConfigStale:
		return "ShardConfigStale"
	case OpReplyAwaitCapable:
		return "AwaitCapable"
	default:
		return fmt.Sprintf("OpReplyFlagBit(%d)", uint32(bit))
	}
}

// OpReplyFlags is the flag word of an OpReply.
type OpReplyFlags flags

// String implements fmt.Stringer.
func (f OpReplyFlags) String() string {
	return flags(f).string(func(bit flagBit) string {
		return OpReplyFlagBit(bit).String()
	})
}

// FlagSet reports whether the given flag is set.
func (f OpReplyFlags) FlagSet(bit OpReplyFlagBit) bool {
	return f&OpReplyFlags(bit) != 0
}

// check interfaces
var (
	_ fmt.Stringer = OpReplyFlagBit(0)
	_ fmt.Stringer = OpReplyFlags(0)
)
