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

// OpMsgFlagBit is a bit that modifies the format and behavior of OpMsg.
type OpMsgFlagBit flagBit

const (
	// OpMsgChecksumPresent indicates that there is a CRC-32C checksum in the message.
	OpMsgChecksumPresent = OpMsgFlagBit(1 << 0) // checksumPresent

	// OpMsgMoreToCome indicates that another message is coming; no reply is expected.
	OpMsgMoreToCome = OpMsgFlagBit(1 << 1) // moreToCome

	// OpMsgExhaustAllowed indicates that the client can handle multiple replies.
	OpMsgExhaustAllowed = OpMsgFlagBit(1 << 16) // exhaustAllowed
)

// String implements fmt.Stringer.
func (bit OpMsgFlagBit) String() string {
	switch bit {
	case OpMsgChecksumPresent:
		return "checksumPresent"
	case OpMsgMoreToCome:
		return "moreToCome"
	case OpMsgExhaustAllowed:
		return "exhaustAllowed"
	default:
		return fmt.Sprintf("OpMsgFlagBit(%d)", uint32(bit))
	}
}

// OpMsgFlags is the flag word of an OpMsg.
type OpMsgFlags flags

// String implements fmt.Stringer.
func (f OpMsgFlags) String() string {
	return flags(f).string(func(bit flagBit) string {
		return OpMsgFlagBit(bit).String()
	})
}

// FlagSet reports whether the given flag is set.
func (f OpMsgFlags) FlagSet(bit OpMsgFlagBit) bool {
	return f&OpMsgFlags(bit) != 0
}

// check interfaces
var (
	_ fmt.Stringer = OpMsgFlagBit(0)
	_ fmt.Stringer = OpMsgFlags(0)
)
