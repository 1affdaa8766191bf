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

// OpQueryFlagBit is a bit that modifies the behavior of OpQuery.
type OpQueryFlagBit flagBit

const (
	// OpQueryTailableCursor is set for tailable cursors.
	OpQueryTailableCursor = OpQueryFlagBit(1 << 1) // TailableCursor

	// OpQuerySlaveOk allows reading from secondaries.
	OpQuerySlaveOk = OpQueryFlagBit(1 << 2) // SlaveOk

	// OpQueryNoCursorTimeout disables the idle cursor timeout.
	OpQueryNoCursorTimeout = OpQueryFlagBit(1 << 4) // NoCursorTimeout

	// OpQueryAwaitData makes a tailable cursor block.
	OpQueryAwaitData = OpQueryFlagBit(1 << 5) // AwaitData

	// OpQueryExhaust streams multiple replies.
	OpQueryExhaust = OpQueryFlagBit(1 << 6) // Exhaust

	// OpQueryPartial returns partial results on shard failure.
	OpQueryPartial = OpQueryFlagBit(1 << 7) // Partial
)

// String implements fmt.Stringer.
func (bit OpQueryFlagBit) String() string {
	switch bit {
	case OpQueryTailableCursor:
		return "TailableCursor"
	case OpQuerySlaveOk:
		return "SlaveOk"
	case OpQueryNoCursorTimeout:
		return "NoCursorTimeout"
	case OpQueryAwaitData:
		return "AwaitData"
	case OpQueryExhaust:
		return "Exhaust"
	case OpQueryPartial:
		return "Partial"
	default:
		return fmt.Sprintf("OpQueryFlagBit(%d)", uint32(bit))
	}
}

// OpQueryFlags is the flag word of an OpQuery.
type OpQueryFlags flags

// String implements fmt.Stringer.
func (f OpQueryFlags) String() string {
	return flags(f).string(func(bit flagBit) string {
		return OpQueryFlagBit(bit).String()
	})
}

// FlagSet reports whether the given flag is set.
func (f OpQueryFlags) FlagSet(bit OpQueryFlagBit) bool {
	return f&OpQueryFlags(bit) != 0
}

// check interfaces
var (
	_ fmt.Stringer = OpQueryFlagBit(0)
	_ fmt.Stringer = OpQueryFlags(0)
)
