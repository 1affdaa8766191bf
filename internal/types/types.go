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

// Package types provides Go types matching BSON types that don't have built-in Go equivalents.
//
// Composite types (*Document and *Array) are passed by pointers.
// Scalar types are passed by values:
//
//	float64          64-bit binary floating point
//	string           UTF-8 string
//	types.Binary     Binary data
//	types.ObjectID   ObjectId
//	bool             Boolean
//	time.Time        UTC datetime
//	types.NullType   Null
//	types.Regex      Regular expression
//	int32            32-bit integer
//	types.Timestamp  Timestamp
//	int64            64-bit integer
//	types.Decimal128 128-bit decimal floating point
//	types.Code       JavaScript code
//	types.CodeWithScope  JavaScript code with scope
//	types.MinKeyType / types.MaxKeyType
package types

import (
	"fmt"
	"time"
)

// MaxDocumentLen is the maximum allowed length of a serialized document.
const MaxDocumentLen = 16777216

type (
	// NullType represents BSON type Null.
	//
	// Most callers should use the types.Null value instead.
	NullType struct{}

	// Timestamp represents BSON type Timestamp.
	//
	// The high 32 bits are seconds since epoch, the low 32 bits are an increment.
	Timestamp uint64

	// Regex represents BSON type Regex.
	Regex struct {
		Pattern string
		Options string
	}

	// Decimal128 represents BSON type Decimal128 as an opaque 128-bit value.
	Decimal128 struct {
		L uint64 // low bits
		H uint64 // high bits
	}

	// Code represents BSON type JavaScript code.
	Code string

	// CodeWithScope represents BSON type JavaScript code with scope.
	CodeWithScope struct {
		Code  string
		Scope *Document
	}

	// MinKeyType represents BSON type MinKey.
	MinKeyType struct{}

	// MaxKeyType represents BSON type MaxKey.
	MaxKeyType struct{}
)

// Singleton values for types without state.
var (
	Null   = NullType{}
	MinKey = MinKeyType{}
	MaxKey = MaxKeyType{}
)

// BinarySubtype represents BSON Binary's subtype.
type BinarySubtype byte

const (
	// BinaryGeneric represents a generic binary subtype.
	BinaryGeneric = BinarySubtype(0x00)

	// BinaryFunction represents a function.
	BinaryFunction = BinarySubtype(0x01)

	// BinaryUUID represents a UUID.
	BinaryUUID = BinarySubtype(0x04)

	// BinaryMD5 represents an MD5 hash.
	BinaryMD5 = BinarySubtype(0x05)

	// BinaryEncrypted represents an encrypted value.
	BinaryEncrypted = BinarySubtype(0x06)

	// BinaryUser represents a user-defined subtype.
	BinaryUser = BinarySubtype(0x80)
)

// Binary represents BSON type Binary.
type Binary struct {
	B       []byte
	Subtype BinarySubtype
}

// NewTimestamp creates a Timestamp from seconds and increment.
func NewTimestamp(t time.Time, increment uint32) Timestamp {
	return Timestamp(uint64(t.Unix())<<32 | uint64(increment))
}

// Time returns the time part of the Timestamp.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts>>32), 0)
}

// Increment returns the increment part of the Timestamp.
func (ts Timestamp) Increment() uint32 {
	return uint32(ts)
}

// validateValue returns an error if the value is not a valid BSON value representation.
func validateValue(value any) error {
	switch value := value.(type) {
	case *Document:
		if value == nil {
			return fmt.Errorf("types.validateValue: *Document is nil")
		}
		return nil
	case *Array:
		if value == nil {
			return fmt.Errorf("types.validateValue: *Array is nil")
		}
		return nil
	case float64, string, Binary, ObjectID, bool, time.Time, NullType, Regex,
		int32, Timestamp, int64, Decimal128, Code, CodeWithScope, MinKeyType, MaxKeyType:
		return nil
	default:
		return fmt.Errorf("types.validateValue: unsupported type: %[1]T (%[1]v)", value)
	}
}

// isScalar reports whether v is a BSON scalar value.
func isScalar(v any) bool {
	switch v.(type) {
	case float64, string, Binary, ObjectID, bool, time.Time, NullType, Regex,
		int32, Timestamp, int64, Decimal128, Code, CodeWithScope, MinKeyType, MaxKeyType:
		return true
	}

	return false
}

// deepCopy returns a deep copy of the given value.
//
// It panics for invalid types.
func deepCopy(value any) any {
	switch value := value.(type) {
	case *Document:
		return value.DeepCopy()
	case *Array:
		return value.DeepCopy()
	case Binary:
		b := make([]byte, len(value.B))
		copy(b, value.B)
		return Binary{B: b, Subtype: value.Subtype}
	case CodeWithScope:
		res := CodeWithScope{Code: value.Code}
		if value.Scope != nil {
			res.Scope = value.Scope.DeepCopy()
		}
		return res
	default:
		if err := validateValue(value); err != nil {
			panic(err)
		}
		return value
	}
}
