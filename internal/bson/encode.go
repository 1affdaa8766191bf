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

package bson

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cristalhq/bson/bsonproto"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// EncodeDocument encodes the document into its BSON binary form.
//
// The declared size is computed exactly; a trailing NUL is always emitted.
func EncodeDocument(doc *types.Document) (RawDocument, error) {
	size := sizeDocument(doc)
	buf := bytes.NewBuffer(make([]byte, 0, size))

	if err := binary.Write(buf, binary.LittleEndian, uint32(size)); err != nil {
		return nil, lazyerrors.Error(err)
	}

	for _, key := range doc.Keys() {
		v, err := doc.Get(key)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		if err := encodeField(buf, key, v); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	if err := buf.WriteByte(0); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return buf.Bytes(), nil
}

// encodeArray encodes the array into its BSON binary form.
//
// Array keys on the wire are ASCII element indices.
func encodeArray(arr *types.Array) ([]byte, error) {
	size := sizeArray(arr)
	buf := bytes.NewBuffer(make([]byte, 0, size))

	if err := binary.Write(buf, binary.LittleEndian, uint32(size)); err != nil {
		return nil, lazyerrors.Error(err)
	}

	for i, v := range arr.Slice() {
		if err := encodeField(buf, strconv.Itoa(i), v); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	if err := buf.WriteByte(0); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return buf.Bytes(), nil
}

// encodeField encodes a single (tag, cstring key, value) element.
func encodeField(buf *bytes.Buffer, name string, v any) error {
	switch v := v.(type) {
	case *types.Document:
		buf.WriteByte(byte(tagDocument))
		writeCString(buf, name)

		b, err := EncodeDocument(v)
		if err != nil {
			return lazyerrors.Error(err)
		}
		buf.Write(b)

	case *types.Array:
		buf.WriteByte(byte(tagArray))
		writeCString(buf, name)

		b, err := encodeArray(v)
		if err != nil {
			return lazyerrors.Error(err)
		}
		buf.Write(b)

	default:
		return encodeScalarField(buf, name, v)
	}

	return nil
}

// encodeScalarField encodes a scalar element.
func encodeScalarField(buf *bytes.Buffer, name string, v any) error {
	switch v := v.(type) {
	case float64:
		buf.WriteByte(byte(tagFloat64))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeFloat64, func(b []byte) { bsonproto.EncodeFloat64(b, v) })

	case string:
		buf.WriteByte(byte(tagString))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeString(v), func(b []byte) { bsonproto.EncodeString(b, v) })

	case types.Binary:
		buf.WriteByte(byte(tagBinary))
		writeCString(buf, name)
		p := bsonproto.Binary{B: v.B, Subtype: bsonproto.BinarySubtype(v.Subtype)}
		writeScalar(buf, bsonproto.SizeBinary(p), func(b []byte) { bsonproto.EncodeBinary(b, p) })

	case types.ObjectID:
		buf.WriteByte(byte(tagObjectID))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeObjectID, func(b []byte) { bsonproto.EncodeObjectID(b, bsonproto.ObjectID(v)) })

	case bool:
		buf.WriteByte(byte(tagBool))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeBool, func(b []byte) { bsonproto.EncodeBool(b, v) })

	case time.Time:
		buf.WriteByte(byte(tagTime))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeTime, func(b []byte) { bsonproto.EncodeTime(b, v) })

	case types.NullType:
		buf.WriteByte(byte(tagNull))
		writeCString(buf, name)

	case types.Regex:
		buf.WriteByte(byte(tagRegex))
		writeCString(buf, name)
		p := bsonproto.Regex{Pattern: v.Pattern, Options: v.Options}
		writeScalar(buf, bsonproto.SizeRegex(p), func(b []byte) { bsonproto.EncodeRegex(b, p) })

	case int32:
		buf.WriteByte(byte(tagInt32))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeInt32, func(b []byte) { bsonproto.EncodeInt32(b, v) })

	case types.Timestamp:
		buf.WriteByte(byte(tagTimestamp))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeTimestamp, func(b []byte) { bsonproto.EncodeTimestamp(b, bsonproto.Timestamp(v)) })

	case int64:
		buf.WriteByte(byte(tagInt64))
		writeCString(buf, name)
		writeScalar(buf, bsonproto.SizeInt64, func(b []byte) { bsonproto.EncodeInt64(b, v) })

	case types.Decimal128:
		buf.WriteByte(byte(tagDecimal128))
		writeCString(buf, name)

		// bsonproto has no decimal128 codec; the layout is two
		// little-endian uint64 halves, low first
		var d [decimal128Len]byte
		binary.LittleEndian.PutUint64(d[0:8], v.L)
		binary.LittleEndian.PutUint64(d[8:16], v.H)
		buf.Write(d[:])

	case types.Code:
		buf.WriteByte(byte(tagJavaScript))
		writeCString(buf, name)
		s := string(v)
		writeScalar(buf, bsonproto.SizeString(s), func(b []byte) { bsonproto.EncodeString(b, s) })

	case types.CodeWithScope:
		buf.WriteByte(byte(tagJavaScriptScope))
		writeCString(buf, name)

		scope := v.Scope
		if scope == nil {
			scope = types.MakeDocument(0)
		}

		sb, err := EncodeDocument(scope)
		if err != nil {
			return lazyerrors.Error(err)
		}

		total := 4 + bsonproto.SizeString(v.Code) + len(sb)
		if err := binary.Write(buf, binary.LittleEndian, uint32(total)); err != nil {
			return lazyerrors.Error(err)
		}
		writeScalar(buf, bsonproto.SizeString(v.Code), func(b []byte) { bsonproto.EncodeString(b, v.Code) })
		buf.Write(sb)

	case types.MinKeyType:
		buf.WriteByte(byte(tagMinKey))
		writeCString(buf, name)

	case types.MaxKeyType:
		buf.WriteByte(byte(tagMaxKey))
		writeCString(buf, name)

	default:
		return lazyerrors.Errorf("bson.encodeScalarField: invalid type %T", v)
	}

	return nil
}

// writeCString writes a NUL-terminated key.
func writeCString(buf *bytes.Buffer, s string) {
	b := make([]byte, bsonproto.SizeCString(s))
	bsonproto.EncodeCString(b, s)
	buf.Write(b)
}

// writeScalar writes a scalar via its bsonproto encoder.
func writeScalar(buf *bytes.Buffer, size int, encode func([]byte)) {
	b := make([]byte, size)
	encode(b)
	buf.Write(b)
}

// sizeAny returns the encoded size of the value in bytes.
//
// It panics for invalid types.
func sizeAny(v any) int {
	switch v := v.(type) {
	case *types.Document:
		return sizeDocument(v)
	case *types.Array:
		return sizeArray(v)
	case float64:
		return bsonproto.SizeFloat64
	case string:
		return bsonproto.SizeString(v)
	case types.Binary:
		return bsonproto.SizeBinary(bsonproto.Binary{B: v.B, Subtype: bsonproto.BinarySubtype(v.Subtype)})
	case types.ObjectID:
		return bsonproto.SizeObjectID
	case bool:
		return bsonproto.SizeBool
	case time.Time:
		return bsonproto.SizeTime
	case types.NullType:
		return 0
	case types.Regex:
		return bsonproto.SizeRegex(bsonproto.Regex{Pattern: v.Pattern, Options: v.Options})
	case int32:
		return bsonproto.SizeInt32
	case types.Timestamp:
		return bsonproto.SizeTimestamp
	case int64:
		return bsonproto.SizeInt64
	case types.Decimal128:
		return decimal128Len
	case types.Code:
		return bsonproto.SizeString(string(v))
	case types.CodeWithScope:
		scope := v.Scope
		if scope == nil {
			scope = types.MakeDocument(0)
		}
		return 4 + bsonproto.SizeString(v.Code) + sizeDocument(scope)
	case types.MinKeyType, types.MaxKeyType:
		return 0
	default:
		panic(fmt.Sprintf("bson.sizeAny: invalid type %T", v))
	}
}

// sizeDocument returns the encoded size of the document in bytes.
func sizeDocument(doc *types.Document) int {
	size := 5

	keys := doc.Keys()
	values := doc.Values()

	for i, key := range keys {
		size += 1 + len(key) + 1 + sizeAny(values[i])
	}

	return size
}

// sizeArray returns the encoded size of the array in bytes.
func sizeArray(arr *types.Array) int {
	size := 5

	for i, v := range arr.Slice() {
		size += 1 + len(strconv.Itoa(i)) + 1 + sizeAny(v)
	}

	return size
}
