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

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/DataFlood/DataFlood/internal/bson"
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// OpInsert is a deprecated request to insert documents into a collection.
type OpInsert struct {
	FullCollectionName string
	Documents          []*types.Document
	Flags              int32
}

func (op *OpInsert) msgbody() {}

// UnmarshalBinary reads an OpInsert from a byte array.
func (op *OpInsert) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return lazyerrors.Errorf("wire.OpInsert.UnmarshalBinary: len=%d", len(b))
	}

	op.Flags = int32(binary.LittleEndian.Uint32(b[0:4]))
	offset := 4

	var err error
	if op.FullCollectionName, err = bson.DecodeCString(b[offset:]); err != nil {
		return lazyerrors.Error(err)
	}
	offset += bson.SizeCString(op.FullCollectionName)

	op.Documents = nil
	for offset < len(b) {
		raw := bson.FindRawDocument(b[offset:])
		if raw == nil {
			return lazyerrors.New("wire.OpInsert.UnmarshalBinary: truncated document")
		}
		offset += len(raw)

		doc, err := raw.DecodeDocument()
		if err != nil {
			return lazyerrors.Error(err)
		}

		op.Documents = append(op.Documents, doc)
	}

	if len(op.Documents) == 0 {
		return lazyerrors.New("wire.OpInsert.UnmarshalBinary: no documents")
	}

	return nil
}

// MarshalBinary writes an OpInsert to a byte array.
func (op *OpInsert) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(op.Flags))
	buf.Write(b[:])

	writeLegacyCString(&buf, op.FullCollectionName)

	for _, doc := range op.Documents {
		raw, err := bson.EncodeDocument(doc)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}
		buf.Write(raw)
	}

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (op *OpInsert) String() string {
	if op == nil {
		return "<nil>"
	}

	return fmt.Sprintf("OpInsert<%s, %d documents>", op.FullCollectionName, len(op.Documents))
}

// OpUpdate is a deprecated request to update documents in a collection.
type OpUpdate struct {
	FullCollectionName string
	Selector           *types.Document
	Update             *types.Document
	Flags              int32
}

// Update flag bits.
const (
	// OpUpdateUpsert inserts the document if no document matches the selector.
	OpUpdateUpsert = int32(1 << 0)

	// OpUpdateMultiUpdate updates all matching documents.
	OpUpdateMultiUpdate = int32(1 << 1)
)

func (op *OpUpdate) msgbody() {}

// UnmarshalBinary reads an OpUpdate from a byte array.
func (op *OpUpdate) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return lazyerrors.Errorf("wire.OpUpdate.UnmarshalBinary: len=%d", len(b))
	}

	// int32 ZERO, reserved
	offset := 4

	var err error
	if op.FullCollectionName, err = bson.DecodeCString(b[offset:]); err != nil {
		return lazyerrors.Error(err)
	}
	offset += bson.SizeCString(op.FullCollectionName)

	if len(b) < offset+4 {
		return lazyerrors.Errorf("wire.OpUpdate.UnmarshalBinary: len=%d", len(b))
	}
	op.Flags = int32(binary.LittleEndian.Uint32(b[offset : offset+4]))
	offset += 4

	raw := bson.FindRawDocument(b[offset:])
	if raw == nil {
		return lazyerrors.New("wire.OpUpdate.UnmarshalBinary: truncated selector")
	}
	offset += len(raw)

	if op.Selector, err = raw.DecodeDocument(); err != nil {
		return lazyerrors.Error(err)
	}

	raw = bson.FindRawDocument(b[offset:])
	if raw == nil {
		return lazyerrors.New("wire.OpUpdate.UnmarshalBinary: truncated update")
	}
	offset += len(raw)

	if op.Update, err = raw.DecodeDocument(); err != nil {
		return lazyerrors.Error(err)
	}

	if offset != len(b) {
		return lazyerrors.Errorf("wire.OpUpdate.UnmarshalBinary: %d bytes left", len(b)-offset)
	}

	return nil
}

// MarshalBinary writes an OpUpdate to a byte array.
func (op *OpUpdate) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [4]byte
	buf.Write(b[:]) // int32 ZERO

	writeLegacyCString(&buf, op.FullCollectionName)

	binary.LittleEndian.PutUint32(b[:], uint32(op.Flags))
	buf.Write(b[:])

	for _, doc := range []*types.Document{op.Selector, op.Update} {
		raw, err := bson.EncodeDocument(doc)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}
		buf.Write(raw)
	}

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (op *OpUpdate) String() string {
	if op == nil {
		return "<nil>"
	}

	return fmt.Sprintf("OpUpdate<%s, flags: %d>", op.FullCollectionName, op.Flags)
}

// OpDelete is a deprecated request to remove documents from a collection.
type OpDelete struct {
	FullCollectionName string
	Selector           *types.Document
	Flags              int32
}

// OpDeleteSingleRemove limits the removal to the first matching document.
const OpDeleteSingleRemove = int32(1 << 0)

func (op *OpDelete) msgbody() {}

// UnmarshalBinary reads an OpDelete from a byte array.
func (op *OpDelete) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return lazyerrors.Errorf("wire.OpDelete.UnmarshalBinary: len=%d", len(b))
	}

	// int32 ZERO, reserved
	offset := 4

	var err error
	if op.FullCollectionName, err = bson.DecodeCString(b[offset:]); err != nil {
		return lazyerrors.Error(err)
	}
	offset += bson.SizeCString(op.FullCollectionName)

	if len(b) < offset+4 {
		return lazyerrors.Errorf("wire.OpDelete.UnmarshalBinary: len=%d", len(b))
	}
	op.Flags = int32(binary.LittleEndian.Uint32(b[offset : offset+4]))
	offset += 4

	raw := bson.FindRawDocument(b[offset:])
	if raw == nil {
		return lazyerrors.New("wire.OpDelete.UnmarshalBinary: truncated selector")
	}
	offset += len(raw)

	if op.Selector, err = raw.DecodeDocument(); err != nil {
		return lazyerrors.Error(err)
	}

	if offset != len(b) {
		return lazyerrors.Errorf("wire.OpDelete.UnmarshalBinary: %d bytes left", len(b)-offset)
	}

	return nil
}

// MarshalBinary writes an OpDelete to a byte array.
func (op *OpDelete) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [4]byte
	buf.Write(b[:]) // int32 ZERO

	writeLegacyCString(&buf, op.FullCollectionName)

	binary.LittleEndian.PutUint32(b[:], uint32(op.Flags))
	buf.Write(b[:])

	raw, err := bson.EncodeDocument(op.Selector)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	buf.Write(raw)

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (op *OpDelete) String() string {
	if op == nil {
		return "<nil>"
	}

	return fmt.Sprintf("OpDelete<%s, flags: %d>", op.FullCollectionName, op.Flags)
}

// OpGetMore is a deprecated request for the next batch of an open cursor.
type OpGetMore struct {
	FullCollectionName string
	CursorID           int64
	NumberToReturn     int32
}

func (op *OpGetMore) msgbody() {}

// UnmarshalBinary reads an OpGetMore from a byte array.
func (op *OpGetMore) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return lazyerrors.Errorf("wire.OpGetMore.UnmarshalBinary: len=%d", len(b))
	}

	// int32 ZERO, reserved
	offset := 4

	var err error
	if op.FullCollectionName, err = bson.DecodeCString(b[offset:]); err != nil {
		return lazyerrors.Error(err)
	}
	offset += bson.SizeCString(op.FullCollectionName)

	if len(b) != offset+12 {
		return lazyerrors.Errorf("wire.OpGetMore.UnmarshalBinary: len=%d", len(b))
	}

	op.NumberToReturn = int32(binary.LittleEndian.Uint32(b[offset : offset+4]))
	op.CursorID = int64(binary.LittleEndian.Uint64(b[offset+4 : offset+12]))

	return nil
}

// MarshalBinary writes an OpGetMore to a byte array.
func (op *OpGetMore) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [8]byte
	buf.Write(b[:4]) // int32 ZERO

	writeLegacyCString(&buf, op.FullCollectionName)

	binary.LittleEndian.PutUint32(b[:4], uint32(op.NumberToReturn))
	buf.Write(b[:4])
	binary.LittleEndian.PutUint64(b[:], uint64(op.CursorID))
	buf.Write(b[:])

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (op *OpGetMore) String() string {
	if op == nil {
		return "<nil>"
	}

	return fmt.Sprintf("OpGetMore<%s, cursor: %d, return: %d>", op.FullCollectionName, op.CursorID, op.NumberToReturn)
}

// OpKillCursors is a deprecated request to release open cursors.
type OpKillCursors struct {
	CursorIDs []int64
}

func (op *OpKillCursors) msgbody() {}

// UnmarshalBinary reads an OpKillCursors from a byte array.
func (op *OpKillCursors) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return lazyerrors.Errorf("wire.OpKillCursors.UnmarshalBinary: len=%d", len(b))
	}

	// int32 ZERO, reserved
	n := int(int32(binary.LittleEndian.Uint32(b[4:8])))
	if n < 0 || len(b) != 8+n*8 {
		return lazyerrors.Errorf("wire.OpKillCursors.UnmarshalBinary: %d cursors, len=%d", n, len(b))
	}

	op.CursorIDs = make([]int64, n)
	for i := range op.CursorIDs {
		op.CursorIDs[i] = int64(binary.LittleEndian.Uint64(b[8+i*8:]))
	}

	return nil
}

// MarshalBinary writes an OpKillCursors to a byte array.
func (op *OpKillCursors) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [8]byte
	buf.Write(b[:4]) // int32 ZERO

	binary.LittleEndian.PutUint32(b[:4], uint32(len(op.CursorIDs)))
	buf.Write(b[:4])

	for _, id := range op.CursorIDs {
		binary.LittleEndian.PutUint64(b[:], uint64(id))
		buf.Write(b[:])
	}

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (op *OpKillCursors) String() string {
	if op == nil {
		return "<nil>"
	}

	return fmt.Sprintf("OpKillCursors<%v>", op.CursorIDs)
}

// OpCompressed wraps another message in a compressed envelope.
//
// It is recognized so a proper error reply can be sent; payloads are not decompressed.
type OpCompressed struct {
	Compressed       []byte
	OriginalOpCode   OpCode
	UncompressedSize int32
	CompressorID     byte
}

func (op *OpCompressed) msgbody() {}

// UnmarshalBinary reads an OpCompressed from a byte array.
func (op *OpCompressed) UnmarshalBinary(b []byte) error {
	if len(b) < 9 {
		return lazyerrors.Errorf("wire.OpCompressed.UnmarshalBinary: len=%d", len(b))
	}

	op.OriginalOpCode = OpCode(binary.LittleEndian.Uint32(b[0:4]))
	op.UncompressedSize = int32(binary.LittleEndian.Uint32(b[4:8]))
	op.CompressorID = b[8]
	op.Compressed = b[9:]

	return nil
}

// MarshalBinary writes an OpCompressed to a byte array.
func (op *OpCompressed) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(op.OriginalOpCode))
	buf.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], uint32(op.UncompressedSize))
	buf.Write(b[:])
	buf.WriteByte(op.CompressorID)
	buf.Write(op.Compressed)

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (op *OpCompressed) String() string {
	if op == nil {
		return "<nil>"
	}

	return fmt.Sprintf("OpCompressed<%s, compressor: %d>", op.OriginalOpCode, op.CompressorID)
}

// writeLegacyCString writes a NUL-terminated collection namespace.
func writeLegacyCString(buf *bytes.Buffer, s string) {
	b := make([]byte, bson.SizeCString(s))
	bson.EncodeCString(b, s)
	buf.Write(b)
}

// check interfaces
var (
	_ MsgBody = (*OpInsert)(nil)
	_ MsgBody = (*OpUpdate)(nil)
	_ MsgBody = (*OpDelete)(nil)
	_ MsgBody = (*OpGetMore)(nil)
	_ MsgBody = (*OpKillCursors)(nil)
	_ MsgBody = (*OpCompressed)(nil)
)
