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

// OpQuery is a deprecated request to query the database for documents in a collection.
//
// It is still used by drivers for the connection handshake.
type OpQuery struct {
	Query                *types.Document
	ReturnFieldsSelector *types.Document // may be nil
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Flags                OpQueryFlags
}

func (query *OpQuery) msgbody() {}

// UnmarshalBinary reads an OpQuery from a byte array.
func (query *OpQuery) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return lazyerrors.Errorf("wire.OpQuery.UnmarshalBinary: len=%d", len(b))
	}

	query.Flags = OpQueryFlags(binary.LittleEndian.Uint32(b[0:4]))
	offset := 4

	var err error
	if query.FullCollectionName, err = bson.DecodeCString(b[offset:]); err != nil {
		return lazyerrors.Error(err)
	}
	offset += bson.SizeCString(query.FullCollectionName)

	if len(b) < offset+8 {
		return lazyerrors.Errorf("wire.OpQuery.UnmarshalBinary: len=%d", len(b))
	}

	query.NumberToSkip = int32(binary.LittleEndian.Uint32(b[offset : offset+4]))
	query.NumberToReturn = int32(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))
	offset += 8

	raw := bson.FindRawDocument(b[offset:])
	if raw == nil {
		return lazyerrors.New("wire.OpQuery.UnmarshalBinary: truncated query document")
	}
	offset += len(raw)

	if query.Query, err = raw.DecodeDocument(); err != nil {
		return lazyerrors.Error(err)
	}

	query.ReturnFieldsSelector = nil
	if offset < len(b) {
		raw = bson.FindRawDocument(b[offset:])
		if raw == nil {
			return lazyerrors.New("wire.OpQuery.UnmarshalBinary: truncated returnFieldsSelector")
		}
		offset += len(raw)

		if query.ReturnFieldsSelector, err = raw.DecodeDocument(); err != nil {
			return lazyerrors.Error(err)
		}
	}

	if offset != len(b) {
		return lazyerrors.Errorf("wire.OpQuery.UnmarshalBinary: %d bytes left", len(b)-offset)
	}

	return nil
}

// MarshalBinary writes an OpQuery to a byte array.
func (query *OpQuery) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(query.Flags))
	buf.Write(b[:])

	nameB := make([]byte, bson.SizeCString(query.FullCollectionName))
	bson.EncodeCString(nameB, query.FullCollectionName)
	buf.Write(nameB)

	binary.LittleEndian.PutUint32(b[:], uint32(query.NumberToSkip))
	buf.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], uint32(query.NumberToReturn))
	buf.Write(b[:])

	raw, err := bson.EncodeDocument(query.Query)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	buf.Write(raw)

	if query.ReturnFieldsSelector != nil {
		if raw, err = bson.EncodeDocument(query.ReturnFieldsSelector); err != nil {
			return nil, lazyerrors.Error(err)
		}
		buf.Write(raw)
	}

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (query *OpQuery) String() string {
	if query == nil {
		return "<nil>"
	}

	return fmt.Sprintf(
		"OpQuery<%s skip: %d, return: %d, query: %s>",
		query.FullCollectionName, query.NumberToSkip, query.NumberToReturn, types.FormatValue(query.Query),
	)
}

// check interfaces
var (
	_ MsgBody = (*OpQuery)(nil)
)
