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

// maxNumberReturned caps the documents in a single legacy reply.
const maxNumberReturned = 1000

// OpReply is a message sent in response to legacy client requests.
type OpReply struct {
	Documents      []*types.Document
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	ResponseFlags  OpReplyFlags
}

func (reply *OpReply) msgbody() {}

// UnmarshalBinary reads an OpReply from a byte array.
func (reply *OpReply) UnmarshalBinary(b []byte) error {
	if len(b) < 20 {
		return lazyerrors.Errorf("wire.OpReply.UnmarshalBinary: len=%d", len(b))
	}

	reply.ResponseFlags = OpReplyFlags(binary.LittleEndian.Uint32(b[0:4]))
	reply.CursorID = int64(binary.LittleEndian.Uint64(b[4:12]))
	reply.StartingFrom = int32(binary.LittleEndian.Uint32(b[12:16]))
	reply.NumberReturned = int32(binary.LittleEndian.Uint32(b[16:20]))

	if n := reply.NumberReturned; n < 0 || n > maxNumberReturned {
		return lazyerrors.Errorf("wire.OpReply.UnmarshalBinary: invalid NumberReturned %d", n)
	}

	offset := 20
	reply.Documents = make([]*types.Document, 0, reply.NumberReturned)

	for i := int32(0); i < reply.NumberReturned; i++ {
		raw := bson.FindRawDocument(b[offset:])
		if raw == nil {
			return lazyerrors.Errorf("wire.OpReply.UnmarshalBinary: truncated document %d", i)
		}
		offset += len(raw)

		doc, err := raw.DecodeDocument()
		if err != nil {
			return lazyerrors.Error(err)
		}

		reply.Documents = append(reply.Documents, doc)
	}

	if offset != len(b) {
		return lazyerrors.Errorf("wire.OpReply.UnmarshalBinary: %d bytes left", len(b)-offset)
	}

	return nil
}

// MarshalBinary writes an OpReply to a byte array.
func (reply *OpReply) MarshalBinary() ([]byte, error) {
	if l := len(reply.Documents); int32(l) != reply.NumberReturned {
		return nil, lazyerrors.Errorf(
			"wire.OpReply.MarshalBinary: len(Documents)=%d, NumberReturned=%d", l, reply.NumberReturned,
		)
	}

	var buf bytes.Buffer

	var b [8]byte
	binary.LittleEndian.PutUint32(b[:4], uint32(reply.ResponseFlags))
	buf.Write(b[:4])
	binary.LittleEndian.PutUint64(b[:], uint64(reply.CursorID))
	buf.Write(b[:])
	binary.LittleEndian.PutUint32(b[:4], uint32(reply.StartingFrom))
	buf.Write(b[:4])
	binary.LittleEndian.PutUint32(b[:4], uint32(reply.NumberReturned))
	buf.Write(b[:4])

	for _, doc := range reply.Documents {
		raw, err := bson.EncodeDocument(doc)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		buf.Write(raw)
	}

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (reply *OpReply) String() string {
	if reply == nil {
		return "<nil>"
	}

	return fmt.Sprintf(
		"OpReply<flags: %s, cursor: %d, from: %d, returned: %d>",
		reply.ResponseFlags, reply.CursorID, reply.StartingFrom, reply.NumberReturned,
	)
}

// check interfaces
var (
	_ MsgBody = (*OpReply)(nil)
)
