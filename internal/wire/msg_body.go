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
	"bufio"
	"encoding"
	"fmt"
	"io"

	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// MsgBody is a wire protocol message body.
type MsgBody interface {
	encoding.BinaryUnmarshaler
	encoding.BinaryMarshaler
	fmt.Stringer

	msgbody() // seal
}

// ReadMessage reads one complete message from the reader.
//
// Returned io.EOF means a clean disconnect before the next message.
func ReadMessage(r *bufio.Reader) (*MsgHeader, MsgBody, error) {
	var header MsgHeader
	if err := header.readFrom(r); err != nil {
		if err == io.EOF {
			return nil, nil, err
		}

		return nil, nil, lazyerrors.Error(err)
	}

	b := make([]byte, header.MessageLength-MsgHeaderLen)
	if n, err := io.ReadFull(r, b); err != nil {
		return nil, nil, lazyerrors.Errorf("expected %d, read %d: %w", len(b), n, err)
	}

	var body MsgBody

	switch header.OpCode {
	case OpCodeMsg:
		body = new(OpMsg)
	case OpCodeQuery:
		body = new(OpQuery)
	case OpCodeReply:
		body = new(OpReply)
	case OpCodeInsert:
		body = new(OpInsert)
	case OpCodeUpdate:
		body = new(OpUpdate)
	case OpCodeDelete:
		body = new(OpDelete)
	case OpCodeGetMore:
		body = new(OpGetMore)
	case OpCodeKillCursors:
		body = new(OpKillCursors)
	case OpCodeCompressed:
		body = new(OpCompressed)
	default:
		return &header, nil, lazyerrors.Errorf("unhandled opcode %s", header.OpCode)
	}

	if err := body.UnmarshalBinary(b); err != nil {
		return &header, nil, lazyerrors.Error(err)
	}

	return &header, body, nil
}

// WriteMessage writes one complete message to the writer.
//
// The header's MessageLength must match the marshaled body size.
func WriteMessage(w *bufio.Writer, header *MsgHeader, msg MsgBody) error {
	b, err := msg.MarshalBinary()
	if err != nil {
		return lazyerrors.Error(err)
	}

	if expected := len(b) + MsgHeaderLen; int32(expected) != header.MessageLength {
		panic(fmt.Sprintf(
			"expected length %d (marshaled body size) + %d (fixed marshaled header size) = %d, got %d",
			len(b), MsgHeaderLen, expected, header.MessageLength,
		))
	}

	if err := header.writeTo(w); err != nil {
		return lazyerrors.Error(err)
	}

	if _, err := w.Write(b); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}
