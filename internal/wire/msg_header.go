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
	"encoding/binary"
	"io"

	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// MsgHeaderLen is the fixed length of a marshaled header.
const MsgHeaderLen = 16

// MaxMsgLen is the maximum allowed length of a message.
const MaxMsgLen = 48000000

// MsgHeader prefixes every wire message.
type MsgHeader struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// readFrom reads the header from the reader.
func (h *MsgHeader) readFrom(r *bufio.Reader) error {
	var b [MsgHeaderLen]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}

	h.MessageLength = int32(binary.LittleEndian.Uint32(b[0:4]))
	h.RequestID = int32(binary.LittleEndian.Uint32(b[4:8]))
	h.ResponseTo = int32(binary.LittleEndian.Uint32(b[8:12]))
	h.OpCode = OpCode(binary.LittleEndian.Uint32(b[12:16]))

	if h.MessageLength < MsgHeaderLen || h.MessageLength > MaxMsgLen {
		return lazyerrors.Errorf("invalid message length %d", h.MessageLength)
	}

	return nil
}

// writeTo writes the header to the writer.
func (h *MsgHeader) writeTo(w *bufio.Writer) error {
	var b [MsgHeaderLen]byte

	binary.LittleEndian.PutUint32(b[0:4], uint32(h.MessageLength))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.OpCode))

	if _, err := w.Write(b[:]); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}
