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
	"github.com/DataFlood/DataFlood/internal/util/must"
)

// OpMsgSection is one section contained in an OpMsg.
type OpMsgSection struct {
	Identifier string
	Kind       byte
	documents  []bson.RawDocument
}

// MakeOpMsgSection creates a kind 0 section with a single document.
func MakeOpMsgSection(doc *types.Document) OpMsgSection {
	raw := must.NotFail(bson.EncodeDocument(doc))

	return OpMsgSection{
		documents: []bson.RawDocument{raw},
	}
}

// MakeOpMsgSectionSeq creates a kind 1 document sequence section.
func MakeOpMsgSectionSeq(identifier string, docs ...*types.Document) OpMsgSection {
	raws := make([]bson.RawDocument, len(docs))
	for i, doc := range docs {
		raws[i] = must.NotFail(bson.EncodeDocument(doc))
	}

	return OpMsgSection{
		Identifier: identifier,
		Kind:       1,
		documents:  raws,
	}
}

// RawDocuments returns raw documents of the section.
func (s *OpMsgSection) RawDocuments() []bson.RawDocument {
	return s.documents
}

// OpMsg is the main wire protocol message type.
type OpMsg struct {
	sections []OpMsgSection
	checksum uint32
	Flags    OpMsgFlags
}

// NewOpMsg creates a message with a single kind 0 section.
func NewOpMsg(doc *types.Document) (*OpMsg, error) {
	var msg OpMsg
	if err := msg.SetSections(MakeOpMsgSection(doc)); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &msg, nil
}

// Sections returns the sections of the OpMsg.
func (msg *OpMsg) Sections() []OpMsgSection {
	return msg.sections
}

// SetSections sets sections of the OpMsg.
func (msg *OpMsg) SetSections(sections ...OpMsgSection) error {
	msg.sections = sections

	if _, err := msg.Document(); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

// Document returns the value of msg as a [*types.Document].
//
// All sections are merged together: kind 1 sections become array fields
// named by their identifiers.
func (msg *OpMsg) Document() (*types.Document, error) {
	// The command is defined by the first key of the kind 0 section,
	// but kind 1 sections may come before it.
	docs := make([]*types.Document, 0, len(msg.sections))

	for _, section := range msg.sections {
		if section.Kind != 0 {
			continue
		}

		if l := len(section.documents); l != 1 {
			return nil, lazyerrors.Errorf("wire.OpMsg.Document: %d documents in kind 0 section", l)
		}

		doc, err := section.documents[0].DecodeDocument()
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		docs = append(docs, doc)
	}

	for _, section := range msg.sections {
		if section.Kind == 0 {
			continue
		}

		if section.Kind != 1 {
			return nil, lazyerrors.Errorf("wire.OpMsg.Document: unknown kind %d", section.Kind)
		}

		if section.Identifier == "" {
			return nil, lazyerrors.New("wire.OpMsg.Document: empty section identifier")
		}

		a := types.MakeArray(len(section.documents))

		for _, d := range section.documents {
			doc, err := d.DecodeDocument()
			if err != nil {
				return nil, lazyerrors.Error(err)
			}

			if err := a.Append(doc); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}

		docs = append(docs, must.NotFail(types.NewDocument(section.Identifier, a)))
	}

	res := types.MakeDocument(2)

	for _, doc := range docs {
		values := doc.Values()
		for i, k := range doc.Keys() {
			res.Set(k, values[i])
		}
	}

	return res, nil
}

func (msg *OpMsg) msgbody() {}

// UnmarshalBinary reads an OpMsg from a byte array.
func (msg *OpMsg) UnmarshalBinary(b []byte) error {
	if len(b) < 6 {
		return lazyerrors.Errorf("wire.OpMsg.UnmarshalBinary: len=%d", len(b))
	}

	msg.Flags = OpMsgFlags(binary.LittleEndian.Uint32(b[0:4]))

	length := len(b)
	if msg.Flags.FlagSet(OpMsgChecksumPresent) {
		if length < 4+5+4 {
			return lazyerrors.Errorf("wire.OpMsg.UnmarshalBinary: no room for checksum, len=%d", length)
		}

		msg.checksum = binary.LittleEndian.Uint32(b[length-4:])
		length -= 4
	}

	msg.sections = nil

	offset := 4
	for offset < length {
		var section OpMsgSection
		section.Kind = b[offset]
		offset++

		switch section.Kind {
		case 0:
			raw := bson.FindRawDocument(b[offset:length])
			if raw == nil {
				return lazyerrors.New("wire.OpMsg.UnmarshalBinary: truncated kind 0 section")
			}

			section.documents = []bson.RawDocument{raw}
			offset += len(raw)

		case 1:
			if length-offset < 4 {
				return lazyerrors.New("wire.OpMsg.UnmarshalBinary: truncated kind 1 section")
			}

			// section size includes the size field itself
			size := int(binary.LittleEndian.Uint32(b[offset : offset+4]))
			if size < 5 || size > length-offset {
				return lazyerrors.Errorf("wire.OpMsg.UnmarshalBinary: invalid section size %d", size)
			}

			secEnd := offset + size
			offset += 4

			var err error
			if section.Identifier, err = bson.DecodeCString(b[offset:secEnd]); err != nil {
				return lazyerrors.Error(err)
			}
			offset += bson.SizeCString(section.Identifier)

			for offset < secEnd {
				raw := bson.FindRawDocument(b[offset:secEnd])
				if raw == nil {
					return lazyerrors.New("wire.OpMsg.UnmarshalBinary: truncated document in kind 1 section")
				}

				section.documents = append(section.documents, raw)
				offset += len(raw)
			}

		default:
			return lazyerrors.Errorf("wire.OpMsg.UnmarshalBinary: kind is %d", section.Kind)
		}

		msg.sections = append(msg.sections, section)
	}

	if _, err := msg.Document(); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

// MarshalBinary writes an OpMsg to a byte array.
func (msg *OpMsg) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	var flagsB [4]byte
	binary.LittleEndian.PutUint32(flagsB[:], uint32(msg.Flags))
	buf.Write(flagsB[:])

	for _, section := range msg.sections {
		buf.WriteByte(section.Kind)

		switch section.Kind {
		case 0:
			if l := len(section.documents); l != 1 {
				panic(fmt.Sprintf("%d documents in section with kind 0", l))
			}

			buf.Write(section.documents[0])

		case 1:
			size := 4 + bson.SizeCString(section.Identifier)
			for _, doc := range section.documents {
				size += len(doc)
			}

			var sizeB [4]byte
			binary.LittleEndian.PutUint32(sizeB[:], uint32(size))
			buf.Write(sizeB[:])

			idB := make([]byte, bson.SizeCString(section.Identifier))
			bson.EncodeCString(idB, section.Identifier)
			buf.Write(idB)

			for _, doc := range section.documents {
				buf.Write(doc)
			}

		default:
			return nil, lazyerrors.Errorf("wire.OpMsg.MarshalBinary: kind is %d", section.Kind)
		}
	}

	if msg.Flags.FlagSet(OpMsgChecksumPresent) {
		var checksumB [4]byte
		binary.LittleEndian.PutUint32(checksumB[:], msg.checksum)
		buf.Write(checksumB[:])
	}

	return buf.Bytes(), nil
}

// String returns a string representation for logging.
func (msg *OpMsg) String() string {
	if msg == nil {
		return "<nil>"
	}

	doc, err := msg.Document()
	if err != nil {
		return fmt.Sprintf("OpMsg<invalid: %v>", err)
	}

	return fmt.Sprintf("OpMsg<flags: %s, document: %s>", msg.Flags, types.FormatValue(doc))
}

// check interfaces
var (
	_ MsgBody = (*OpMsg)(nil)
)
