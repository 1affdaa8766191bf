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
	"encoding/binary"

	"github.com/cristalhq/bson/bsonproto"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// RawDocument represents a single BSON document in the binary encoded form.
//
// It generally references a part of a larger slice, not a copy.
type RawDocument []byte

// FindRawDocument returns the first BSON document at the start of the byte
// slice, or nil if the slice does not hold a complete document.
func FindRawDocument(b []byte) RawDocument {
	bl := len(b)
	if bl < 5 {
		return nil
	}

	dl := int(binary.LittleEndian.Uint32(b))
	if dl < 5 || bl < dl {
		return nil
	}

	if b[dl-1] != 0 {
		return nil
	}

	return b[:dl]
}

// DecodeDocument decodes a single BSON document that takes the whole byte slice,
// using default options.
func (raw RawDocument) DecodeDocument() (*types.Document, error) {
	return raw.DecodeDocumentOpts(DecodeOptions{})
}

// DecodeDocumentOpts decodes a single BSON document that takes the whole byte slice.
//
// The declared document size must match the slice length exactly.
func (raw RawDocument) DecodeDocumentOpts(opts DecodeOptions) (*types.Document, error) {
	bl := len(raw)
	if bl < 5 {
		return nil, lazyerrors.Errorf("len(b) = %d: %w", bl, ErrDecodeShortInput)
	}

	if dl := int(binary.LittleEndian.Uint32(raw)); bl != dl {
		return nil, lazyerrors.Errorf("len(b) = %d, document length = %d: %w", bl, dl, ErrDecodeInvalidInput)
	}

	if last := raw[bl-1]; last != 0 {
		return nil, lazyerrors.Errorf("last = %d: %w", last, ErrDecodeInvalidInput)
	}

	res := types.MakeDocument(1)

	offset := 4
	for offset != bl-1 {
		if offset > bl-1 {
			return nil, lazyerrors.Errorf("offset = %d: %w", offset, ErrDecodeInvalidInput)
		}

		t := tag(raw[offset])
		offset++

		name, err := bsonproto.DecodeCString(raw[offset:])
		if err != nil {
			return nil, lazyerrors.Error(err)
		}
		offset += len(name) + 1

		v, l, err := decodeValue(t, raw[offset:], opts)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}
		offset += l

		res.Set(name, v)
	}

	return res, nil
}

// decodeValue decodes a single value with the given tag from the start of b.
// It returns the value and the number of bytes consumed.
func decodeValue(t tag, b []byte, opts DecodeOptions) (any, int, error) {
	switch t {
	case tagFloat64:
		v, err := bsonproto.DecodeFloat64(b)
		return v, bsonproto.SizeFloat64, err

	case tagString:
		v, err := bsonproto.DecodeString(b)
		if err != nil {
			return nil, 0, err
		}
		return v, bsonproto.SizeString(v), nil

	case tagDocument:
		raw, err := subDocument(b)
		if err != nil {
			return nil, 0, err
		}

		doc, err := raw.DecodeDocumentOpts(opts)
		if err != nil {
			return nil, 0, err
		}

		return doc, len(raw), nil

	case tagArray:
		raw, err := subDocument(b)
		if err != nil {
			return nil, 0, err
		}

		arr, err := decodeArray(raw, opts)
		if err != nil {
			return nil, 0, err
		}

		return arr, len(raw), nil

	case tagBinary:
		v, err := bsonproto.DecodeBinary(b)
		if err != nil {
			return nil, 0, err
		}
		return types.Binary{B: v.B, Subtype: types.BinarySubtype(v.Subtype)}, bsonproto.SizeBinary(v), nil

	case tagUndefined:
		// deprecated; decoded as Null
		return types.Null, 0, nil

	case tagObjectID:
		v, err := bsonproto.DecodeObjectID(b)
		return types.ObjectID(v), bsonproto.SizeObjectID, err

	case tagBool:
		v, err := bsonproto.DecodeBool(b)
		return v, bsonproto.SizeBool, err

	case tagTime:
		v, err := bsonproto.DecodeTime(b)
		return v, bsonproto.SizeTime, err

	case tagNull:
		return types.Null, 0, nil

	case tagRegex:
		v, err := bsonproto.DecodeRegex(b)
		if err != nil {
			return nil, 0, err
		}
		return types.Regex{Pattern: v.Pattern, Options: v.Options}, bsonproto.SizeRegex(v), nil

	case tagJavaScript:
		v, err := bsonproto.DecodeString(b)
		if err != nil {
			return nil, 0, err
		}
		return types.Code(v), bsonproto.SizeString(v), nil

	case tagJavaScriptScope:
		if len(b) < 4 {
			return nil, 0, lazyerrors.Errorf("len(b) = %d: %w", len(b), ErrDecodeShortInput)
		}

		total := int(binary.LittleEndian.Uint32(b))
		if total < 4 || len(b) < total {
			return nil, 0, lazyerrors.Errorf("code with scope length %d: %w", total, ErrDecodeInvalidInput)
		}

		code, err := bsonproto.DecodeString(b[4:])
		if err != nil {
			return nil, 0, err
		}

		raw, err := subDocument(b[4+bsonproto.SizeString(code):])
		if err != nil {
			return nil, 0, err
		}

		scope, err := raw.DecodeDocumentOpts(opts)
		if err != nil {
			return nil, 0, err
		}

		return types.CodeWithScope{Code: code, Scope: scope}, total, nil

	case tagInt32:
		v, err := bsonproto.DecodeInt32(b)
		return v, bsonproto.SizeInt32, err

	case tagTimestamp:
		v, err := bsonproto.DecodeTimestamp(b)
		return types.Timestamp(v), bsonproto.SizeTimestamp, err

	case tagInt64:
		v, err := bsonproto.DecodeInt64(b)
		if err != nil {
			return nil, 0, err
		}

		if opts.PromoteSafeInt64 && v >= -maxSafeInteger && v <= maxSafeInteger {
			return float64(v), bsonproto.SizeInt64, nil
		}

		return v, bsonproto.SizeInt64, nil

	case tagDecimal128:
		if len(b) < decimal128Len {
			return nil, 0, lazyerrors.Errorf("len(b) = %d: %w", len(b), ErrDecodeShortInput)
		}

		return types.Decimal128{
			L: binary.LittleEndian.Uint64(b[0:8]),
			H: binary.LittleEndian.Uint64(b[8:16]),
		}, decimal128Len, nil

	case tagMinKey:
		return types.MinKey, 0, nil

	case tagMaxKey:
		return types.MaxKey, 0, nil

	case tagDBPointer, tagSymbol:
		return nil, 0, lazyerrors.Errorf("unsupported tag %s: %w", t, ErrDecodeInvalidInput)

	default:
		return nil, 0, lazyerrors.Errorf("unexpected tag %s: %w", t, ErrDecodeInvalidInput)
	}
}

// subDocument extracts the length-prefixed document at the start of b.
func subDocument(b []byte) (RawDocument, error) {
	if len(b) < 4 {
		return nil, lazyerrors.Errorf("len(b) = %d: %w", len(b), ErrDecodeShortInput)
	}

	l := int(binary.LittleEndian.Uint32(b))
	if l < 5 || len(b) < l {
		return nil, lazyerrors.Errorf("sub-document length %d, len(b) = %d: %w", l, len(b), ErrDecodeInvalidInput)
	}

	return RawDocument(b[:l]), nil
}

// decodeArray decodes a BSON array from its document form.
func decodeArray(raw RawDocument, opts DecodeOptions) (*types.Array, error) {
	doc, err := raw.DecodeDocumentOpts(opts)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	arr := types.MakeArray(doc.Len())
	for _, key := range doc.Keys() {
		v, err := doc.Get(key)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		if err := arr.Append(v); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return arr, nil
}
