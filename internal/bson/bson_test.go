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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/must"
)

func TestRoundTripAllTypes(t *testing.T) {
	t.Parallel()

	scope := types.MakeDocument(1)
	scope.Set("x", int32(1))

	nested := types.MakeDocument(1)
	nested.Set("deep", "value")

	arr := types.MakeArray(3)
	must.NoError(arr.Append(int32(1), "two", types.Null))

	doc := types.MakeDocument(0)
	doc.Set("double", 42.13)
	doc.Set("string", "foo")
	doc.Set("document", nested)
	doc.Set("array", arr)
	doc.Set("binary", types.Binary{Subtype: types.BinaryUUID, B: []byte{0x01, 0x02, 0x03}})
	doc.Set("objectID", types.ObjectID{0x62, 0x56, 0xc5, 0xba, 0x18, 0x2d, 0x44, 0x54, 0xfb, 0x21, 0x0c, 0x33})
	doc.Set("bool", true)
	doc.Set("dateTime", time.Date(2024, 3, 18, 9, 30, 15, 123_000_000, time.UTC))
	doc.Set("null", types.Null)
	doc.Set("regex", types.Regex{Pattern: "^foo$", Options: "i"})
	doc.Set("code", types.Code("function() { return 1; }"))
	doc.Set("codeWithScope", types.CodeWithScope{Code: "x", Scope: scope})
	doc.Set("int32", int32(-123))
	doc.Set("timestamp", types.Timestamp(1<<40|7))
	doc.Set("int64", int64(1<<60))
	doc.Set("decimal128", types.Decimal128{L: 42, H: 13})
	doc.Set("minKey", types.MinKey)
	doc.Set("maxKey", types.MaxKey)

	raw, err := EncodeDocument(doc)
	require.NoError(t, err)

	decoded, err := raw.DecodeDocument()
	require.NoError(t, err)

	assert.Equal(t, doc.Keys(), decoded.Keys())
	assert.Equal(t, types.FormatValue(doc), types.FormatValue(decoded))
}

func TestDecodeUndefined(t *testing.T) {
	t.Parallel()

	// {a: undefined}
	raw := RawDocument{0x08, 0x00, 0x00, 0x00, 0x06, 'a', 0x00, 0x00}

	doc, err := raw.DecodeDocument()
	require.NoError(t, err)

	v, err := doc.Get("a")
	require.NoError(t, err)
	assert.Equal(t, types.Null, v)
}

func TestDecodePromoteSafeInt64(t *testing.T) {
	t.Parallel()

	doc := types.MakeDocument(2)
	doc.Set("safe", int64(42))
	doc.Set("unsafe", int64(1)<<60)

	raw, err := EncodeDocument(doc)
	require.NoError(t, err)

	decoded, err := raw.DecodeDocumentOpts(DecodeOptions{PromoteSafeInt64: true})
	require.NoError(t, err)

	safe, err := decoded.Get("safe")
	require.NoError(t, err)
	assert.Equal(t, float64(42), safe)

	unsafe, err := decoded.Get("unsafe")
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<60, unsafe)
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		raw RawDocument
		err error
	}{
		"Short": {
			raw: RawDocument{0x05, 0x00, 0x00},
			err: ErrDecodeShortInput,
		},
		"LengthMismatch": {
			raw: RawDocument{0x06, 0x00, 0x00, 0x00, 0x00},
			err: ErrDecodeInvalidInput,
		},
		"MissingNUL": {
			raw: RawDocument{0x05, 0x00, 0x00, 0x00, 0x01},
			err: ErrDecodeInvalidInput,
		},
		"Symbol": {
			// {s: Symbol("")}
			raw: RawDocument{0x0d, 0x00, 0x00, 0x00, 0x0e, 's', 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00},
			err: ErrDecodeInvalidInput,
		},
		"Decimal128Truncated": {
			// {d: decimal128} with only 8 of 16 payload bytes
			raw: RawDocument{
				0x10, 0x00, 0x00, 0x00,
				0x13, 'd', 0x00,
				0x2a, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x00,
			},
			err: ErrDecodeShortInput,
		},
	} {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := tc.raw.DecodeDocument()
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestFindRawDocument(t *testing.T) {
	t.Parallel()

	doc := types.MakeDocument(1)
	doc.Set("a", int32(1))

	raw, err := EncodeDocument(doc)
	require.NoError(t, err)

	b := append([]byte(nil), raw...)
	b = append(b, 0xde, 0xad)

	assert.Equal(t, raw, FindRawDocument(b))
	assert.Nil(t, FindRawDocument(b[:3]))
	assert.Nil(t, FindRawDocument(raw[:len(raw)-1]))
}
