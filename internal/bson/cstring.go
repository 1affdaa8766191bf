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

import "github.com/cristalhq/bson/bsonproto"

// SizeCString returns the encoded size of a NUL-terminated string.
func SizeCString(s string) int {
	return bsonproto.SizeCString(s)
}

// EncodeCString encodes a NUL-terminated string into b.
func EncodeCString(b []byte, s string) {
	bsonproto.EncodeCString(b, s)
}

// DecodeCString decodes a NUL-terminated string from the start of b.
func DecodeCString(b []byte) (string, error) {
	return bsonproto.DecodeCString(b)
}
