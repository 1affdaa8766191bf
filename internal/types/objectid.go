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

package types

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// ObjectID represents BSON type ObjectId.
//
// Layout: 4 bytes big-endian seconds since epoch, 5 bytes per-process random value,
// 3 bytes big-endian monotonic counter.
type ObjectID [12]byte

// processUnique is the per-process random part of generated ObjectIDs.
var processUnique [5]byte

// objectIDCounter is the monotonic counter part of generated ObjectIDs.
var objectIDCounter atomic.Uint32

func init() {
	if _, err := rand.Read(processUnique[:]); err != nil {
		panic(err)
	}

	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}

	objectIDCounter.Store(binary.BigEndian.Uint32(b[:]))
}

// NewObjectID returns a new ObjectID for the current time.
func NewObjectID() ObjectID {
	return newObjectIDTime(time.Now())
}

// newObjectIDTime returns a new ObjectID for the given time.
func newObjectIDTime(t time.Time) ObjectID {
	var res ObjectID

	binary.BigEndian.PutUint32(res[0:4], uint32(t.Unix()))
	copy(res[4:9], processUnique[:])

	c := objectIDCounter.Add(1)
	res[9] = byte(c >> 16)
	res[10] = byte(c >> 8)
	res[11] = byte(c)

	return res
}

// ObjectIDFromHex parses the 24-character hexadecimal string form of an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var res ObjectID

	if len(s) != 24 {
		return res, fmt.Errorf("types.ObjectIDFromHex: invalid length %d", len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return res, fmt.Errorf("types.ObjectIDFromHex: %w", err)
	}

	copy(res[:], b)

	return res, nil
}

// Hex returns the 24-character hexadecimal string form of the ObjectID.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Time returns the timestamp part of the ObjectID.
func (id ObjectID) Time() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0)
}
