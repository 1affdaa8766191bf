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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatValue returns a canonical single-line string form of the value.
//
// Two values have the same canonical form iff they are equal by Compare
// and of the same type. The form is stable across processes.
func FormatValue(v any) string {
	switch v := v.(type) {
	case *Document:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(f.key))
			sb.WriteString(": ")
			sb.WriteString(FormatValue(f.value))
		}
		sb.WriteByte('}')
		return sb.String()

	case *Array:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(FormatValue(e))
		}
		sb.WriteByte(']')
		return sb.String()

	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)

	case string:
		return strconv.Quote(v)

	case Binary:
		return fmt.Sprintf("Binary(%d:%s)", v.Subtype, hex.EncodeToString(v.B))

	case ObjectID:
		return "ObjectId(" + v.Hex() + ")"

	case bool:
		return strconv.FormatBool(v)

	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)

	case NullType:
		return "null"

	case Regex:
		return "/" + v.Pattern + "/" + v.Options

	case int32:
		return strconv.FormatInt(int64(v), 10)

	case Timestamp:
		return fmt.Sprintf("Timestamp(%d, %d)", int64(v>>32), uint32(v))

	case int64:
		return strconv.FormatInt(v, 10)

	case Decimal128:
		return fmt.Sprintf("Decimal128(%d, %d)", v.H, v.L)

	case Code:
		return "Code(" + strconv.Quote(string(v)) + ")"

	case CodeWithScope:
		return "CodeWithScope(" + strconv.Quote(v.Code) + ")"

	case MinKeyType:
		return "MinKey"

	case MaxKeyType:
		return "MaxKey"

	default:
		panic(fmt.Sprintf("types.FormatValue: unsupported type %T", v))
	}
}
