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
	"bytes"
	"math"
	"math/big"
	"time"

	"golang.org/x/exp/constraints"
)

// CompareResult represents the result of a comparison.
type CompareResult int8

// Values match results of comparison functions such as bytes.Compare.
const (
	Equal   CompareResult = 0  // ==
	Less    CompareResult = -1 // <
	Greater CompareResult = 1  // >
)

// typeOrder is the BSON canonical sort order of types.
func typeOrder(v any) int {
	switch v.(type) {
	case MinKeyType:
		return 0
	case NullType:
		return 1
	case float64, int32, int64, Decimal128:
		return 2
	case string, Code:
		return 3
	case *Document:
		return 4
	case *Array:
		return 5
	case Binary:
		return 6
	case ObjectID:
		return 7
	case bool:
		return 8
	case time.Time:
		return 9
	case Timestamp:
		return 10
	case Regex:
		return 11
	case CodeWithScope:
		return 12
	case MaxKeyType:
		return 13
	default:
		panic("types.typeOrder: unsupported type")
	}
}

// Compare compares any two BSON values the way MongoDB does it for filtering and sorting.
//
// It converts numeric types as needed; that may result in different types being equal.
func Compare(docValue, filterValue any) CompareResult {
	if docValue == nil {
		panic("types.Compare: docValue is nil")
	}
	if filterValue == nil {
		panic("types.Compare: filterValue is nil")
	}

	switch docValue := docValue.(type) {
	case *Document:
		if filterDoc, ok := filterValue.(*Document); ok {
			return compareDocuments(docValue, filterDoc)
		}

		return compareTypeOrder(docValue, filterValue)

	case *Array:
		if filterArr, ok := filterValue.(*Array); ok {
			return compareArrays(docValue, filterArr)
		}

		return compareTypeOrder(docValue, filterValue)

	default:
		return compareScalars(docValue, filterValue)
	}
}

// compareTypeOrder compares values by their type order only.
func compareTypeOrder(v1, v2 any) CompareResult {
	return compareOrdered(typeOrder(v1), typeOrder(v2))
}

// compareScalars compares BSON scalar values.
func compareScalars(v1, v2 any) CompareResult {
	switch v1 := v1.(type) {
	case float64:
		switch v2 := v2.(type) {
		case float64:
			if math.IsNaN(v1) && math.IsNaN(v2) {
				return Equal
			}
			return compareOrdered(v1, v2)
		case int32:
			return compareNumbers(v1, int64(v2))
		case int64:
			return compareNumbers(v1, v2)
		}

	case string:
		if v, ok := v2.(string); ok {
			return compareOrdered(v1, v)
		}

	case Binary:
		if v, ok := v2.(Binary); ok {
			if l1, l2 := len(v1.B), len(v.B); l1 != l2 {
				return compareOrdered(l1, l2)
			}
			if v1.Subtype != v.Subtype {
				return compareOrdered(v1.Subtype, v.Subtype)
			}
			return CompareResult(bytes.Compare(v1.B, v.B))
		}

	case ObjectID:
		if v, ok := v2.(ObjectID); ok {
			return CompareResult(bytes.Compare(v1[:], v[:]))
		}

	case bool:
		if v, ok := v2.(bool); ok {
			switch {
			case v1 == v:
				return Equal
			case v:
				return Less
			default:
				return Greater
			}
		}

	case time.Time:
		if v, ok := v2.(time.Time); ok {
			return compareOrdered(v1.UnixMilli(), v.UnixMilli())
		}

	case NullType:
		if _, ok := v2.(NullType); ok {
			return Equal
		}

	case Regex:
		if v, ok := v2.(Regex); ok {
			if res := compareOrdered(v1.Pattern, v.Pattern); res != Equal {
				return res
			}
			return compareOrdered(v1.Options, v.Options)
		}

	case int32:
		switch v2 := v2.(type) {
		case float64:
			return compareInvert(compareNumbers(v2, int64(v1)))
		case int32:
			return compareOrdered(v1, v2)
		case int64:
			return compareOrdered(int64(v1), v2)
		}

	case Timestamp:
		if v, ok := v2.(Timestamp); ok {
			return compareOrdered(v1, v)
		}

	case int64:
		switch v2 := v2.(type) {
		case float64:
			return compareInvert(compareNumbers(v2, v1))
		case int32:
			return compareOrdered(v1, int64(v2))
		case int64:
			return compareOrdered(v1, v2)
		}

	case Code:
		if v, ok := v2.(Code); ok {
			return compareOrdered(string(v1), string(v))
		}

	case MinKeyType:
		if _, ok := v2.(MinKeyType); ok {
			return Equal
		}

	case MaxKeyType:
		if _, ok := v2.(MaxKeyType); ok {
			return Equal
		}
	}

	return compareTypeOrder(v1, v2)
}

// compareInvert swaps Less and Greater, keeping Equal.
func compareInvert(res CompareResult) CompareResult {
	switch res {
	case Equal:
		return Equal
	case Less:
		return Greater
	case Greater:
		return Less
	}

	panic("not reached")
}

// compareOrdered compares values of the same ordered type.
func compareOrdered[T constraints.Ordered](a, b T) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

// compareNumbers compares a float64 with an int64 without loss of precision.
func compareNumbers(a float64, b int64) CompareResult {
	if math.IsNaN(a) {
		return Less
	}

	bigA := new(big.Float).SetFloat64(a)
	bigB := new(big.Float).SetInt64(b)

	return CompareResult(bigA.Cmp(bigB))
}

// compareArrays compares arrays element by element; a shorter array sorts first.
func compareArrays(a, b *Array) CompareResult {
	for i := 0; i < a.Len() && i < b.Len(); i++ {
		v1 := a.elements[i]
		v2 := b.elements[i]

		if res := compareTypeOrder(v1, v2); res != Equal {
			return res
		}

		if res := Compare(v1, v2); res != Equal {
			return res
		}
	}

	return compareOrdered(a.Len(), b.Len())
}

// compareDocuments compares documents in the order of types, keys, then values.
func compareDocuments(a, b *Document) CompareResult {
	for i := 0; i < a.Len() && i < b.Len(); i++ {
		f1 := a.fields[i]
		f2 := b.fields[i]

		if res := compareTypeOrder(f1.value, f2.value); res != Equal {
			return res
		}

		if res := compareOrdered(f1.key, f2.key); res != Equal {
			return res
		}

		if res := Compare(f1.value, f2.value); res != Equal {
			return res
		}
	}

	return compareOrdered(a.Len(), b.Len())
}
