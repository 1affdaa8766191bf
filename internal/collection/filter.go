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

package collection

import (
	"regexp"
	"strings"
	"time"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// Match reports whether the document satisfies the query filter.
func Match(doc *types.Document, filter *types.Document) (bool, error) {
	if filter == nil {
		return true, nil
	}

	for _, key := range filter.Keys() {
		cond, _ := filter.Get(key)

		matches, err := matchKey(doc, key, cond)
		if err != nil {
			return false, err
		}

		if !matches {
			return false, nil
		}
	}

	return true, nil
}

func matchKey(doc *types.Document, key string, cond any) (bool, error) {
	switch key {
	case "$and":
		return matchLogical(doc, cond, key, func(results []bool) bool {
			for _, r := range results {
				if !r {
					return false
				}
			}
			return true
		})

	case "$or":
		return matchLogical(doc, cond, key, func(results []bool) bool {
			for _, r := range results {
				if r {
					return true
				}
			}
			return false
		})

	case "$nor":
		return matchLogical(doc, cond, key, func(results []bool) bool {
			for _, r := range results {
				if r {
					return false
				}
			}
			return true
		})

	case "$not":
		sub, ok := cond.(*types.Document)
		if !ok {
			return false, lazyerrors.New("$not needs a document")
		}

		matches, err := Match(doc, sub)
		if err != nil {
			return false, err
		}

		return !matches, nil
	}

	if strings.HasPrefix(key, "$") {
		return false, lazyerrors.Errorf("unknown top-level operator %s", key)
	}

	value, err := types.GetByPath(doc, key)
	exists := err == nil

	if condDoc, ok := cond.(*types.Document); ok && isOperatorDoc(condDoc) {
		return matchOperators(value, exists, condDoc)
	}

	if !exists {
		_, isNull := cond.(types.NullType)
		return isNull, nil
	}

	return types.Compare(value, cond) == types.Equal, nil
}

func matchLogical(doc *types.Document, cond any, op string, combine func([]bool) bool) (bool, error) {
	arr, ok := cond.(*types.Array)
	if !ok {
		return false, lazyerrors.Errorf("%s needs an array", op)
	}

	results := make([]bool, arr.Len())
	for i, v := range arr.Slice() {
		sub, ok := v.(*types.Document)
		if !ok {
			return false, lazyerrors.Errorf("%s needs an array of documents", op)
		}

		r, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		results[i] = r
	}

	return combine(results), nil
}

// isOperatorDoc reports whether every key of the document is a $-operator.
func isOperatorDoc(doc *types.Document) bool {
	keys := doc.Keys()
	if len(keys) == 0 {
		return false
	}

	for _, k := range keys {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}

	return true
}

func matchOperators(value any, exists bool, ops *types.Document) (bool, error) {
	for _, op := range ops.Keys() {
		arg, _ := ops.Get(op)

		matches, err := matchOperator(value, exists, op, arg)
		if err != nil {
			return false, err
		}

		if !matches {
			return false, nil
		}
	}

	return true, nil
}

func matchOperator(value any, exists bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return exists && types.Compare(value, arg) == types.Equal, nil

	case "$ne":
		return !exists || types.Compare(value, arg) != types.Equal, nil

	case "$gt":
		return exists && ordersWith(value, arg) && types.Compare(value, arg) == types.Greater, nil

	case "$gte":
		return exists && ordersWith(value, arg) && types.Compare(value, arg) != types.Less, nil

	case "$lt":
		return exists && ordersWith(value, arg) && types.Compare(value, arg) == types.Less, nil

	case "$lte":
		return exists && ordersWith(value, arg) && types.Compare(value, arg) != types.Greater, nil

	case "$in":
		arr, ok := arg.(*types.Array)
		if !ok {
			return false, lazyerrors.New("$in needs an array")
		}

		if !exists {
			return false, nil
		}

		for _, v := range arr.Slice() {
			if types.Compare(value, v) == types.Equal {
				return true, nil
			}
		}

		return false, nil

	case "$nin":
		arr, ok := arg.(*types.Array)
		if !ok {
			return false, lazyerrors.New("$nin needs an array")
		}

		if !exists {
			return true, nil
		}

		for _, v := range arr.Slice() {
			if types.Compare(value, v) == types.Equal {
				return false, nil
			}
		}

		return true, nil

	case "$exists":
		want := true
		switch arg := arg.(type) {
		case bool:
			want = arg
		case int32:
			want = arg != 0
		case int64:
			want = arg != 0
		case float64:
			want = arg != 0
		}

		return exists == want, nil

	case "$type":
		name, ok := arg.(string)
		if !ok {
			return false, lazyerrors.New("$type needs a string alias")
		}

		return exists && typeAlias(value) == name, nil

	case "$regex":
		return matchRegex(value, exists, arg)

	case "$size":
		n, ok := numericArg(arg)
		if !ok {
			return false, lazyerrors.New("$size needs a number")
		}

		arr, isArr := value.(*types.Array)
		return exists && isArr && int64(arr.Len()) == n, nil

	case "$all":
		arr, ok := arg.(*types.Array)
		if !ok {
			return false, lazyerrors.New("$all needs an array")
		}

		target, isArr := value.(*types.Array)
		if !exists || !isArr {
			return false, nil
		}

		for _, want := range arr.Slice() {
			var found bool
			for _, have := range target.Slice() {
				if types.Compare(have, want) == types.Equal {
					found = true
					break
				}
			}

			if !found {
				return false, nil
			}
		}

		return true, nil

	default:
		return false, lazyerrors.Errorf("unknown operator %s", op)
	}
}

func matchRegex(value any, exists bool, arg any) (bool, error) {
	if !exists {
		return false, nil
	}

	s, ok := value.(string)
	if !ok {
		return false, nil
	}

	var pattern, options string
	switch arg := arg.(type) {
	case string:
		pattern = arg
	case types.Regex:
		pattern, options = arg.Pattern, arg.Options
	default:
		return false, lazyerrors.New("$regex needs a string or regex")
	}

	if strings.Contains(options, "i") {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, lazyerrors.Error(err)
	}

	return re.MatchString(s), nil
}

// ordersWith rejects cross-type ordering except between numeric types.
func ordersWith(a, b any) bool {
	return typeAlias(a) == typeAlias(b) || (isNumeric(a) && isNumeric(b))
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int32, int64, float64:
		return true
	default:
		return false
	}
}

// typeAlias returns the MongoDB type alias of a value.
func typeAlias(v any) string {
	switch v.(type) {
	case *types.Document:
		return "object"
	case *types.Array:
		return "array"
	case float64:
		return "double"
	case string:
		return "string"
	case types.Binary:
		return "binData"
	case types.ObjectID:
		return "objectId"
	case bool:
		return "bool"
	case types.NullType, nil:
		return "null"
	case types.Regex:
		return "regex"
	case int32:
		return "int"
	case types.Timestamp:
		return "timestamp"
	case int64:
		return "long"
	case types.Decimal128:
		return "decimal"
	case time.Time:
		return "date"
	default:
		return "unknown"
	}
}

func numericArg(v any) (int64, bool) {
	switch v := v.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
