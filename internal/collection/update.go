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
	"strings"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// ApplyUpdate applies an update document to doc in place and reports
// whether any field changed.
//
// An update without $-operators is a full replacement that preserves _id.
func ApplyUpdate(doc *types.Document, update *types.Document) (bool, error) {
	if update == nil || update.Len() == 0 {
		return false, nil
	}

	if !hasUpdateOperators(update) {
		return applyReplacement(doc, update), nil
	}

	var changed bool

	for _, op := range update.Keys() {
		arg, _ := update.Get(op)

		argDoc, ok := arg.(*types.Document)
		if !ok {
			return false, lazyerrors.Errorf("update operator %s needs a document", op)
		}

		c, err := applyUpdateOperator(doc, op, argDoc)
		if err != nil {
			return false, err
		}

		changed = changed || c
	}

	return changed, nil
}

func hasUpdateOperators(update *types.Document) bool {
	for _, k := range update.Keys() {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}

	return false
}

func applyReplacement(doc *types.Document, update *types.Document) bool {
	id, idErr := doc.Get("_id")

	before := types.FormatValue(doc)

	for _, k := range append([]string(nil), doc.Keys()...) {
		doc.Remove(k)
	}

	if idErr == nil {
		doc.Set("_id", id)
	}

	values := update.Values()
	for i, k := range update.Keys() {
		if k == "_id" {
			continue
		}
		doc.Set(k, values[i])
	}

	return types.FormatValue(doc) != before
}

func applyUpdateOperator(doc *types.Document, op string, arg *types.Document) (bool, error) {
	var changed bool

	for _, path := range arg.Keys() {
		value, _ := arg.Get(path)

		switch op {
		case "$set":
			old, err := types.GetByPath(doc, path)
			if err == nil && types.FormatValue(old) == types.FormatValue(value) {
				continue
			}

			if err := types.SetByPath(doc, path, value); err != nil {
				return false, lazyerrors.Error(err)
			}
			changed = true

		case "$unset":
			if !types.HasByPath(doc, path) {
				continue
			}

			types.RemoveByPath(doc, path)
			changed = true

		case "$inc":
			delta, ok := numericValue(value)
			if !ok {
				return false, lazyerrors.Errorf("$inc needs a numeric value for %s", path)
			}

			old, err := types.GetByPath(doc, path)
			if err != nil {
				if err := types.SetByPath(doc, path, value); err != nil {
					return false, lazyerrors.Error(err)
				}
				changed = true
				continue
			}

			incremented, err := addNumbers(old, delta, value)
			if err != nil {
				return false, err
			}

			if err := types.SetByPath(doc, path, incremented); err != nil {
				return false, lazyerrors.Error(err)
			}
			changed = true

		case "$push":
			old, err := types.GetByPath(doc, path)
			if err != nil {
				arr := types.MakeArray(1)
				_ = arr.Append(value)

				if err := types.SetByPath(doc, path, arr); err != nil {
					return false, lazyerrors.Error(err)
				}
				changed = true
				continue
			}

			arr, ok := old.(*types.Array)
			if !ok {
				return false, lazyerrors.Errorf("$push target %s is not an array", path)
			}

			_ = arr.Append(value)
			changed = true

		case "$pull":
			old, err := types.GetByPath(doc, path)
			if err != nil {
				continue
			}

			arr, ok := old.(*types.Array)
			if !ok {
				return false, lazyerrors.Errorf("$pull target %s is not an array", path)
			}

			for i := arr.Len() - 1; i >= 0; i-- {
				v, _ := arr.Get(i)
				if types.Compare(v, value) == types.Equal {
					arr.Remove(i)
					changed = true
				}
			}

		default:
			return false, lazyerrors.Errorf("unknown update operator %s", op)
		}
	}

	return changed, nil
}

func numericValue(v any) (float64, bool) {
	switch v := v.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// addNumbers keeps the result in the old value's type when both sides are
// integral, widening int32 to int64 on overflow.
func addNumbers(old any, delta float64, deltaValue any) (any, error) {
	switch old := old.(type) {
	case int32:
		if _, isFloat := deltaValue.(float64); isFloat {
			return float64(old) + delta, nil
		}

		sum := int64(old) + int64(delta)
		if sum >= -2147483648 && sum <= 2147483647 {
			return int32(sum), nil
		}
		return sum, nil

	case int64:
		if _, isFloat := deltaValue.(float64); isFloat {
			return float64(old) + delta, nil
		}
		return old + int64(delta), nil

	case float64:
		return old + delta, nil

	default:
		return nil, lazyerrors.Errorf("$inc target is not numeric")
	}
}
