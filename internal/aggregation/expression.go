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

package aggregation

import (
	"math"
	"strings"
	"time"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// missing marks an expression that resolved to no value; accumulators and
// projections drop it instead of storing null.
type missingType struct{}

var missing = missingType{}

// Evaluate resolves an aggregation expression against a document.
//
// Strings starting with $ are field paths ($$ROOT and $$CURRENT resolve to
// the whole document), documents whose first key is an operator apply it,
// other documents and arrays evaluate element-wise, everything else is a
// literal.
func Evaluate(doc *types.Document, expr any) (any, error) {
	switch expr := expr.(type) {
	case string:
		if !strings.HasPrefix(expr, "$") {
			return expr, nil
		}

		if expr == "$$ROOT" || expr == "$$CURRENT" {
			return doc, nil
		}

		if strings.HasPrefix(expr, "$$") {
			return nil, lazyerrors.Errorf("unknown variable %s", expr)
		}

		v, err := types.GetByPath(doc, expr[1:])
		if err != nil {
			return missing, nil
		}

		return v, nil

	case *types.Document:
		keys := expr.Keys()
		if len(keys) > 0 && strings.HasPrefix(keys[0], "$") {
			arg, _ := expr.Get(keys[0])
			return evaluateOperator(doc, keys[0], arg)
		}

		res := types.MakeDocument(expr.Len())
		for _, k := range keys {
			sub, _ := expr.Get(k)

			v, err := Evaluate(doc, sub)
			if err != nil {
				return nil, err
			}

			if _, isMissing := v.(missingType); isMissing {
				continue
			}

			res.Set(k, v)
		}

		return res, nil

	case *types.Array:
		res := types.MakeArray(expr.Len())
		for _, sub := range expr.Slice() {
			v, err := Evaluate(doc, sub)
			if err != nil {
				return nil, err
			}

			if _, isMissing := v.(missingType); isMissing {
				v = types.Null
			}

			if err := res.Append(v); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}

		return res, nil

	default:
		return expr, nil
	}
}

func evaluateOperator(doc *types.Document, op string, arg any) (any, error) {
	switch op {
	case "$literal":
		return arg, nil

	case "$add", "$subtract", "$multiply", "$divide", "$mod", "$pow":
		return evaluateArithmetic(doc, op, arg)

	case "$abs", "$ceil", "$floor", "$round", "$sqrt", "$trunc":
		return evaluateUnaryMath(doc, op, arg)

	case "$concat":
		return evaluateConcat(doc, arg)

	case "$toUpper", "$toLower", "$strLenCP", "$trim":
		return evaluateStringUnary(doc, op, arg)

	case "$split":
		return evaluateSplit(doc, arg)

	case "$substrCP":
		return evaluateSubstr(doc, arg)

	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte", "$cmp":
		return evaluateComparison(doc, op, arg)

	case "$and", "$or", "$not":
		return evaluateLogical(doc, op, arg)

	case "$cond":
		return evaluateCond(doc, arg)

	case "$ifNull":
		return evaluateIfNull(doc, arg)

	case "$switch":
		return evaluateSwitch(doc, arg)

	case "$size", "$arrayElemAt", "$in", "$concatArrays", "$slice":
		return evaluateArrayOp(doc, op, arg)

	case "$year", "$month", "$dayOfMonth", "$hour", "$minute", "$second":
		return evaluateDatePart(doc, op, arg)

	case "$type":
		v, err := Evaluate(doc, arg)
		if err != nil {
			return nil, err
		}
		if _, isMissing := v.(missingType); isMissing {
			return "missing", nil
		}
		return aliasOf(v), nil

	case "$toString":
		v, err := Evaluate(doc, arg)
		if err != nil {
			return nil, err
		}
		if _, isMissing := v.(missingType); isMissing {
			return missing, nil
		}
		return types.FormatValue(v), nil

	default:
		return nil, lazyerrors.Errorf("unknown expression operator %s", op)
	}
}

func evaluateArithmetic(doc *types.Document, op string, arg any) (any, error) {
	operands, err := evaluateOperands(doc, arg)
	if err != nil {
		return nil, err
	}

	nums := make([]float64, 0, len(operands))
	for _, v := range operands {
		if isNullish(v) {
			return types.Null, nil
		}

		n, ok := asFloat(v)
		if !ok {
			return nil, lazyerrors.Errorf("%s needs numeric operands, got %s", op, aliasOf(v))
		}
		nums = append(nums, n)
	}

	switch op {
	case "$add":
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return numericResult(sum, operands), nil

	case "$multiply":
		product := 1.0
		for _, n := range nums {
			product *= n
		}
		return numericResult(product, operands), nil

	case "$subtract":
		if len(nums) != 2 {
			return nil, lazyerrors.New("$subtract needs exactly 2 operands")
		}
		return numericResult(nums[0]-nums[1], operands), nil

	case "$divide":
		if len(nums) != 2 {
			return nil, lazyerrors.New("$divide needs exactly 2 operands")
		}
		if nums[1] == 0 {
			return nil, lazyerrors.New("cannot divide by zero")
		}
		return nums[0] / nums[1], nil

	case "$mod":
		if len(nums) != 2 {
			return nil, lazyerrors.New("$mod needs exactly 2 operands")
		}
		if nums[1] == 0 {
			return nil, lazyerrors.New("cannot mod by zero")
		}
		return numericResult(math.Mod(nums[0], nums[1]), operands), nil

	default: // $pow
		if len(nums) != 2 {
			return nil, lazyerrors.New("$pow needs exactly 2 operands")
		}
		return math.Pow(nums[0], nums[1]), nil
	}
}

func evaluateUnaryMath(doc *types.Document, op string, arg any) (any, error) {
	v, err := Evaluate(doc, arg)
	if err != nil {
		return nil, err
	}

	if isNullish(v) {
		return types.Null, nil
	}

	n, ok := asFloat(v)
	if !ok {
		return nil, lazyerrors.Errorf("%s needs a numeric operand, got %s", op, aliasOf(v))
	}

	switch op {
	case "$abs":
		return numericResult(math.Abs(n), []any{v}), nil
	case "$ceil":
		return numericResult(math.Ceil(n), []any{v}), nil
	case "$floor":
		return numericResult(math.Floor(n), []any{v}), nil
	case "$round":
		return numericResult(math.Round(n), []any{v}), nil
	case "$trunc":
		return numericResult(math.Trunc(n), []any{v}), nil
	default: // $sqrt
		if n < 0 {
			return nil, lazyerrors.New("$sqrt needs a non-negative operand")
		}
		return math.Sqrt(n), nil
	}
}

func evaluateConcat(doc *types.Document, arg any) (any, error) {
	operands, err := evaluateOperands(doc, arg)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, v := range operands {
		if isNullish(v) {
			return types.Null, nil
		}

		s, ok := v.(string)
		if !ok {
			return nil, lazyerrors.Errorf("$concat needs string operands, got %s", aliasOf(v))
		}
		sb.WriteString(s)
	}

	return sb.String(), nil
}

func evaluateStringUnary(doc *types.Document, op string, arg any) (any, error) {
	// $trim takes {input: <expr>}
	if op == "$trim" {
		spec, ok := arg.(*types.Document)
		if !ok {
			return nil, lazyerrors.New("$trim needs a document with an input field")
		}
		input, err := spec.Get("input")
		if err != nil {
			return nil, lazyerrors.New("$trim needs an input field")
		}
		arg = input
	}

	v, err := Evaluate(doc, arg)
	if err != nil {
		return nil, err
	}

	if isNullish(v) {
		if op == "$strLenCP" {
			return nil, lazyerrors.New("$strLenCP needs a string operand")
		}
		return types.Null, nil
	}

	s, ok := v.(string)
	if !ok {
		return nil, lazyerrors.Errorf("%s needs a string operand, got %s", op, aliasOf(v))
	}

	switch op {
	case "$toUpper":
		return strings.ToUpper(s), nil
	case "$toLower":
		return strings.ToLower(s), nil
	case "$strLenCP":
		return int32(len([]rune(s))), nil
	default: // $trim
		return strings.TrimSpace(s), nil
	}
}

func evaluateSplit(doc *types.Document, arg any) (any, error) {
	operands, err := evaluateOperands(doc, arg)
	if err != nil {
		return nil, err
	}

	if len(operands) != 2 {
		return nil, lazyerrors.New("$split needs exactly 2 operands")
	}

	if isNullish(operands[0]) {
		return types.Null, nil
	}

	s, sOK := operands[0].(string)
	sep, sepOK := operands[1].(string)
	if !sOK || !sepOK {
		return nil, lazyerrors.New("$split needs string operands")
	}

	parts := strings.Split(s, sep)
	res := types.MakeArray(len(parts))
	for _, p := range parts {
		if err := res.Append(p); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return res, nil
}

func evaluateSubstr(doc *types.Document, arg any) (any, error) {
	operands, err := evaluateOperands(doc, arg)
	if err != nil {
		return nil, err
	}

	if len(operands) != 3 {
		return nil, lazyerrors.New("$substrCP needs exactly 3 operands")
	}

	s, ok := operands[0].(string)
	if !ok {
		return nil, lazyerrors.New("$substrCP needs a string first operand")
	}

	start, startOK := asFloat(operands[1])
	length, lengthOK := asFloat(operands[2])
	if !startOK || !lengthOK {
		return nil, lazyerrors.New("$substrCP needs numeric start and length")
	}

	runes := []rune(s)
	from := int(start)
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}

	to := from + int(length)
	if to > len(runes) {
		to = len(runes)
	}
	if to < from {
		to = from
	}

	return string(runes[from:to]), nil
}

func evaluateComparison(doc *types.Document, op string, arg any) (any, error) {
	operands, err := evaluateOperands(doc, arg)
	if err != nil {
		return nil, err
	}

	if len(operands) != 2 {
		return nil, lazyerrors.Errorf("%s needs exactly 2 operands", op)
	}

	a, b := operands[0], operands[1]
	if _, isMissing := a.(missingType); isMissing {
		a = types.Null
	}
	if _, isMissing := b.(missingType); isMissing {
		b = types.Null
	}

	res := types.Compare(a, b)

	switch op {
	case "$eq":
		return res == types.Equal, nil
	case "$ne":
		return res != types.Equal, nil
	case "$gt":
		return res == types.Greater, nil
	case "$gte":
		return res != types.Less, nil
	case "$lt":
		return res == types.Less, nil
	case "$lte":
		return res != types.Greater, nil
	default: // $cmp
		switch res {
		case types.Less:
			return int32(-1), nil
		case types.Greater:
			return int32(1), nil
		default:
			return int32(0), nil
		}
	}
}

func evaluateLogical(doc *types.Document, op string, arg any) (any, error) {
	if op == "$not" {
		operands, err := evaluateOperands(doc, arg)
		if err != nil {
			return nil, err
		}
		if len(operands) != 1 {
			return nil, lazyerrors.New("$not needs exactly 1 operand")
		}

		return !truthy(operands[0]), nil
	}

	operands, err := evaluateOperands(doc, arg)
	if err != nil {
		return nil, err
	}

	if op == "$and" {
		for _, v := range operands {
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil
	}

	for _, v := range operands {
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func evaluateCond(doc *types.Document, arg any) (any, error) {
	var condExpr, thenExpr, elseExpr any

	switch arg := arg.(type) {
	case *types.Array:
		if arg.Len() != 3 {
			return nil, lazyerrors.New("$cond needs exactly 3 operands")
		}
		condExpr, _ = arg.Get(0)
		thenExpr, _ = arg.Get(1)
		elseExpr, _ = arg.Get(2)

	case *types.Document:
		var err error
		if condExpr, err = arg.Get("if"); err != nil {
			return nil, lazyerrors.New("$cond needs an if field")
		}
		if thenExpr, err = arg.Get("then"); err != nil {
			return nil, lazyerrors.New("$cond needs a then field")
		}
		if elseExpr, err = arg.Get("else"); err != nil {
			return nil, lazyerrors.New("$cond needs an else field")
		}

	default:
		return nil, lazyerrors.New("$cond needs an array or a document")
	}

	cond, err := Evaluate(doc, condExpr)
	if err != nil {
		return nil, err
	}

	if truthy(cond) {
		return Evaluate(doc, thenExpr)
	}

	return Evaluate(doc, elseExpr)
}

func evaluateIfNull(doc *types.Document, arg any) (any, error) {
	arr, ok := arg.(*types.Array)
	if !ok {
		return nil, lazyerrors.New("$ifNull needs an array")
	}

	for _, expr := range arr.Slice() {
		v, err := Evaluate(doc, expr)
		if err != nil {
			return nil, err
		}

		if !isNullish(v) {
			return v, nil
		}
	}

	return types.Null, nil
}

func evaluateSwitch(doc *types.Document, arg any) (any, error) {
	spec, ok := arg.(*types.Document)
	if !ok {
		return nil, lazyerrors.New("$switch needs a document")
	}

	branches, err := spec.Get("branches")
	if err != nil {
		return nil, lazyerrors.New("$switch needs a branches field")
	}

	arr, ok := branches.(*types.Array)
	if !ok {
		return nil, lazyerrors.New("$switch branches must be an array")
	}

	for _, b := range arr.Slice() {
		branch, ok := b.(*types.Document)
		if !ok {
			return nil, lazyerrors.New("$switch branches must be documents")
		}

		caseExpr, err := branch.Get("case")
		if err != nil {
			return nil, lazyerrors.New("$switch branch needs a case field")
		}
		thenExpr, err := branch.Get("then")
		if err != nil {
			return nil, lazyerrors.New("$switch branch needs a then field")
		}

		cond, err := Evaluate(doc, caseExpr)
		if err != nil {
			return nil, err
		}

		if truthy(cond) {
			return Evaluate(doc, thenExpr)
		}
	}

	defaultExpr, err := spec.Get("default")
	if err != nil {
		return nil, lazyerrors.New("$switch found no matching branch and has no default")
	}

	return Evaluate(doc, defaultExpr)
}

func evaluateArrayOp(doc *types.Document, op string, arg any) (any, error) {
	switch op {
	case "$size":
		v, err := Evaluate(doc, arg)
		if err != nil {
			return nil, err
		}

		arr, ok := v.(*types.Array)
		if !ok {
			return nil, lazyerrors.Errorf("$size needs an array operand, got %s", aliasOf(v))
		}

		return int32(arr.Len()), nil

	case "$arrayElemAt":
		operands, err := evaluateOperands(doc, arg)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 {
			return nil, lazyerrors.New("$arrayElemAt needs exactly 2 operands")
		}

		arr, ok := operands[0].(*types.Array)
		if !ok {
			return nil, lazyerrors.New("$arrayElemAt needs an array first operand")
		}

		idx, ok := asFloat(operands[1])
		if !ok {
			return nil, lazyerrors.New("$arrayElemAt needs a numeric index")
		}

		i := int(idx)
		if i < 0 {
			i += arr.Len()
		}
		if i < 0 || i >= arr.Len() {
			return missing, nil
		}

		v, _ := arr.Get(i)
		return v, nil

	case "$in":
		operands, err := evaluateOperands(doc, arg)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 {
			return nil, lazyerrors.New("$in needs exactly 2 operands")
		}

		arr, ok := operands[1].(*types.Array)
		if !ok {
			return nil, lazyerrors.New("$in needs an array second operand")
		}

		return arr.Contains(operands[0]), nil

	case "$concatArrays":
		operands, err := evaluateOperands(doc, arg)
		if err != nil {
			return nil, err
		}

		res := types.MakeArray(0)
		for _, v := range operands {
			if isNullish(v) {
				return types.Null, nil
			}

			arr, ok := v.(*types.Array)
			if !ok {
				return nil, lazyerrors.Errorf("$concatArrays needs array operands, got %s", aliasOf(v))
			}

			if err := res.Append(arr.Slice()...); err != nil {
				return nil, lazyerrors.Error(err)
			}
		}

		return res, nil

	default: // $slice
		operands, err := evaluateOperands(doc, arg)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 && len(operands) != 3 {
			return nil, lazyerrors.New("$slice needs 2 or 3 operands")
		}

		arr, ok := operands[0].(*types.Array)
		if !ok {
			return nil, lazyerrors.New("$slice needs an array first operand")
		}

		s := arr.Slice()

		if len(operands) == 2 {
			n, ok := asFloat(operands[1])
			if !ok {
				return nil, lazyerrors.New("$slice needs a numeric count")
			}

			count := int(n)
			switch {
			case count >= 0:
				if count > len(s) {
					count = len(s)
				}
				s = s[:count]
			default:
				if -count > len(s) {
					count = -len(s)
				}
				s = s[len(s)+count:]
			}
		} else {
			from, fromOK := asFloat(operands[1])
			n, nOK := asFloat(operands[2])
			if !fromOK || !nOK {
				return nil, lazyerrors.New("$slice needs numeric position and count")
			}
			if n <= 0 {
				return nil, lazyerrors.New("$slice count must be positive")
			}

			start := int(from)
			if start < 0 {
				start += len(s)
				if start < 0 {
					start = 0
				}
			}
			if start > len(s) {
				start = len(s)
			}

			end := start + int(n)
			if end > len(s) {
				end = len(s)
			}

			s = s[start:end]
		}

		res := types.MakeArray(len(s))
		if err := res.Append(s...); err != nil {
			return nil, lazyerrors.Error(err)
		}

		return res, nil
	}
}

func evaluateDatePart(doc *types.Document, op string, arg any) (any, error) {
	v, err := Evaluate(doc, arg)
	if err != nil {
		return nil, err
	}

	if isNullish(v) {
		return types.Null, nil
	}

	date, ok := v.(time.Time)
	if !ok {
		return nil, lazyerrors.Errorf("%s needs a date operand, got %s", op, aliasOf(v))
	}

	date = date.UTC()

	switch op {
	case "$year":
		return int32(date.Year()), nil
	case "$month":
		return int32(date.Month()), nil
	case "$dayOfMonth":
		return int32(date.Day()), nil
	case "$hour":
		return int32(date.Hour()), nil
	case "$minute":
		return int32(date.Minute()), nil
	default: // $second
		return int32(date.Second()), nil
	}
}

// evaluateOperands resolves an operator argument into a flat operand list;
// a single non-array argument is a one-element list.
func evaluateOperands(doc *types.Document, arg any) ([]any, error) {
	exprs := []any{arg}
	if arr, ok := arg.(*types.Array); ok {
		exprs = arr.Slice()
	}

	operands := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, err := Evaluate(doc, e)
		if err != nil {
			return nil, err
		}
		operands = append(operands, v)
	}

	return operands, nil
}

func isNullish(v any) bool {
	switch v.(type) {
	case types.NullType, missingType, nil:
		return true
	default:
		return false
	}
}

// truthy follows the aggregation notion of boolean conversion: null,
// missing, false and numeric zero are false, everything else is true.
func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case types.NullType, missingType, nil:
		return false
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
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

// numericResult narrows a float result back to int when every operand was
// integral and the value fits.
func numericResult(n float64, operands []any) any {
	for _, v := range operands {
		switch v.(type) {
		case int32, int64:
			// keep checking
		default:
			return n
		}
	}

	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt64 {
		return n
	}

	for _, v := range operands {
		if _, isLong := v.(int64); isLong {
			return int64(n)
		}
	}

	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return int32(n)
	}

	return int64(n)
}

func aliasOf(v any) string {
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
	case missingType:
		return "missing"
	default:
		return "unknown"
	}
}
