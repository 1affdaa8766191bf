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
	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// Project applies a projection document. Inclusion and exclusion must not
// be mixed, except that _id may be toggled off inside an inclusion.
func Project(doc *types.Document, projection *types.Document) (*types.Document, error) {
	if projection == nil || projection.Len() == 0 {
		return doc, nil
	}

	inclusion, err := classifyProjection(projection)
	if err != nil {
		return nil, err
	}

	if inclusion {
		return projectInclusion(doc, projection)
	}

	return projectExclusion(doc, projection)
}

// classifyProjection reports whether the projection is an inclusion.
// The _id field does not participate in the classification.
func classifyProjection(projection *types.Document) (bool, error) {
	var inclusions, exclusions int

	for _, key := range projection.Keys() {
		v, _ := projection.Get(key)

		if key == "_id" {
			continue
		}

		if projectionFlag(v) {
			inclusions++
		} else {
			exclusions++
		}
	}

	if inclusions > 0 && exclusions > 0 {
		return false, lazyerrors.New("cannot mix inclusion and exclusion in a projection")
	}

	// a projection of only {_id: 0} is an exclusion
	if inclusions == 0 && exclusions == 0 {
		v, _ := projection.Get("_id")
		return projectionFlag(v), nil
	}

	return inclusions > 0, nil
}

func projectionFlag(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

func projectInclusion(doc *types.Document, projection *types.Document) (*types.Document, error) {
	res := types.MakeDocument(projection.Len() + 1)

	if id, err := doc.Get("_id"); err == nil {
		excluded := false
		if v, err := projection.Get("_id"); err == nil && !projectionFlag(v) {
			excluded = true
		}

		if !excluded {
			res.Set("_id", id)
		}
	}

	for _, key := range projection.Keys() {
		if key == "_id" {
			continue
		}

		v, _ := projection.Get(key)
		if !projectionFlag(v) {
			continue
		}

		value, err := types.GetByPath(doc, key)
		if err != nil {
			continue
		}

		if err := types.SetByPath(res, key, value); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return res, nil
}

func projectExclusion(doc *types.Document, projection *types.Document) (*types.Document, error) {
	res := doc.DeepCopy()

	for _, key := range projection.Keys() {
		v, _ := projection.Get(key)
		if projectionFlag(v) {
			continue
		}

		types.RemoveByPath(res, key)
	}

	return res, nil
}
