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

// Package aggregation runs aggregation pipelines over document slices.
//
// Stages transform a fully materialized input slice; there is no
// streaming. An intermediate-size ceiling keeps $unwind and $lookup
// from blowing up memory.
package aggregation

import (
	"math/rand"
	"time"

	"github.com/DataFlood/DataFlood/internal/types"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// maxIntermediate caps the document count between stages.
const maxIntermediate = 100_000

// lookupFetchLimit bounds how many foreign documents a $lookup pulls.
const lookupFetchLimit = 100

// Source lets pipeline stages reach other collections: $lookup reads from
// them, $merge and $out write to them.
type Source interface {
	Fetch(db, collection string, limit int64) ([]*types.Document, error)
	Store(db, collection string, docs []*types.Document) error
}

type stage interface {
	Process(in []*types.Document) ([]*types.Document, error)
}

// Pipeline is a compiled aggregation pipeline.
type Pipeline struct {
	db     string
	source Source
	stages []stage
	rng    *rand.Rand
}

// New compiles the pipeline stages. The source may be nil when no stage
// reaches another collection.
func New(db string, stages *types.Array, source Source) (*Pipeline, error) {
	p := &Pipeline{
		db:     db,
		source: source,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for i, v := range stages.Slice() {
		spec, ok := v.(*types.Document)
		if !ok {
			return nil, lazyerrors.Errorf("pipeline stage %d is not a document", i)
		}

		s, err := p.compileStage(spec)
		if err != nil {
			return nil, err
		}

		p.stages = append(p.stages, s)
	}

	return p, nil
}

// Run feeds the input through every stage in order.
func (p *Pipeline) Run(in []*types.Document) ([]*types.Document, error) {
	docs := in

	for _, s := range p.stages {
		var err error
		if docs, err = s.Process(docs); err != nil {
			return nil, err
		}

		if len(docs) > maxIntermediate {
			return nil, lazyerrors.Errorf("intermediate result exceeds %d documents", maxIntermediate)
		}
	}

	return docs, nil
}

func (p *Pipeline) compileStage(spec *types.Document) (stage, error) {
	keys := spec.Keys()
	if len(keys) != 1 {
		return nil, lazyerrors.New("a pipeline stage must have exactly one field")
	}

	name := keys[0]
	arg, _ := spec.Get(name)

	switch name {
	case "$match":
		return newMatchStage(arg)
	case "$project":
		return newProjectStage(arg)
	case "$addFields", "$set":
		return newAddFieldsStage(name, arg)
	case "$unset":
		return newUnsetStage(arg)
	case "$group":
		return newGroupStage(arg)
	case "$sort":
		return newSortStage(arg)
	case "$limit":
		return newLimitStage(arg)
	case "$skip":
		return newSkipStage(arg)
	case "$count":
		return newCountStage(arg)
	case "$unwind":
		return newUnwindStage(arg)
	case "$replaceRoot", "$replaceWith":
		return newReplaceRootStage(name, arg)
	case "$sample":
		return newSampleStage(arg, p.rng)
	case "$lookup":
		return newLookupStage(arg, p.db, p.source)
	case "$facet":
		return newFacetStage(arg, p.db, p.source)
	case "$bucket":
		return newBucketStage(arg)
	case "$bucketAuto":
		return newBucketAutoStage(arg)
	case "$out":
		return newOutStage(arg, p.db, p.source)
	case "$merge":
		return newMergeStage(arg, p.db, p.source)
	default:
		return nil, lazyerrors.Errorf("unknown pipeline stage %s", name)
	}
}
