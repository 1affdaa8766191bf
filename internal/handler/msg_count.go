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

package handler

import (
	"context"

	"github.com/DataFlood/DataFlood/internal/types"
)

// msgCount serves the count command. There is no document store, so the
// count is a surrogate reflecting whether the model is trained.
func (h *Handler) msgCount(ctx context.Context, document *types.Document) (*types.Document, error) {
	c, _, _, err := h.collectionFor(document, "count")
	if err != nil {
		return nil, err
	}

	query := getOptionalParam[*types.Document](document, "query", nil)

	return okDoc("n", int32(c.Count(query))), nil
}
