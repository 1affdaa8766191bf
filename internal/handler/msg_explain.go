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
	"os"

	"github.com/DataFlood/DataFlood/internal/build/version"
	"github.com/DataFlood/DataFlood/internal/types"
)

// msgExplain serves the explain command. Every plan is the same: generate
// from the model and post-filter, so the plan is descriptive only.
func (h *Handler) msgExplain(ctx context.Context, document *types.Document) (*types.Document, error) {
	cmd, err := getRequiredParam[*types.Document](document, "explain")
	if err != nil {
		return nil, err
	}

	inner := "<empty>"
	if keys := cmd.Keys(); len(keys) > 0 {
		inner = keys[0]
	}

	coll := getOptionalParam(cmd, inner, "")
	db := getOptionalParam(document, "$db", "")

	winningPlan := types.MakeDocument(1)
	winningPlan.Set("stage", "GENERATE")

	queryPlanner := types.MakeDocument(4)
	queryPlanner.Set("namespace", db+"."+coll)
	queryPlanner.Set("indexFilterSet", false)
	queryPlanner.Set("parsedQuery", getOptionalParam[*types.Document](cmd, "filter", types.MakeDocument(0)))
	queryPlanner.Set("winningPlan", winningPlan)

	host, _ := os.Hostname()

	serverInfo := types.MakeDocument(2)
	serverInfo.Set("host", host)
	serverInfo.Set("version", version.Get().MongoDBVersion)

	return okDoc(
		"queryPlanner", queryPlanner,
		"explainVersion", "1",
		"command", cmd,
		"serverInfo", serverInfo,
	), nil
}
