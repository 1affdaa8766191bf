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
	"time"

	"github.com/DataFlood/DataFlood/internal/build/version"
	"github.com/DataFlood/DataFlood/internal/types"
)

// msgPing serves the ping command.
func (h *Handler) msgPing(ctx context.Context, document *types.Document) (*types.Document, error) {
	return okDoc(), nil
}

// msgBuildInfo serves the buildInfo command.
func (h *Handler) msgBuildInfo(ctx context.Context, document *types.Document) (*types.Document, error) {
	info := version.Get()

	versionArray := types.MakeArray(4)
	for _, n := range info.VersionArray() {
		_ = versionArray.Append(n)
	}

	return okDoc(
		"version", info.MongoDBVersion,
		"gitVersion", info.Commit,
		"modules", types.MakeArray(0),
		"sysInfo", "deprecated",
		"versionArray", versionArray,
		"bits", int32(64),
		"debug", info.Debug,
		"maxBsonObjectSize", maxBSONObjectSize,
		"dataflood", okDoc("version", info.Version),
	), nil
}

// msgGetParameter serves the getParameter command; only the handful of
// parameters drivers probe for are reported.
func (h *Handler) msgGetParameter(ctx context.Context, document *types.Document) (*types.Document, error) {
	return okDoc(
		"featureCompatibilityVersion", okDoc("version", "6.0"),
		"quiet", false,
	), nil
}

// msgWhatsMyURI serves the whatsmyuri command.
func (h *Handler) msgWhatsMyURI(ctx context.Context, conn *ConnInfo, document *types.Document) (*types.Document, error) {
	return okDoc("you", conn.PeerAddr), nil
}

// msgConnectionStatus serves the connectionStatus command; there is no
// authentication, so the user sets are empty.
func (h *Handler) msgConnectionStatus(ctx context.Context, document *types.Document) (*types.Document, error) {
	authInfo := types.MakeDocument(2)
	authInfo.Set("authenticatedUsers", types.MakeArray(0))
	authInfo.Set("authenticatedUserRoles", types.MakeArray(0))

	return okDoc("authInfo", authInfo), nil
}

// msgGetLog serves the getLog command with a canned startup log.
func (h *Handler) msgGetLog(ctx context.Context, document *types.Document) (*types.Document, error) {
	name, err := getRequiredParam[string](document, "getLog")
	if err != nil {
		return nil, err
	}

	switch name {
	case "startupWarnings", "global":
		log := types.MakeArray(1)
		_ = log.Append("powered by statistical models; inserted documents train models and are not persisted")

		return okDoc("totalLinesWritten", int32(log.Len()), "log", log), nil

	case "*":
		names := types.MakeArray(2)
		_ = names.Append("global", "startupWarnings")

		return okDoc("names", names), nil

	default:
		return nil, NewCommandErrorf(ErrBadValue, "no RamLog named: %s", name)
	}
}

// msgGetCmdLineOpts serves the getCmdLineOpts command.
func (h *Handler) msgGetCmdLineOpts(ctx context.Context, document *types.Document) (*types.Document, error) {
	argv := types.MakeArray(1)
	_ = argv.Append("dataflood")

	return okDoc("argv", argv, "parsed", types.MakeDocument(0)), nil
}

// msgServerStatus serves the serverStatus command.
func (h *Handler) msgServerStatus(ctx context.Context, document *types.Document) (*types.Document, error) {
	host, _ := os.Hostname()
	info := version.Get()
	uptime := time.Since(h.startTime)

	return okDoc(
		"host", host,
		"version", info.MongoDBVersion,
		"process", "dataflood",
		"pid", int64(os.Getpid()),
		"uptime", uptime.Seconds(),
		"uptimeMillis", uptime.Milliseconds(),
		"uptimeEstimate", int64(uptime.Seconds()),
		"localTime", time.Now().UTC(),
	), nil
}
