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

// Package version provides build information.
package version

import (
	"runtime/debug"
	"strconv"
	"strings"
)

// MongoDBVersion is the compatible MongoDB server version the handshake
// advertises.
const MongoDBVersion = "6.0.0"

// Info is the build information.
type Info struct {
	Version        string
	Commit         string
	MongoDBVersion string
	Debug          bool
}

// Version is set by the linker; the default marks an untagged build.
var version = "unknown"

var info *Info

func init() {
	info = &Info{
		Version:        version,
		Commit:         "unknown",
		MongoDBVersion: MongoDBVersion,
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "-race":
			if s.Value == "true" {
				info.Debug = true
			}
		}
	}
}

// Get returns the build information.
func Get() *Info {
	return info
}

// VersionArray returns the advertised MongoDB version as the four-element
// numeric array drivers expect.
func (i *Info) VersionArray() []int32 {
	res := []int32{0, 0, 0, 0}

	for n, part := range strings.SplitN(i.MongoDBVersion, ".", 3) {
		if v, err := strconv.Atoi(part); err == nil {
			res[n] = int32(v)
		}
	}

	return res
}
