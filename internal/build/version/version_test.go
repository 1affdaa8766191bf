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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Parallel()

	info := Get()
	require.NotNil(t, info)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.Equal(t, MongoDBVersion, info.MongoDBVersion)
}

func TestVersionArray(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int32{6, 0, 0, 0}, Get().VersionArray())

	i := &Info{MongoDBVersion: "7.2"}
	assert.Equal(t, []int32{7, 2, 0, 0}, i.VersionArray())
}
