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

package generator

import (
	"fmt"
	"time"
)

var (
	emailDomains = []string{"example.com", "example.org", "example.net", "mail.test", "corp.test"}
	uriSchemes   = []string{"https", "http", "ftp"}
	uriPaths     = []string{"/", "/index", "/api/v1/items", "/docs", "/search", "/about"}
	hostSuffixes = []string{"internal", "local", "example.com", "svc.cluster"}
)

// formatEpochRange bounds generated timestamps to 2020-01-01 .. +5y.
var formatEpochStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

const formatEpochSpan = 5 * 365 * 24 * time.Hour

func (g *Generator) generateFormat(format string) string {
	switch format {
	case "email":
		return fmt.Sprintf("user%d@%s", g.rng.Intn(10000), emailDomains[g.rng.Intn(len(emailDomains))])

	case "uri":
		return fmt.Sprintf("%s://%s%s",
			uriSchemes[g.rng.Intn(len(uriSchemes))],
			emailDomains[g.rng.Intn(len(emailDomains))],
			uriPaths[g.rng.Intn(len(uriPaths))],
		)

	case "date-time":
		return g.randomTime().Format("2006-01-02T15:04:05.000Z")

	case "date":
		return g.randomTime().Format("2006-01-02")

	case "time":
		return g.randomTime().Format("15:04:05")

	case "uuid":
		return g.generateUUID()

	case "ipv4":
		return fmt.Sprintf("%d.%d.%d.%d",
			g.rng.Intn(224), g.rng.Intn(256), g.rng.Intn(256), 1+g.rng.Intn(254))

	case "ipv6":
		groups := make([]any, 8)
		for i := range groups {
			groups[i] = g.rng.Intn(0x10000)
		}
		return fmt.Sprintf("%x:%x:%x:%x:%x:%x:%x:%x", groups...)

	case "hostname":
		return fmt.Sprintf("host%d.%s", g.rng.Intn(1000), hostSuffixes[g.rng.Intn(len(hostSuffixes))])

	default:
		return g.generateRandomString(5, 12)
	}
}

func (g *Generator) randomTime() time.Time {
	return formatEpochStart.Add(time.Duration(g.rng.Int63n(int64(formatEpochSpan))))
}

// generateUUID produces an RFC 4122 version 4 UUID from the generator's
// own stream, keeping seeded runs reproducible.
func (g *Generator) generateUUID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(g.rng.Intn(256))
	}

	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
