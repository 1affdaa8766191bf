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

package inference

import "regexp"

// formatDetector pairs a JSON-Schema format name with its recognizer.
// Order matters: the first format that matches every value wins.
type formatDetector struct {
	name string
	re   *regexp.Regexp
}

var formatDetectors = []formatDetector{
	{"uuid", regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)},
	{"date-time", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[Tt ]\d{2}:\d{2}:\d{2}(\.\d+)?([Zz]|[+-]\d{2}:\d{2})?$`)},
	{"date", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)},
	{"time", regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?$`)},
	{"email", regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)},
	{"uri", regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://[^\s]+$`)},
	{"ipv4", regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)},
	{"ipv6", regexp.MustCompile(`^([0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}$`)},
}

// detectFormat returns the first format matched by every value, or "".
func detectFormat(values []string) string {
	if len(values) == 0 {
		return ""
	}

	for _, d := range formatDetectors {
		all := true
		for _, v := range values {
			if !d.re.MatchString(v) {
				all = false
				break
			}
		}

		if all {
			return d.name
		}
	}

	return ""
}

// patternLibrary holds common structured-value shapes. A pattern is
// reported only when at least minPatternSamples values all match one entry.
var patternLibrary = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{2,4}-\d{2,6}$`),   // ticket ids: AB-1234
	regexp.MustCompile(`^[A-Z]{3}\d{3,8}$`),      // order codes: SKU12345
	regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),    // SSN-shaped
	regexp.MustCompile(`^\+?\d{10,15}$`),         // phone numbers
	regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)+$`), // slugs
	regexp.MustCompile(`^[A-Fa-f0-9]{6,64}$`),    // hex tokens
	regexp.MustCompile(`^v?\d+\.\d+\.\d+$`),      // semantic versions
}

const minPatternSamples = 3

// detectPattern returns the source of the first library pattern matched by
// all values, or "". Requires at least minPatternSamples inputs.
func detectPattern(values []string) string {
	if len(values) < minPatternSamples {
		return ""
	}

	for _, re := range patternLibrary {
		all := true
		for _, v := range values {
			if !re.MatchString(v) {
				all = false
				break
			}
		}

		if all {
			return re.String()
		}
	}

	return ""
}
