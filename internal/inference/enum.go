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

import (
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Confidence grades an enum verdict.
type Confidence string

// Confidence levels, weakest to strongest.
const (
	ConfidenceVeryLow Confidence = "veryLow"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

// Category classifies why a value population is (or is not) an enum.
type Category string

// Enum categories.
const (
	CategoryNotEnum           Category = "notEnum"
	CategoryStandardSet       Category = "standardSet"
	CategoryApplicationEnum   Category = "applicationEnum"
	CategoryNaturalConstraint Category = "naturalConstraint"
)

// maxEnumValues caps the values carried by a positive verdict.
const maxEnumValues = 1000

// defaultReservoirSize bounds the sample analyzed by DetectEnum.
const defaultReservoirSize = 10000

// EnumDecision is the outcome of enum detection for one field.
type EnumDecision struct {
	Confidence       Confidence
	Category         Category
	Reasoning        string
	EnumValues       []string
	ShouldCreateEnum bool
}

// EnumDetector runs the enum decision procedure. The zero value is not
// usable; construct with NewEnumDetector.
type EnumDetector struct {
	rng           *rand.Rand
	reservoirSize int
}

// NewEnumDetector returns a detector drawing reservoir samples from rng.
func NewEnumDetector(rng *rand.Rand) *EnumDetector {
	return &EnumDetector{
		rng:           rng,
		reservoirSize: defaultReservoirSize,
	}
}

// Detect decides whether the value population of the named field should
// become an enum. Given the same inputs, the verdict is stable.
func (d *EnumDetector) Detect(values []string, fieldName string) EnumDecision {
	if len(values) == 0 {
		return EnumDecision{Confidence: ConfidenceVeryLow, Category: CategoryNotEnum, Reasoning: "no values"}
	}

	n := len(values)
	if n > d.reservoirSize {
		values = d.reservoirSample(values)
	}

	m := computeEnumMetrics(values)

	var dec EnumDecision
	switch {
	case n <= 1000:
		dec = decideSmall(m)
	case n <= 100000:
		dec = decideMedium(m)
	default:
		dec = decideLarge(m)
	}

	if dec.ShouldCreateEnum {
		dec.EnumValues = m.distinctByFrequency()
		if len(dec.EnumValues) > maxEnumValues {
			dec.EnumValues = dec.EnumValues[:maxEnumValues]
		}
	}

	return dec
}

// reservoirSample draws a fixed-size uniform sample (algorithm R).
func (d *EnumDetector) reservoirSample(values []string) []string {
	res := make([]string, d.reservoirSize)
	copy(res, values[:d.reservoirSize])

	for i := d.reservoirSize; i < len(values); i++ {
		if j := d.rng.Intn(i + 1); j < d.reservoirSize {
			res[j] = values[i]
		}
	}

	return res
}

// enumMetrics holds the statistics the decision branches consult.
type enumMetrics struct {
	freq map[string]int

	total       int
	uniqueCount int
	uniqueRatio float64

	entropy       float64
	powerLaw      float64
	concentration float64

	semanticCoherence float64

	isStandardSet       bool
	isCodePattern       bool
	isNaturalLanguage   bool
	hasStructuredFormat bool
}

func computeEnumMetrics(values []string) *enumMetrics {
	m := &enumMetrics{
		freq:  map[string]int{},
		total: len(values),
	}

	for _, v := range values {
		m.freq[v]++
	}

	m.uniqueCount = len(m.freq)
	m.uniqueRatio = float64(m.uniqueCount) / float64(m.total)

	counts := make([]int, 0, m.uniqueCount)
	for _, c := range m.freq {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	for _, c := range counts {
		p := float64(c) / float64(m.total)
		m.entropy -= p * math.Log2(p)
	}

	m.powerLaw = powerLawExponent(counts)
	m.concentration = concentrationRatio(counts, m.total)
	m.semanticCoherence, m.isStandardSet = standardSetOverlap(m.freq)
	m.isCodePattern = codePatternShare(m.freq) >= 0.7
	m.isNaturalLanguage = naturalLanguageShare(m.freq) >= 0.5
	m.hasStructuredFormat = structuredFormat(m.freq)

	return m
}

// distinctByFrequency lists distinct values, most frequent first,
// ties broken lexicographically.
func (m *enumMetrics) distinctByFrequency() []string {
	values := make([]string, 0, m.uniqueCount)
	for v := range m.freq {
		values = append(values, v)
	}

	sort.Slice(values, func(i, j int) bool {
		if m.freq[values[i]] != m.freq[values[j]] {
			return m.freq[values[i]] > m.freq[values[j]]
		}
		return values[i] < values[j]
	})

	return values
}

func decideSmall(m *enumMetrics) EnumDecision {
	switch {
	case m.uniqueRatio > 0.8:
		return verdict(false, ConfidenceVeryLow, CategoryNotEnum, "high unique ratio")
	case m.isStandardSet:
		return verdict(true, ConfidenceHigh, CategoryStandardSet, "values overlap a standard set")
	case m.isCodePattern && m.uniqueCount <= 50:
		return verdict(true, ConfidenceHigh, CategoryApplicationEnum, "code-like values with few distincts")
	case m.uniqueCount <= 20 && m.concentration < 0.3:
		return verdict(true, ConfidenceMedium, CategoryApplicationEnum, "few distinct values, concentrated")
	case m.isNaturalLanguage:
		return verdict(false, ConfidenceLow, CategoryNotEnum, "natural-language values")
	case m.uniqueCount <= 30 && m.entropy < 3:
		return verdict(true, ConfidenceLow, CategoryApplicationEnum, "low entropy over few distincts")
	default:
		return verdict(false, ConfidenceVeryLow, CategoryNotEnum, "no enum signal")
	}
}

func decideMedium(m *enumMetrics) EnumDecision {
	switch {
	case m.uniqueRatio > 0.5 || m.uniqueCount > 1000:
		return verdict(false, ConfidenceVeryLow, CategoryNotEnum, "too many distinct values")
	case m.isStandardSet:
		return verdict(true, ConfidenceHigh, CategoryStandardSet, "values overlap a standard set")
	case m.powerLaw > 1.5 && m.uniqueCount <= 100:
		return verdict(true, ConfidenceMedium, CategoryApplicationEnum, "power-law frequency distribution")
	case m.isCodePattern && m.uniqueCount <= 200:
		return verdict(true, ConfidenceMedium, CategoryApplicationEnum, "code-like values")
	case m.entropy < 4 && m.uniqueCount <= 50:
		return verdict(true, ConfidenceMedium, CategoryApplicationEnum, "low entropy over few distincts")
	default:
		return verdict(false, ConfidenceLow, CategoryNotEnum, "no enum signal")
	}
}

func decideLarge(m *enumMetrics) EnumDecision {
	switch {
	case m.uniqueCount > 500:
		return verdict(false, ConfidenceVeryLow, CategoryNotEnum, "too many distinct values")
	case m.isStandardSet && m.semanticCoherence > 0.3:
		return verdict(true, ConfidenceHigh, CategoryStandardSet, "values overlap a standard set")
	case m.powerLaw > 2 && m.uniqueCount <= 50:
		return verdict(true, ConfidenceMedium, CategoryApplicationEnum, "strong power-law distribution")
	case m.hasStructuredFormat && m.uniqueCount <= 20:
		return verdict(true, ConfidenceLow, CategoryNaturalConstraint, "structured format with few distincts")
	default:
		return verdict(false, ConfidenceVeryLow, CategoryNotEnum, "no enum signal")
	}
}

func verdict(create bool, conf Confidence, cat Category, reason string) EnumDecision {
	return EnumDecision{
		ShouldCreateEnum: create,
		Confidence:       conf,
		Category:         cat,
		Reasoning:        reason,
	}
}

// powerLawExponent is |slope| of the log-rank vs log-frequency regression
// over the top 100 counts (descending).
func powerLawExponent(counts []int) float64 {
	n := len(counts)
	if n < 2 {
		return 0
	}
	if n > 100 {
		n = 100
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		x := math.Log(float64(i + 1))
		y := math.Log(float64(counts[i]))
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return math.Abs((fn*sumXY - sumX*sumY) / denom)
}

// concentrationRatio is the fraction of distinct values needed to cover
// 80% of all observations, counts descending.
func concentrationRatio(counts []int, total int) float64 {
	if len(counts) == 0 || total == 0 {
		return 0
	}

	target := float64(total) * 0.8
	var covered float64
	for i, c := range counts {
		covered += float64(c)
		if covered >= target {
			return float64(i+1) / float64(len(counts))
		}
	}

	return 1
}

// standardSets are well-known closed vocabularies matched case-insensitively.
var standardSets = map[string][]string{
	"weekdays": {
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
	},
	"months": {
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
	},
	"httpMethods": {"get", "post", "put", "delete", "patch", "head", "options", "trace", "connect"},
	"httpStatuses": {
		"200", "201", "202", "204", "301", "302", "304",
		"400", "401", "403", "404", "405", "409", "410", "422", "429",
		"500", "501", "502", "503", "504",
	},
	"currencies": {
		"usd", "eur", "gbp", "jpy", "chf", "cad", "aud", "nzd", "cny", "inr",
		"brl", "mxn", "krw", "sek", "nok", "dkk", "pln", "rub", "zar", "sgd",
	},
	"usStates": {
		"al", "ak", "az", "ar", "ca", "co", "ct", "de", "fl", "ga",
		"hi", "id", "il", "in", "ia", "ks", "ky", "la", "me", "md",
		"ma", "mi", "mn", "ms", "mo", "mt", "ne", "nv", "nh", "nj",
		"nm", "ny", "nc", "nd", "oh", "ok", "or", "pa", "ri", "sc",
		"sd", "tn", "tx", "ut", "vt", "va", "wa", "wv", "wi", "wy",
	},
	"countries": {
		"us", "usa", "uk", "gb", "de", "fr", "it", "es", "pt", "nl",
		"be", "ch", "at", "se", "no", "dk", "fi", "pl", "cz", "ie",
		"ca", "mx", "br", "ar", "cl", "au", "nz", "jp", "cn", "kr", "in", "ru", "za",
	},
	"priorities": {"low", "medium", "high", "critical", "urgent", "normal", "minor", "major", "blocker", "trivial"},
	"sizes":      {"xs", "s", "m", "l", "xl", "xxl", "xxxl", "small", "medium", "large", "tiny", "huge"},
	"directions": {"north", "south", "east", "west", "up", "down", "left", "right", "ne", "nw", "se", "sw"},
	"booleans":   {"true", "false", "yes", "no", "y", "n", "on", "off", "0", "1", "enabled", "disabled"},
}

// standardSetOverlap returns the best overlap ratio across the standard
// sets and whether it reaches the 50% membership threshold.
func standardSetOverlap(freq map[string]int) (float64, bool) {
	var best float64

	for _, set := range standardSets {
		members := make(map[string]struct{}, len(set))
		for _, v := range set {
			members[v] = struct{}{}
		}

		var hits int
		for v := range freq {
			if _, ok := members[strings.ToLower(strings.TrimSpace(v))]; ok {
				hits++
			}
		}

		if r := float64(hits) / float64(len(freq)); r > best {
			best = r
		}
	}

	return best, best >= 0.5
}

var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z_]+$`),
	regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`),
	regexp.MustCompile(`^\w+_\w+$`),
	regexp.MustCompile(`^[A-Z][a-z]+(?:[A-Z][a-z]+)*$`),
}

// codePatternShare is the fraction of distinct values matching any code shape.
func codePatternShare(freq map[string]int) float64 {
	if len(freq) == 0 {
		return 0
	}

	var hits int
	for v := range freq {
		for _, re := range codePatterns {
			if re.MatchString(v) {
				hits++
				break
			}
		}
	}

	return float64(hits) / float64(len(freq))
}

// naturalLanguageShare is the fraction of distinct values that look like
// free text: letters plus whitespace with at least one space.
func naturalLanguageShare(freq map[string]int) float64 {
	if len(freq) == 0 {
		return 0
	}

	var hits int
	for v := range freq {
		if !strings.Contains(v, " ") {
			continue
		}

		ok := true
		for _, r := range v {
			if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
				ok = false
				break
			}
		}

		if ok {
			hits++
		}
	}

	return float64(hits) / float64(len(freq))
}

// structuredFormat reports whether mapping letters to A/a and digits to 0
// collapses the population into few shape classes.
func structuredFormat(freq map[string]int) bool {
	if len(freq) == 0 {
		return false
	}

	classes := map[string]struct{}{}
	for v := range freq {
		var sb strings.Builder
		for _, r := range v {
			switch {
			case unicode.IsUpper(r):
				sb.WriteByte('A')
			case unicode.IsLower(r):
				sb.WriteByte('a')
			case unicode.IsDigit(r):
				sb.WriteByte('0')
			default:
				sb.WriteRune(r)
			}
		}
		classes[sb.String()] = struct{}{}
	}

	if len(classes) <= 3 {
		return true
	}

	return float64(len(classes))/float64(len(freq)) < 0.2
}
