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

package model

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	maxPatterns     = 10
	maxNGrams       = 20
	maxAffixes      = 10
	maxSampleValues = 20
	maxAffixLen     = 3
)

// StringModel describes the value population of a string field.
type StringModel struct {
	MinLength     int     `json:"minLength"`
	MaxLength     int     `json:"maxLength"`
	AverageLength float64 `json:"averageLength"`

	UniqueCharacters     []string           `json:"uniqueCharacters,omitempty"`
	CharacterFrequency   map[string]int     `json:"characterFrequency,omitempty"`
	CharacterProbability map[string]float64 `json:"characterProbability,omitempty"`

	Patterns       map[string]int `json:"patterns,omitempty"`
	NGrams         map[string]int `json:"nGrams,omitempty"`
	CommonPrefixes map[string]int `json:"commonPrefixes,omitempty"`
	CommonSuffixes map[string]int `json:"commonSuffixes,omitempty"`

	ValueFrequency map[string]int `json:"valueFrequency,omitempty"`
	SampleValues   []string       `json:"sampleValues,omitempty"`
	UniqueValues   []string       `json:"uniqueValues,omitempty"`

	TotalSamples     int `json:"totalSamples"`
	UniqueValueCount int `json:"uniqueValueCount"`

	EntropyScore    float64  `json:"entropyScore"`
	MaxEntropy      float64  `json:"maxEntropy"`
	Complexity      float64  `json:"complexity"`
	EntropyOverride *float64 `json:"entropyOverride,omitempty"`
}

// BuildStringModel builds a string model from a non-empty sample.
func BuildStringModel(values []string) *StringModel {
	if len(values) == 0 {
		return nil
	}

	sm := &StringModel{
		MinLength:            len(values[0]),
		CharacterFrequency:   map[string]int{},
		CharacterProbability: map[string]float64{},
		Patterns:             map[string]int{},
		NGrams:               map[string]int{},
		CommonPrefixes:       map[string]int{},
		CommonSuffixes:       map[string]int{},
		ValueFrequency:       map[string]int{},
		TotalSamples:         len(values),
	}

	var lengthSum, charTotal int
	prefixes, suffixes := map[string]int{}, map[string]int{}

	for _, v := range values {
		l := len(v)
		lengthSum += l
		if l < sm.MinLength {
			sm.MinLength = l
		}
		if l > sm.MaxLength {
			sm.MaxLength = l
		}

		sm.ValueFrequency[v]++
		sm.Patterns[PatternClass(v)]++

		for _, r := range v {
			sm.CharacterFrequency[string(r)]++
			charTotal++
		}

		for n := 2; n <= 3; n++ {
			for i := 0; i+n <= len(v); i++ {
				sm.NGrams[v[i:i+n]]++
			}
		}

		for n := 1; n <= maxAffixLen && n <= len(v); n++ {
			prefixes[v[:n]]++
			suffixes[v[len(v)-n:]]++
		}
	}

	sm.AverageLength = round4(float64(lengthSum) / float64(len(values)))

	for c, cnt := range sm.CharacterFrequency {
		sm.CharacterProbability[c] = round4(float64(cnt) / float64(charTotal))
	}

	sm.UniqueCharacters = sortedKeys(sm.CharacterFrequency)
	sm.UniqueValueCount = len(sm.ValueFrequency)
	sm.UniqueValues = sortedKeys(sm.ValueFrequency)

	sm.Patterns = topEntries(sm.Patterns, maxPatterns, 1)
	sm.NGrams = topEntries(sm.NGrams, maxNGrams, 2)
	sm.CommonPrefixes = topEntries(prefixes, maxAffixes, 2)
	sm.CommonSuffixes = topEntries(suffixes, maxAffixes, 2)

	sm.SampleValues = topValues(sm.ValueFrequency, maxSampleValues)

	sm.recomputeScores()

	return sm
}

// recomputeScores rebuilds entropy, max entropy, and complexity.
func (sm *StringModel) recomputeScores() {
	counts := make([]int, 0, len(sm.ValueFrequency))
	for _, c := range sm.ValueFrequency {
		counts = append(counts, c)
	}

	entropy := shannonEntropy(counts)

	maxEntropy := entropy
	for _, v := range sm.SampleValues {
		if h := charEntropy(v); h > maxEntropy {
			maxEntropy = h
		}
	}
	if h := math.Log2(float64(len(sm.UniqueCharacters))); len(sm.UniqueCharacters) > 1 && h > maxEntropy {
		maxEntropy = h
	}

	sm.EntropyScore = round4(entropy)
	sm.MaxEntropy = round4(maxEntropy)
	sm.Complexity = round4(sm.complexity(entropy, maxEntropy))
}

func (sm *StringModel) complexity(entropy, maxEntropy float64) float64 {
	var normalizedEntropy float64
	if maxEntropy > 0 {
		normalizedEntropy = clamp01(entropy / maxEntropy)
	}

	var lengthVariability float64
	if sm.AverageLength > 0 {
		lengthVariability = clamp01(float64(sm.MaxLength-sm.MinLength) / sm.AverageLength)
	}

	charDiversity := clamp01(float64(len(sm.UniqueCharacters)) / 26)
	patternDiversity := clamp01(float64(len(sm.Patterns)) / float64(maxPatterns))

	var uniquenessRatio float64
	if sm.TotalSamples > 0 {
		uniquenessRatio = clamp01(float64(sm.UniqueValueCount) / float64(sm.TotalSamples))
	}

	return clamp01(0.3*normalizedEntropy +
		0.2*lengthVariability +
		0.2*charDiversity +
		0.15*patternDiversity +
		0.15*uniquenessRatio)
}

// EffectiveEntropy returns the override when set, the measured score otherwise.
func (sm *StringModel) EffectiveEntropy() float64 {
	if sm.EntropyOverride != nil {
		return *sm.EntropyOverride
	}

	return sm.EntropyScore
}

// DeepCopy returns an independent copy.
func (sm *StringModel) DeepCopy() *StringModel {
	if sm == nil {
		return nil
	}

	res := *sm
	res.UniqueCharacters = append([]string(nil), sm.UniqueCharacters...)
	res.CharacterFrequency = copyMap(sm.CharacterFrequency)
	res.CharacterProbability = copyMap(sm.CharacterProbability)
	res.Patterns = copyMap(sm.Patterns)
	res.NGrams = copyMap(sm.NGrams)
	res.CommonPrefixes = copyMap(sm.CommonPrefixes)
	res.CommonSuffixes = copyMap(sm.CommonSuffixes)
	res.ValueFrequency = copyMap(sm.ValueFrequency)
	res.SampleValues = append([]string(nil), sm.SampleValues...)
	res.UniqueValues = append([]string(nil), sm.UniqueValues...)
	res.EntropyOverride = copyPtr(sm.EntropyOverride)

	return &res
}

// MergeStringModels combines two string models into one describing the union
// sample. Frequency maps are summed; entropy is the arithmetic mean of the
// two scores, complexity the maximum, then both are re-rounded.
func MergeStringModels(a, b *StringModel) *StringModel {
	switch {
	case a == nil:
		return b.DeepCopy()
	case b == nil:
		return a.DeepCopy()
	}

	res := &StringModel{
		MinLength:    min(a.MinLength, b.MinLength),
		MaxLength:    max(a.MaxLength, b.MaxLength),
		TotalSamples: a.TotalSamples + b.TotalSamples,

		CharacterFrequency: sumMaps(a.CharacterFrequency, b.CharacterFrequency),
		ValueFrequency:     sumMaps(a.ValueFrequency, b.ValueFrequency),
		NGrams:             sumMaps(a.NGrams, b.NGrams),
		Patterns:           sumMaps(a.Patterns, b.Patterns),
		CommonPrefixes:     sumMaps(a.CommonPrefixes, b.CommonPrefixes),
		CommonSuffixes:     sumMaps(a.CommonSuffixes, b.CommonSuffixes),

		EntropyOverride: copyPtr(a.EntropyOverride),
	}

	if res.EntropyOverride == nil {
		res.EntropyOverride = copyPtr(b.EntropyOverride)
	}

	if res.TotalSamples > 0 {
		wa := float64(a.TotalSamples) / float64(res.TotalSamples)
		res.AverageLength = round4(a.AverageLength*wa + b.AverageLength*(1-wa))
	}

	var charTotal int
	for _, c := range res.CharacterFrequency {
		charTotal += c
	}
	res.CharacterProbability = make(map[string]float64, len(res.CharacterFrequency))
	for c, cnt := range res.CharacterFrequency {
		res.CharacterProbability[c] = round4(float64(cnt) / float64(charTotal))
	}

	res.UniqueCharacters = sortedKeys(res.CharacterFrequency)
	res.UniqueValueCount = len(res.ValueFrequency)
	res.UniqueValues = sortedKeys(res.ValueFrequency)

	seen := map[string]struct{}{}
	for _, v := range append(append([]string(nil), a.SampleValues...), b.SampleValues...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}

		res.SampleValues = append(res.SampleValues, v)
		if len(res.SampleValues) == maxSampleValues {
			break
		}
	}

	res.EntropyScore = round4((a.EntropyScore + b.EntropyScore) / 2)
	res.MaxEntropy = round4(math.Max(a.MaxEntropy, b.MaxEntropy))
	res.Complexity = round4(math.Max(a.Complexity, b.Complexity))

	return res
}

// PatternClass encodes a string over the alphabet {d, U, L, s, p}:
// digit, upper, lower, whitespace, other. Runs longer than one
// character are compressed as c{n}.
func PatternClass(s string) string {
	var sb strings.Builder
	var last byte
	var run int

	flush := func() {
		if run == 0 {
			return
		}

		sb.WriteByte(last)
		if run > 1 {
			sb.WriteByte('{')
			sb.WriteString(strconv.Itoa(run))
			sb.WriteByte('}')
		}
	}

	for _, r := range s {
		var c byte
		switch {
		case unicode.IsDigit(r):
			c = 'd'
		case unicode.IsUpper(r):
			c = 'U'
		case unicode.IsLower(r):
			c = 'L'
		case unicode.IsSpace(r):
			c = 's'
		default:
			c = 'p'
		}

		if c == last {
			run++
			continue
		}

		flush()
		last, run = c, 1
	}

	flush()

	return sb.String()
}

// charEntropy is the Shannon entropy over a value's character frequencies.
func charEntropy(s string) float64 {
	freq := map[rune]int{}
	for _, r := range s {
		freq[r]++
	}

	counts := make([]int, 0, len(freq))
	for _, c := range freq {
		counts = append(counts, c)
	}

	return shannonEntropy(counts)
}

// topEntries keeps the n highest-count entries with count ≥ minCount.
// Ties break by key for determinism.
func topEntries(m map[string]int, n, minCount int) map[string]int {
	type entry struct {
		key   string
		count int
	}

	entries := make([]entry, 0, len(m))
	for k, c := range m {
		if c >= minCount {
			entries = append(entries, entry{k, c})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})

	if len(entries) > n {
		entries = entries[:n]
	}

	res := make(map[string]int, len(entries))
	for _, e := range entries {
		res[e.key] = e.count
	}

	return res
}

// topValues returns the n highest-frequency keys, ties broken by key.
func topValues(m map[string]int, n int) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool { return m[keys[i]] > m[keys[j]] })

	if len(keys) > n {
		keys = keys[:n]
	}

	return keys
}

func sumMaps(a, b map[string]int) map[string]int {
	res := make(map[string]int, len(a)+len(b))
	for k, v := range a {
		res[k] += v
	}
	for k, v := range b {
		res[k] += v
	}

	return res
}

func copyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}

	res := make(map[string]V, len(m))
	for k, v := range m {
		res[k] = v
	}

	return res
}
