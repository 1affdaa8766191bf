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
	"sort"
	"strings"

	"github.com/DataFlood/DataFlood/internal/model"
)

// Entropy thresholds splitting the string synthesis strategies:
// below lowEntropyLimit known values are replayed, below midEntropyLimit
// pattern-class strings are realized, above that strings are stitched
// from n-grams.
const (
	lowEntropyLimit = 2.0
	midEntropyLimit = 4.0
)

// suffixProbability is the chance of overwriting the tail with a common suffix.
const suffixProbability = 0.3

func (g *Generator) generateString(m *model.Model) string {
	if m.Format != "" {
		return g.generateFormat(m.Format)
	}

	if m.Pattern != "" {
		if s, err := g.generateFromRegex(m.Pattern); err == nil {
			return s
		}
	}

	if m.StringModel != nil {
		return g.generateFromStringModel(m.StringModel)
	}

	return g.generateRandomString(boundsOf(m))
}

func (g *Generator) generateFromStringModel(sm *model.StringModel) string {
	e := sm.EffectiveEntropy()
	if g.entropyOverride != nil {
		e = *g.entropyOverride
	}

	switch {
	case e < lowEntropyLimit && len(sm.ValueFrequency) > 0:
		return g.weightedValue(sm.ValueFrequency)

	case e < midEntropyLimit && len(sm.Patterns) > 0:
		return g.realizePattern(g.weightedValue(sm.Patterns), sm)

	default:
		return g.stitchString(sm)
	}
}

// weightedValue draws a key with probability proportional to its count.
// Keys are visited in sorted order so equal seeds give equal draws.
func (g *Generator) weightedValue(freq map[string]int) string {
	keys := make([]string, 0, len(freq))
	var total int
	for k, c := range freq {
		keys = append(keys, k)
		total += c
	}
	sort.Strings(keys)

	target := g.rng.Intn(total)
	for _, k := range keys {
		target -= freq[k]
		if target < 0 {
			return k
		}
	}

	return keys[len(keys)-1]
}

// realizePattern expands a pattern-class string (for example "U{2}pd{3}")
// into concrete characters drawn from the model's character pools.
func (g *Generator) realizePattern(pattern string, sm *model.StringModel) string {
	var sb strings.Builder

	for i := 0; i < len(pattern); i++ {
		class := pattern[i]
		n := 1

		if i+1 < len(pattern) && pattern[i+1] == '{' {
			end := strings.IndexByte(pattern[i+1:], '}')
			if end > 0 {
				n = 0
				for _, c := range pattern[i+2 : i+1+end] {
					if c < '0' || c > '9' {
						n = 1
						break
					}
					n = n*10 + int(c-'0')
				}
				i += end + 1
			}
		}

		for j := 0; j < n; j++ {
			sb.WriteByte(g.classCharacter(class, sm))
		}
	}

	return sb.String()
}

// classCharacter picks a character of the given class, preferring the
// model's own character set over the class's ASCII range.
func (g *Generator) classCharacter(class byte, sm *model.StringModel) byte {
	var pool []byte
	for _, c := range sm.UniqueCharacters {
		if len(c) != 1 {
			continue
		}

		b := c[0]
		if classOf(b) == class {
			pool = append(pool, b)
		}
	}

	if len(pool) > 0 {
		return pool[g.rng.Intn(len(pool))]
	}

	switch class {
	case 'd':
		return byte('0' + g.rng.Intn(10))
	case 'U':
		return byte('A' + g.rng.Intn(26))
	case 's':
		return ' '
	case 'p':
		return []byte("-_.,:;!?")[g.rng.Intn(8)]
	default:
		return byte('a' + g.rng.Intn(26))
	}
}

func classOf(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return 'd'
	case b >= 'A' && b <= 'Z':
		return 'U'
	case b >= 'a' && b <= 'z':
		return 'L'
	case b == ' ' || b == '\t' || b == '\n' || b == '\r':
		return 's'
	default:
		return 'p'
	}
}

// stitchString builds a string of model-typical length by chaining n-grams:
// each candidate must start with the current tail, falling back to single
// character draws when the chain dies out.
func (g *Generator) stitchString(sm *model.StringModel) string {
	minLen, maxLen := sm.MinLength, sm.MaxLength
	if maxLen < minLen {
		maxLen = minLen
	}
	if maxLen == 0 {
		return ""
	}

	length := minLen
	if maxLen > minLen {
		length += g.rng.Intn(maxLen - minLen + 1)
	}
	if length == 0 {
		return ""
	}

	var sb strings.Builder

	if len(sm.CommonPrefixes) > 0 {
		sb.WriteString(g.weightedValue(sm.CommonPrefixes))
	} else {
		sb.WriteByte(g.modelCharacter(sm))
	}

	for sb.Len() < length {
		s := sb.String()
		tail := s
		if len(tail) > 2 {
			tail = tail[len(tail)-2:]
		}

		if next := g.nextNGram(sm, tail); next != "" {
			sb.WriteString(next[len(tail):])
			continue
		}

		sb.WriteByte(g.modelCharacter(sm))
	}

	out := []byte(sb.String()[:length])

	if len(sm.CommonSuffixes) > 0 && g.rng.Float64() < suffixProbability {
		suffix := g.weightedValue(sm.CommonSuffixes)
		if len(suffix) < len(out) {
			copy(out[len(out)-len(suffix):], suffix)
		}
	}

	return string(out)
}

// nextNGram draws among the n-grams extending the current tail, weighted
// by frequency; "" when none apply.
func (g *Generator) nextNGram(sm *model.StringModel, tail string) string {
	candidates := map[string]int{}
	for ngram, c := range sm.NGrams {
		if len(ngram) > len(tail) && strings.HasPrefix(ngram, tail) {
			candidates[ngram] = c
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	return g.weightedValue(candidates)
}

// modelCharacter draws one character: probability-weighted, then uniform
// over the model's character set, then lowercase ASCII.
func (g *Generator) modelCharacter(sm *model.StringModel) byte {
	if len(sm.CharacterProbability) > 0 {
		keys := make([]string, 0, len(sm.CharacterProbability))
		for k := range sm.CharacterProbability {
			if len(k) == 1 {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)

		if len(keys) > 0 {
			u := g.rng.Float64()
			var cum float64
			for _, k := range keys {
				cum += sm.CharacterProbability[k]
				if u < cum {
					return k[0]
				}
			}

			return keys[len(keys)-1][0]
		}
	}

	if len(sm.UniqueCharacters) > 0 {
		if c := sm.UniqueCharacters[g.rng.Intn(len(sm.UniqueCharacters))]; len(c) == 1 {
			return c[0]
		}
	}

	return byte('a' + g.rng.Intn(26))
}

// generateRandomString is the fallback for a string node with no model.
func (g *Generator) generateRandomString(minLen, maxLen int) string {
	if maxLen < minLen {
		maxLen = minLen
	}

	length := minLen
	if maxLen > minLen {
		length += g.rng.Intn(maxLen - minLen + 1)
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = byte('a' + g.rng.Intn(26))
	}

	return string(b)
}

func boundsOf(m *model.Model) (int, int) {
	minLen, maxLen := 5, 12
	if m.MinLength != nil {
		minLen = *m.MinLength
	}
	if m.MaxLength != nil {
		maxLen = *m.MaxLength
	}

	return minLen, maxLen
}
