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
)

// defaultBinCount is the number of equal-width bins built from a sample.
const defaultBinCount = 10

// maxMergedBins caps the bin count after a histogram merge.
const maxMergedBins = 20

// HistogramBin is one frequency-weighted numeric range.
//
// FreqStart and FreqEnd form a cumulative window in percent: a uniform
// draw u ∈ [0, 100) selects the bin with FreqStart ≤ u < FreqEnd.
type HistogramBin struct {
	RangeStart float64 `json:"rangeStart"`
	RangeEnd   float64 `json:"rangeEnd"`
	Count      int     `json:"count"`
	FreqStart  float64 `json:"freqStart"`
	FreqEnd    float64 `json:"freqEnd"`
}

// Histogram describes the distribution of a numeric field.
//
// Bins are sorted by RangeStart and non-overlapping. All bins are
// half-open [start, end) except the last, which is closed on both ends.
type Histogram struct {
	Bins              []HistogramBin `json:"bins"`
	TotalCount        int            `json:"totalCount"`
	MinValue          float64        `json:"minValue"`
	MaxValue          float64        `json:"maxValue"`
	StandardDeviation float64        `json:"standardDeviation"`
	EntropyScore      float64        `json:"entropyScore"`
	MaxEntropy        float64        `json:"maxEntropy"`
	Complexity        float64        `json:"complexity"`
}

// BuildHistogram builds an equal-width histogram from a non-empty sample.
// Bins that receive no values are omitted.
func BuildHistogram(values []float64) *Histogram {
	if len(values) == 0 {
		return nil
	}

	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		sum += v
	}

	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	counts := make([]int, defaultBinCount)
	width := (maxV - minV) / float64(defaultBinCount)

	for _, v := range values {
		i := defaultBinCount - 1
		if width > 0 {
			i = int((v - minV) / width)
			if i >= defaultBinCount {
				i = defaultBinCount - 1
			}
		}
		counts[i]++
	}

	bins := make([]HistogramBin, 0, defaultBinCount)
	for i, c := range counts {
		if c == 0 {
			continue
		}

		bins = append(bins, HistogramBin{
			RangeStart: round4(minV + float64(i)*width),
			RangeEnd:   round4(minV + float64(i+1)*width),
			Count:      c,
		})
	}

	h := &Histogram{
		Bins:              bins,
		TotalCount:        len(values),
		MinValue:          round4(minV),
		MaxValue:          round4(maxV),
		StandardDeviation: round4(math.Sqrt(variance)),
	}

	h.recomputeFrequencies()
	h.recomputeScores()

	return h
}

// recomputeFrequencies rebuilds the cumulative freqStart/freqEnd windows.
// The first window starts at 0 and the last ends at 100 within rounding.
func (h *Histogram) recomputeFrequencies() {
	if h.TotalCount == 0 {
		return
	}

	var cum float64
	for i := range h.Bins {
		h.Bins[i].FreqStart = round2(cum)
		cum += float64(h.Bins[i].Count) / float64(h.TotalCount) * 100
		h.Bins[i].FreqEnd = round2(cum)
	}

	if n := len(h.Bins); n > 0 {
		h.Bins[n-1].FreqEnd = 100
	}
}

// recomputeScores rebuilds entropy, max entropy, and complexity.
func (h *Histogram) recomputeScores() {
	b := len(h.Bins)
	if b == 0 || h.TotalCount == 0 {
		h.EntropyScore, h.MaxEntropy, h.Complexity = 0, 0, 0
		return
	}

	counts := make([]int, b)
	for i, bin := range h.Bins {
		counts[i] = bin.Count
	}

	entropy := shannonEntropy(counts)
	maxEntropy := math.Log2(float64(b))

	h.EntropyScore = round4(entropy)
	h.MaxEntropy = round4(maxEntropy)
	h.Complexity = round4(h.complexity(entropy))
}

// complexity is a weighted mix of entropy, bin density, spread, and uniformity.
func (h *Histogram) complexity(entropy float64) float64 {
	b := float64(len(h.Bins))
	n := float64(h.TotalCount)

	c := 0.4 * entropy

	c += 0.2 * math.Min(b/math.Min(n, 100), 1)

	if spread := h.MaxValue - h.MinValue; spread > 0 {
		c += 0.2 * math.Min(h.StandardDeviation/spread, 1)
	}

	expected := n / b
	if expected > 0 {
		var variance float64
		for _, bin := range h.Bins {
			d := float64(bin.Count)/expected - 1
			variance += d * d
		}
		variance /= b

		c += 0.2 * math.Max(0, 1-math.Min(variance, 1))
	}

	return clamp01(c)
}

// PickBin returns the bin whose cumulative frequency window contains u,
// where u ∈ [0, 100). Returns nil for an empty histogram.
func (h *Histogram) PickBin(u float64) *HistogramBin {
	for i := range h.Bins {
		if u >= h.Bins[i].FreqStart && u < h.Bins[i].FreqEnd {
			return &h.Bins[i]
		}
	}

	if n := len(h.Bins); n > 0 {
		return &h.Bins[n-1]
	}

	return nil
}

// DeepCopy returns an independent copy.
func (h *Histogram) DeepCopy() *Histogram {
	if h == nil {
		return nil
	}

	res := *h
	res.Bins = append([]HistogramBin(nil), h.Bins...)

	return &res
}

// MergeHistograms combines two histograms into one describing the union sample.
// Overlapping bins are merged by summing counts; the result is capped at
// maxMergedBins by joining adjacent bins.
func MergeHistograms(a, b *Histogram) *Histogram {
	switch {
	case a == nil:
		return b.DeepCopy()
	case b == nil:
		return a.DeepCopy()
	}

	bins := make([]HistogramBin, 0, len(a.Bins)+len(b.Bins))
	bins = append(bins, a.Bins...)
	bins = append(bins, b.Bins...)

	sort.Slice(bins, func(i, j int) bool { return bins[i].RangeStart < bins[j].RangeStart })

	merged := make([]HistogramBin, 0, len(bins))
	for _, bin := range bins {
		if n := len(merged); n > 0 && bin.RangeStart < merged[n-1].RangeEnd {
			merged[n-1].RangeEnd = math.Max(merged[n-1].RangeEnd, bin.RangeEnd)
			merged[n-1].Count += bin.Count
			continue
		}

		merged = append(merged, bin)
	}

	for len(merged) > maxMergedBins {
		// join the pair of adjacent bins with the smallest combined count
		best, bestCount := 0, math.MaxInt
		for i := 0; i+1 < len(merged); i++ {
			if c := merged[i].Count + merged[i+1].Count; c < bestCount {
				best, bestCount = i, c
			}
		}

		merged[best].RangeEnd = merged[best+1].RangeEnd
		merged[best].Count += merged[best+1].Count
		merged = append(merged[:best+1], merged[best+2:]...)
	}

	res := &Histogram{
		Bins:       merged,
		TotalCount: a.TotalCount + b.TotalCount,
		MinValue:   math.Min(a.MinValue, b.MinValue),
		MaxValue:   math.Max(a.MaxValue, b.MaxValue),

		// approximation: the per-value sample is gone after training
		StandardDeviation: round4(math.Max(a.StandardDeviation, b.StandardDeviation)),
	}

	res.recomputeFrequencies()
	res.recomputeScores()

	return res
}
