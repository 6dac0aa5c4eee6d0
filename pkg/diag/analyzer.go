// Package diag provides control-side diagnostic tools for inspecting
// rendered audio and profiling the processor's time budget: a buffer
// analyzer (clipping, DC offset, silence, NaN detection) and a section
// profiler, both meant to be driven from tests, an offline render, or a
// driver's debug build rather than from inside Process itself.
package diag

import (
	"fmt"
	"math"
	"strings"
)

// BufferAnalyzer inspects rendered sample buffers for the failure modes
// that matter in an audio graph: clipping, DC bias, unintended silence,
// and NaN/Inf contamination from a runaway node.
type BufferAnalyzer struct {
	detectClipping    bool
	detectDC          bool
	detectSilence     bool
	detectNaN         bool
	clippingThreshold float32
	dcThreshold       float32
	silenceThreshold  float32
}

// NewBufferAnalyzer creates an analyzer with default thresholds.
func NewBufferAnalyzer() *BufferAnalyzer {
	return &BufferAnalyzer{
		detectClipping:    true,
		detectDC:          true,
		detectSilence:     true,
		detectNaN:         true,
		clippingThreshold: 0.99,
		dcThreshold:       0.01,
		silenceThreshold:  0.0001,
	}
}

// AnalysisResult is the outcome of analyzing one buffer.
type AnalysisResult struct {
	Peak           float32
	RMS            float32
	DC             float32
	Clipping       bool
	ClippedSamples int
	Silent         bool
	HasNaN         bool
	NaNCount       int
	ZeroCrossings  int
}

// Analyze computes peak, RMS, DC offset, clipping, silence, and NaN
// counts for buffer in a single pass.
func (a *BufferAnalyzer) Analyze(buffer []float32) AnalysisResult {
	result := AnalysisResult{}
	if len(buffer) == 0 {
		return result
	}

	var sum, sumSquares, dcSum float64
	var lastSample float32

	for i, sample := range buffer {
		if a.detectNaN && math.IsNaN(float64(sample)) {
			result.HasNaN = true
			result.NaNCount++
			continue
		}

		absSample := sample
		if absSample < 0 {
			absSample = -absSample
		}

		if absSample > result.Peak {
			result.Peak = absSample
		}

		if a.detectClipping && absSample >= a.clippingThreshold {
			result.Clipping = true
			result.ClippedSamples++
		}

		sum += float64(sample)
		sumSquares += float64(sample * sample)
		dcSum += float64(absSample)

		if i > 0 && ((lastSample < 0 && sample >= 0) || (lastSample >= 0 && sample < 0)) {
			result.ZeroCrossings++
		}
		lastSample = sample
	}

	result.RMS = float32(math.Sqrt(sumSquares / float64(len(buffer))))
	result.DC = float32(sum / float64(len(buffer)))

	if a.detectSilence && result.RMS < a.silenceThreshold {
		result.Silent = true
	}

	return result
}

// CompareBuffers reports how two equal-length buffers differ beyond
// tolerance, useful for comparing an expected render against a graph's
// actual output in a test or offline render.
func CompareBuffers(a, b []float32, tolerance float32) string {
	if len(a) != len(b) {
		return fmt.Sprintf("buffer length mismatch: %d vs %d", len(a), len(b))
	}

	var maxDiff float32
	var maxDiffIndex int
	var totalDiff float64
	var diffCount int

	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			diffCount++
			totalDiff += float64(diff)
			if diff > maxDiff {
				maxDiff = diff
				maxDiffIndex = i
			}
		}
	}

	if diffCount == 0 {
		return "buffers are identical within tolerance"
	}

	avgDiff := totalDiff / float64(diffCount)
	return fmt.Sprintf("buffer differences:\n"+
		"  samples different: %d / %d (%.1f%%)\n"+
		"  max difference: %.6f at sample %d\n"+
		"  average difference: %.6f\n"+
		"  tolerance: %.6f",
		diffCount, len(a), float64(diffCount)/float64(len(a))*100,
		maxDiff, maxDiffIndex, avgDiff, tolerance)
}

// CheckBuffer runs the default analyzer over buffer and returns a list
// of human-readable issues (empty if none).
func CheckBuffer(buffer []float32, name string) []string {
	var issues []string

	analyzer := NewBufferAnalyzer()
	result := analyzer.Analyze(buffer)

	if result.HasNaN {
		issues = append(issues, fmt.Sprintf("%s: contains %d NaN values", name, result.NaNCount))
	}
	if result.Clipping {
		issues = append(issues, fmt.Sprintf("%s: clipping detected (%d samples)", name, result.ClippedSamples))
	}
	if math.Abs(float64(result.DC)) > float64(analyzer.dcThreshold) {
		issues = append(issues, fmt.Sprintf("%s: DC offset detected (%.3f)", name, result.DC))
	}
	if result.Peak > 1.0 {
		issues = append(issues, fmt.Sprintf("%s: peak exceeds 1.0 (%.3f)", name, result.Peak))
	}

	return issues
}

// DumpBuffer renders a textual table of the first maxSamples of buffer,
// one row per sample with a small bar gauge, for inspecting a render by
// eye without a DAW attached.
func DumpBuffer(buffer []float32, maxSamples int) string {
	if len(buffer) == 0 {
		return "empty buffer"
	}
	if maxSamples <= 0 || maxSamples > len(buffer) {
		maxSamples = len(buffer)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "buffer dump (%d samples, showing first %d):\n", len(buffer), maxSamples)
	sb.WriteString("index | value      | hex        | bar\n")
	sb.WriteString("------|------------|------------|--------------------\n")

	const barWidth = 20
	for i := 0; i < maxSamples; i++ {
		sample := buffer[i]
		normalized := sample
		if normalized > 1.0 {
			normalized = 1.0
		} else if normalized < -1.0 {
			normalized = -1.0
		}

		barPos := int((normalized + 1.0) * float32(barWidth) / 2.0)
		bar := strings.Repeat(" ", barWidth)
		if barPos >= 0 && barPos < barWidth {
			bar = bar[:barPos] + "|" + bar[barPos+1:]
		}

		fmt.Fprintf(&sb, "%5d | %+.6f | 0x%08X | %s\n", i, sample, math.Float32bits(sample), bar)
	}
	if maxSamples < len(buffer) {
		fmt.Fprintf(&sb, "... %d more samples ...\n", len(buffer)-maxSamples)
	}

	return sb.String()
}
