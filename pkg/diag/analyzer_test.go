package diag

import (
	"math"
	"strings"
	"testing"
)

func TestBufferAnalyzer(t *testing.T) {
	t.Run("BasicAnalysis", func(t *testing.T) {
		analyzer := NewBufferAnalyzer()

		buffer := make([]float32, 1000)
		for i := range buffer {
			buffer[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/48000))
		}

		result := analyzer.Analyze(buffer)

		if result.Peak < 0.49 || result.Peak > 0.51 {
			t.Errorf("Peak incorrect: %f", result.Peak)
		}
		expectedRMS := 0.5 / math.Sqrt(2)
		if math.Abs(float64(result.RMS)-expectedRMS) > 0.01 {
			t.Errorf("RMS incorrect: %f, expected ~%f", result.RMS, expectedRMS)
		}
		if result.ZeroCrossings == 0 {
			t.Error("no zero crossings detected")
		}
		if result.Silent {
			t.Error("should not be silent")
		}
	})

	t.Run("Clipping", func(t *testing.T) {
		analyzer := NewBufferAnalyzer()
		buffer := []float32{0.5, 0.99, 1.0, -0.99, -1.0, 0.5}
		result := analyzer.Analyze(buffer)

		if !result.Clipping {
			t.Error("should detect clipping")
		}
		if result.ClippedSamples != 4 {
			t.Errorf("wrong clipped sample count: %d", result.ClippedSamples)
		}
	})

	t.Run("DCOffset", func(t *testing.T) {
		analyzer := NewBufferAnalyzer()
		buffer := make([]float32, 100)
		for i := range buffer {
			buffer[i] = 0.3
		}

		result := analyzer.Analyze(buffer)
		if math.Abs(float64(result.DC)-0.3) > 0.001 {
			t.Errorf("DC offset incorrect: %f", result.DC)
		}
	})

	t.Run("Silence", func(t *testing.T) {
		analyzer := NewBufferAnalyzer()
		buffer := make([]float32, 100)

		result := analyzer.Analyze(buffer)
		if !result.Silent {
			t.Error("should detect silence")
		}
		if result.Peak != 0 {
			t.Error("peak should be 0")
		}
	})

	t.Run("NaN", func(t *testing.T) {
		analyzer := NewBufferAnalyzer()
		buffer := []float32{1.0, float32(math.NaN()), 0.5, float32(math.NaN())}
		result := analyzer.Analyze(buffer)

		if !result.HasNaN {
			t.Error("should detect NaN")
		}
		if result.NaNCount != 2 {
			t.Errorf("wrong NaN count: %d", result.NaNCount)
		}
	})
}

func TestCompareBuffers(t *testing.T) {
	t.Run("IdenticalBuffers", func(t *testing.T) {
		a := []float32{1.0, 2.0, 3.0}
		b := []float32{1.0, 2.0, 3.0}

		result := CompareBuffers(a, b, 0.001)
		if !strings.Contains(result, "identical") {
			t.Error("should be identical")
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		a := []float32{1.0, 2.0}
		b := []float32{1.0, 2.0, 3.0}

		result := CompareBuffers(a, b, 0.001)
		if !strings.Contains(result, "length mismatch") {
			t.Error("should detect length mismatch")
		}
	})

	t.Run("WithinTolerance", func(t *testing.T) {
		a := []float32{1.0, 2.0, 3.0}
		b := []float32{1.0001, 2.0001, 3.0001}

		result := CompareBuffers(a, b, 0.01)
		if !strings.Contains(result, "identical") {
			t.Error("should be identical within tolerance")
		}
	})
}

func TestCheckBuffer(t *testing.T) {
	t.Run("CleanBuffer", func(t *testing.T) {
		buffer := make([]float32, 100)
		for i := range buffer {
			buffer[i] = 0.1 * float32(math.Sin(float64(i)))
		}
		issues := CheckBuffer(buffer, "test")
		if len(issues) != 0 {
			t.Errorf("expected no issues, got %v", issues)
		}
	})

	t.Run("ClippedBuffer", func(t *testing.T) {
		buffer := []float32{1.0, 1.0, 1.0}
		issues := CheckBuffer(buffer, "clipped")
		if len(issues) == 0 {
			t.Error("expected clipping issue")
		}
	})
}

func TestDumpBuffer(t *testing.T) {
	buffer := []float32{0.1, 0.2, 0.3}
	out := DumpBuffer(buffer, 2)
	if !strings.Contains(out, "more samples") {
		t.Error("should note truncated samples")
	}
	if strings.Contains(DumpBuffer(nil, 0), "more samples") {
		t.Error("empty buffer should not mention truncation")
	}
}
