package oscillator

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

func buildProcessor(t *testing.T, wave Waveform, channels int) node.Processor {
	t.Helper()
	n := New(channels, wave, 440.0)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 256})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return proc
}

func TestSineProducesNonSilentOutput(t *testing.T) {
	proc := buildProcessor(t, Sine, 1)
	out := make([]float32, 64)
	buffers := node.ProcBuffers{Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: 64}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}
	nonZero := false
	for _, v := range out {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("expected a non-silent sine output")
	}
}

func TestBandLimitedSawProducesBoundedOutput(t *testing.T) {
	proc := buildProcessor(t, BandLimitedSaw, 1)
	out := make([]float32, 256)
	buffers := node.ProcBuffers{Outputs: [][]float32{out}}

	proc.Process(node.ProcInfo{Frames: 256}, buffers, node.NodeEvents{})
	for i, v := range out {
		if v > 2.0 || v < -2.0 {
			t.Errorf("out[%d] = %f, want a bounded sawtooth sample", i, v)
		}
	}
}

func TestNoChannelsClearsOutputs(t *testing.T) {
	proc := buildProcessor(t, Sine, 0)
	status := proc.Process(node.ProcInfo{Frames: 8}, node.ProcBuffers{}, node.NodeEvents{})
	if status.Kind != node.StatusClearAllOutputs {
		t.Errorf("status.Kind = %v, want StatusClearAllOutputs", status.Kind)
	}
}

func TestPatchRetargetsFrequencySmoother(t *testing.T) {
	proc := buildProcessor(t, Sine, 1).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "frequency", Data: 880.0})
	if !proc.freqSmoother.IsSmoothing() {
		t.Error("expected frequency smoother to start moving toward the new target")
	}
}
