package tremolo

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

func buildProcessor(t *testing.T, channels int) node.Processor {
	t.Helper()
	n := New(channels, 5.0, 0.5)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 256})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return proc
}

func TestSilentInputClearsOutputs(t *testing.T) {
	proc := buildProcessor(t, 1)
	in := make([]float32, 8)
	out := make([]float32, 8)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: 8, InSilenceMask: silence.AllSilent(1)}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusClearAllOutputs {
		t.Errorf("status.Kind = %v, want StatusClearAllOutputs", status.Kind)
	}
}

func TestModulatesAConstantInput(t *testing.T) {
	proc := buildProcessor(t, 1)
	frames := 4800
	in := make([]float32, frames)
	for i := range in {
		in[i] = 1.0
	}
	out := make([]float32, frames)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: frames}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}
	min, max := out[0], out[0]
	for _, v := range out {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min < 0.1 {
		t.Errorf("expected visible amplitude modulation over %d frames at 5Hz, got range %f", frames, max-min)
	}
}

func TestPatchUpdatesRateAndDepth(t *testing.T) {
	proc := buildProcessor(t, 1).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "rate_hz", Data: 8.0})
	if proc.rate != 8.0 {
		t.Errorf("rate = %f, want 8.0", proc.rate)
	}
	proc.applyPatch(event.PatchPayload{Path: "depth", Data: 0.9})
	if proc.depth != 0.9 {
		t.Errorf("depth = %f, want 0.9", proc.depth)
	}
}
