package distortion

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

func buildProcessor(t *testing.T, channels int) node.Processor {
	t.Helper()
	n := New(channels, CurveSoftClip, 4.0, 1.0)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 64})
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

func TestHighDriveSoftClipsTowardUnity(t *testing.T) {
	proc := buildProcessor(t, 1)
	in := []float32{10, 10, 10, 10}
	out := make([]float32, 4)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: 4}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}
	for i, v := range out {
		if v <= 0 || v >= 1.01 {
			t.Errorf("out[%d] = %f, want a soft-clipped value close to but not exceeding 1.0", i, v)
		}
	}
}

func TestPatchRetargetsDriveAndUpdatesMix(t *testing.T) {
	proc := buildProcessor(t, 1).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "drive", Data: 12.0})
	if !proc.driveSmoother.IsSmoothing() {
		t.Error("expected drive smoother to start moving toward the new target")
	}
	proc.applyPatch(event.PatchPayload{Path: "mix", Data: 0.5})
	if proc.mix != 0.5 {
		t.Errorf("mix = %f, want 0.5", proc.mix)
	}
}
