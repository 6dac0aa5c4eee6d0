package delay

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

func buildProcessor(t *testing.T, channels int) node.Processor {
	t.Helper()
	n := New(channels, 2.0, 300, 0.3, 0.35)
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

func TestEchoAppearsAfterDelayTime(t *testing.T) {
	n := New(1, 2.0, 10, 0.0, 1.0)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 4096})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}

	frames := 4096
	in := make([]float32, frames)
	in[0] = 1.0
	out := make([]float32, frames)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: frames}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}

	delaySamples := int(10 * 48000 / 1000.0)
	found := false
	for i := delaySamples - 4; i < delaySamples+4 && i < frames; i++ {
		if out[i] > 0.01 {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected an echo near sample %d, found none in that window", delaySamples)
	}
}

func TestPatchRetargetsTimeAndMixSmoothers(t *testing.T) {
	proc := buildProcessor(t, 1).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "time_ms", Data: 500.0})
	if !proc.timeSmoother.IsSmoothing() {
		t.Error("expected time smoother to start moving toward the new target")
	}
	proc.applyPatch(event.PatchPayload{Path: "mix", Data: 0.9})
	if !proc.mixSmoother.IsSmoothing() {
		t.Error("expected mix smoother to start moving toward the new target")
	}
}

func TestPatchUpdatesFeedbackDirectly(t *testing.T) {
	proc := buildProcessor(t, 1).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "feedback", Data: 0.8})
	if proc.feedback != 0.8 {
		t.Errorf("feedback = %f, want 0.8", proc.feedback)
	}
}
