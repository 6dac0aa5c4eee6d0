package gain

import (
	"math"
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

func buildProcessor(t *testing.T, initialDb float64) node.Processor {
	t.Helper()
	n := New(initialDb)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 128})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return proc
}

func TestUnityGainReportsBypassOnceSettled(t *testing.T) {
	proc := buildProcessor(t, 0)
	in := []float32{1, 2, 3, 4}
	out := make([]float32, 4)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: 4}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusBypass {
		t.Errorf("status.Kind = %v, want StatusBypass at unity gain", status.Kind)
	}
}

func TestMinGainAttenuatesOutputHeavily(t *testing.T) {
	proc := buildProcessor(t, MinDb)
	in := []float32{1, 1, 1, 1}
	out := make([]float32, 4)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: 4}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified at min dB", status.Kind)
	}
	if out[3] > 0.01 {
		t.Errorf("out[3] = %f, want a heavily attenuated sample near 0.001", out[3])
	}
}

func TestGainPatchRetargetsSmootherTowardNewValue(t *testing.T) {
	proc := buildProcessor(t, 0)
	in := make([]float32, 64)
	for i := range in {
		in[i] = 1
	}
	out := make([]float32, 64)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	patch := event.Event{Payload: event.PatchPayload{Path: "gain_db", Data: MinDb}}
	events := node.NodeEvents{Immediate: []event.Event{patch}}

	// First block carries the patch and starts smoothing toward near-silence.
	proc.Process(node.ProcInfo{Frames: 64}, buffers, events)
	// Run enough further blocks for the exponential smoother to settle.
	for i := 0; i < 2000; i++ {
		proc.Process(node.ProcInfo{Frames: 64}, buffers, node.NodeEvents{})
	}

	proc.Process(node.ProcInfo{Frames: 64}, buffers, node.NodeEvents{})
	if out[63] > 0.01 {
		t.Errorf("out[63] = %f, want a heavily attenuated sample after patching toward min dB", out[63])
	}
}

func TestNewParamsDefaultsToUnityGain(t *testing.T) {
	p := NewParams()
	if math.Abs(p.GainDb()) > 1e-9 {
		t.Errorf("GainDb() = %f, want 0", p.GainDb())
	}
}
