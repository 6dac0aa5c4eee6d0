package reverb

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

func buildProcessor(t *testing.T) node.Processor {
	t.Helper()
	n := New(0.5, 0.5, 0.33, 0.7)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 256})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return proc
}

func TestSilentInputClearsOutputs(t *testing.T) {
	proc := buildProcessor(t)
	inL := make([]float32, 8)
	inR := make([]float32, 8)
	outL := make([]float32, 8)
	outR := make([]float32, 8)
	buffers := node.ProcBuffers{Inputs: [][]float32{inL, inR}, Outputs: [][]float32{outL, outR}}

	status := proc.Process(node.ProcInfo{Frames: 8, InSilenceMask: silence.AllSilent(2)}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusClearAllOutputs {
		t.Errorf("status.Kind = %v, want StatusClearAllOutputs", status.Kind)
	}
}

func TestImpulseProducesTailedOutput(t *testing.T) {
	proc := buildProcessor(t)
	frames := 4096
	inL := make([]float32, frames)
	inR := make([]float32, frames)
	inL[0] = 1.0
	inR[0] = 1.0
	outL := make([]float32, frames)
	outR := make([]float32, frames)
	buffers := node.ProcBuffers{Inputs: [][]float32{inL, inR}, Outputs: [][]float32{outL, outR}}

	status := proc.Process(node.ProcInfo{Frames: frames}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}
	tailNonZero := false
	for i := frames - 100; i < frames; i++ {
		if outL[i] != 0 || outR[i] != 0 {
			tailNonZero = true
			break
		}
	}
	if !tailNonZero {
		t.Error("expected a non-zero reverb tail late in the block after an impulse")
	}
}

func TestPatchUpdatesFreeverbParameters(t *testing.T) {
	proc := buildProcessor(t).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "room_size", Data: 0.9})
	proc.applyPatch(event.PatchPayload{Path: "damping", Data: 0.1})
	proc.applyPatch(event.PatchPayload{Path: "wet_level", Data: 0.5})
	proc.applyPatch(event.PatchPayload{Path: "dry_level", Data: 0.5})
}
