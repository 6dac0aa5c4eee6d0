package noise

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

func TestProcessFillsEveryChannelWithNonZeroSamples(t *testing.T) {
	n := New(2, 1.0)
	proc, err := n.Factory()(node.StreamInfo{})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}

	outL := make([]float32, 32)
	outR := make([]float32, 32)
	buffers := node.ProcBuffers{Outputs: [][]float32{outL, outR}}

	status := proc.Process(node.ProcInfo{Frames: 32}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}

	var anyNonZeroL, anyNonZeroR bool
	for i := range outL {
		if outL[i] != 0 {
			anyNonZeroL = true
		}
		if outR[i] != 0 {
			anyNonZeroR = true
		}
		if outL[i] < -1.01 || outL[i] > 1.01 {
			t.Errorf("outL[%d] = %f, out of expected [-1,1] range", i, outL[i])
		}
	}
	if !anyNonZeroL || !anyNonZeroR {
		t.Error("expected noise generator to produce non-zero samples")
	}
}

func TestDifferentChannelsAreIndependentGenerators(t *testing.T) {
	n := New(2, 1.0)
	proc, _ := n.Factory()(node.StreamInfo{})

	outL := make([]float32, 32)
	outR := make([]float32, 32)
	buffers := node.ProcBuffers{Outputs: [][]float32{outL, outR}}
	proc.Process(node.ProcInfo{Frames: 32}, buffers, node.NodeEvents{})

	identical := true
	for i := range outL {
		if outL[i] != outR[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("expected independently seeded channels to diverge")
	}
}
