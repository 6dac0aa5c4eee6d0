package mix

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

func TestProcessSumsTwoBusesPerChannel(t *testing.T) {
	n := New(2, 2)
	proc, err := n.Factory()(node.StreamInfo{})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}

	busAL := []float32{1, 1, 1, 1}
	busAR := []float32{2, 2, 2, 2}
	busBL := []float32{3, 3, 3, 3}
	busBR := []float32{4, 4, 4, 4}
	outL := make([]float32, 4)
	outR := make([]float32, 4)

	buffers := node.ProcBuffers{
		Inputs:  [][]float32{busAL, busAR, busBL, busBR},
		Outputs: [][]float32{outL, outR},
	}

	status := proc.Process(node.ProcInfo{Frames: 4}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}
	for i := 0; i < 4; i++ {
		if outL[i] != 4 {
			t.Errorf("outL[%d] = %f, want 4", i, outL[i])
		}
		if outR[i] != 6 {
			t.Errorf("outR[%d] = %f, want 6", i, outR[i])
		}
	}
}

func TestProcessReportsSilentChannelWhenAllContributorsSilent(t *testing.T) {
	n := New(2, 1)
	proc, _ := n.Factory()(node.StreamInfo{})

	busA := make([]float32, 4)
	busB := make([]float32, 4)
	out := make([]float32, 4)
	buffers := node.ProcBuffers{Inputs: [][]float32{busA, busB}, Outputs: [][]float32{out}}

	mask := silence.AllSilent(2)
	status := proc.Process(node.ProcInfo{Frames: 4, InSilenceMask: mask}, buffers, node.NodeEvents{})
	if !status.SilenceMask.IsSilent(0) {
		t.Error("expected channel 0 to be reported silent")
	}
}
