package envelope

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

func buildProcessor(t *testing.T, channels int) node.Processor {
	t.Helper()
	n := New(channels, 0.001, 0.01, 0.8, 0.05)
	proc, err := n.Factory()(node.StreamInfo{SampleRate: 48000, MaxBlockFrames: 256})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return proc
}

func TestIdleEnvelopeClearsOutputs(t *testing.T) {
	proc := buildProcessor(t, 1)
	in := []float32{1, 1, 1, 1}
	out := make([]float32, 4)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	status := proc.Process(node.ProcInfo{Frames: 4}, buffers, node.NodeEvents{})
	if status.Kind != node.StatusClearAllOutputs {
		t.Errorf("status.Kind = %v, want StatusClearAllOutputs", status.Kind)
	}
}

func TestTriggerProducesRisingOutput(t *testing.T) {
	proc := buildProcessor(t, 1)
	in := make([]float32, 64)
	for i := range in {
		in[i] = 1.0
	}
	out := make([]float32, 64)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	trigger := node.NodeEvents{Immediate: []event.Event{
		{Payload: event.CustomPayload{Data: TriggerCommand{}}},
	}}
	status := proc.Process(node.ProcInfo{Frames: 64}, buffers, trigger)
	if status.Kind != node.StatusOutputsModified {
		t.Fatalf("status.Kind = %v, want StatusOutputsModified", status.Kind)
	}
	if out[32] <= 0 {
		t.Error("expected a non-zero sample mid-buffer after trigger")
	}
}

func TestReleaseEventuallyReturnsToIdle(t *testing.T) {
	proc := buildProcessor(t, 1)
	in := make([]float32, 256)
	for i := range in {
		in[i] = 1.0
	}
	out := make([]float32, 256)
	buffers := node.ProcBuffers{Inputs: [][]float32{in}, Outputs: [][]float32{out}}

	proc.Process(node.ProcInfo{Frames: 256}, buffers, node.NodeEvents{Immediate: []event.Event{
		{Payload: event.CustomPayload{Data: TriggerCommand{}}},
	}})
	proc.Process(node.ProcInfo{Frames: 256}, buffers, node.NodeEvents{Immediate: []event.Event{
		{Payload: event.CustomPayload{Data: ReleaseCommand{}}},
	}})

	var status node.ProcessStatus
	for i := 0; i < 100; i++ {
		status = proc.Process(node.ProcInfo{Frames: 256}, buffers, node.NodeEvents{})
		if status.Kind == node.StatusClearAllOutputs {
			break
		}
	}
	if status.Kind != node.StatusClearAllOutputs {
		t.Error("expected the envelope to return to idle within 100 release blocks")
	}
}

func TestPatchUpdatesEnvelopeTimes(t *testing.T) {
	proc := buildProcessor(t, 1).(*processor)
	proc.applyPatch(event.PatchPayload{Path: "attack", Data: 0.5})
	proc.applyPatch(event.PatchPayload{Path: "release", Data: 1.0})
}
