package ctrlchan

import (
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
	"github.com/firewheel-audio/firewheel-go/pkg/graph/compiler"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/transport"
)

// CtoP is a message sent from the controller to the processor.
type CtoP interface{ isCtoP() }

// NewScheduleMsg hands the processor a freshly compiled schedule, the
// processor instances for any newly constructed nodes, and the buffer
// backing storage the schedule's buffer indices refer to -- pre-sized to
// Schedule.NumBuffers by the controller so the processor never allocates
// while swapping schedules.
type NewScheduleMsg struct {
	Schedule   *compiler.Schedule
	Processors map[graph.NodeId]node.Processor
	Buffers    [][]float32
	GraphIn    graph.NodeId
	GraphOut   graph.NodeId
}

func (NewScheduleMsg) isCtoP() {}

// EventGroupMsg carries a batch of immediate and scheduled events for
// upcoming blocks.
type EventGroupMsg struct {
	Immediate []event.Event
	Scheduled []event.Event
}

func (EventGroupMsg) isCtoP() {}

// HardClipOutputsMsg toggles the output hard-clip stage.
type HardClipOutputsMsg struct {
	Enabled bool
}

func (HardClipOutputsMsg) isCtoP() {}

// StopMsg requests the processor flush its return traffic and report
// DropProcessor on its next process_interleaved call.
type StopMsg struct{}

func (StopMsg) isCtoP() {}

// SetTransportStateMsg installs a new transport state (play/pause,
// playhead, loop range, stop-at), applied at the processor's current
// clock position on receipt.
type SetTransportStateMsg struct {
	State transport.State
}

func (SetTransportStateMsg) isCtoP() {}

// PtoC is a message sent from the processor to the controller.
type PtoC interface{ isPtoC() }

// ReturnScheduleMsg hands back a superseded schedule for disposal
// off-thread.
type ReturnScheduleMsg struct {
	Schedule *compiler.Schedule
}

func (ReturnScheduleMsg) isPtoC() {}

// ReturnEventGroupMsg hands back a consumed event batch so its buffers
// can be recycled by the controller.
type ReturnEventGroupMsg struct {
	Immediate []event.Event
	Scheduled []event.Event
}

func (ReturnEventGroupMsg) isPtoC() {}

// ProcessorDroppedMsg reports that the processor has torn down in
// response to StopMsg, returning the node processors and (if still held)
// the active schedule for disposal.
type ProcessorDroppedMsg struct {
	Nodes    []graph.NodeId
	Schedule *compiler.Schedule
}

func (ProcessorDroppedMsg) isPtoC() {}

// Channel bundles the two directional rings exchanged between controller
// and processor.
type Channel struct {
	ToProcessor  *Ring[CtoP]
	ToController *Ring[PtoC]
}

// NewChannel builds a channel with both directions sized to capacity.
func NewChannel(capacity int) *Channel {
	return &Channel{
		ToProcessor:  NewRing[CtoP](capacity),
		ToController: NewRing[PtoC](capacity),
	}
}
