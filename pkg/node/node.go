// Package node defines the contract every processing node in the graph
// satisfies (C9): construction-time channel config, the realtime
// process() call, the off-thread stream lifecycle hooks, and the
// parameter patch/diff protocol.
package node

import (
	"github.com/firewheel-audio/firewheel-go/pkg/bufferpool"
	"github.com/firewheel-audio/firewheel-go/pkg/clock"
	"github.com/firewheel-audio/firewheel-go/pkg/dsp/declick"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
	"github.com/firewheel-audio/firewheel-go/pkg/transport"
)

// ChannelConfig is a node's declared port shape, fixed at insertion.
type ChannelConfig struct {
	NumInputs  int
	NumOutputs int
}

// Config is what a node declares once, at graph insertion time.
type Config struct {
	DebugName     string
	ChannelConfig ChannelConfig
	UsesEvents    bool
}

// StreamStatus is a bitset of driver-reported stream health flags, passed
// through to ProcInfo. No processor condition is ever promoted to an
// error; these are purely informational.
type StreamStatus uint8

const (
	StatusInputOverflow StreamStatus = 1 << iota
	StatusOutputUnderflow
)

// TransportInfo is the tempo information resolved for the current inner
// block, or nil when no transport is active.
type TransportInfo struct {
	Transport         transport.MusicalTransport
	StartClockSamples clock.InstantSamples
	BPM               float64
	DeltaBPMPerFrame  float64
}

// ProcInfo is the read-only block context handed to a node's Process call.
type ProcInfo struct {
	Frames         int
	InSilenceMask  silence.Mask
	OutSilenceMask silence.Mask
	SampleRate     clock.SampleRate
	ClockSamples   clock.InstantSamples
	Transport      *TransportInfo
	StreamStatus   StreamStatus
	DroppedFrames  uint32
	Declick        *declick.Table
}

// ProcBuffers is the set of buffer slices a node reads from and writes
// to during one Process call, plus shared scratch space for working
// storage it doesn't want to allocate itself.
type ProcBuffers struct {
	Inputs  [][]float32
	Outputs [][]float32
	Scratch [bufferpool.NumScratchBuffers][]float32
}

// NodeEvents is the view of this block's events addressed to one node:
// immediate events (attached only to the first sub-chunk) and scheduled
// deliveries for the current sub-chunk boundary.
type NodeEvents struct {
	Immediate []event.Event
	Scheduled []event.NodeDelivery
}

// ProcessStatusKind tags the three ways a node may report the outcome of
// a Process call.
type ProcessStatusKind int

const (
	// StatusClearAllOutputs means the node wrote nothing; the engine
	// should fill every output with silence.
	StatusClearAllOutputs ProcessStatusKind = iota
	// StatusBypass means the node wrote nothing; the engine should copy
	// inputs to same-index outputs and zero any excess output channels.
	StatusBypass
	// StatusOutputsModified means the node wrote every output channel up
	// to Frames itself; SilenceMask reports which output channels are
	// known to be all-zero.
	StatusOutputsModified
)

// ProcessStatus is the per-call outcome a node's Process method returns.
type ProcessStatus struct {
	Kind        ProcessStatusKind
	SilenceMask silence.Mask
}

// ClearAllOutputs is a convenience constructor.
func ClearAllOutputs() ProcessStatus { return ProcessStatus{Kind: StatusClearAllOutputs} }

// Bypass is a convenience constructor.
func Bypass() ProcessStatus { return ProcessStatus{Kind: StatusBypass} }

// OutputsModified is a convenience constructor.
func OutputsModified(mask silence.Mask) ProcessStatus {
	return ProcessStatus{Kind: StatusOutputsModified, SilenceMask: mask}
}

// StreamInfo describes the audio stream a node's processor must adapt to.
// Mirrors the core boundary's stream info struct.
type StreamInfo struct {
	SampleRate          uint32
	SampleRateRecip     float64
	MaxBlockFrames      uint32
	NumStreamInChannels int
	NumStreamOutChannels int
	DeclickFrames       uint32
	InputDeviceName     *string
	OutputDeviceName    *string
}

// Processor is the realtime-facing half of a node: the part that lives in
// the processor's arena and is invoked once per schedule entry.
//
// Process must not block, allocate, or perform I/O. new_stream/StreamStopped
// run off the realtime thread and may allocate.
type Processor interface {
	Process(info ProcInfo, buffers ProcBuffers, events NodeEvents) ProcessStatus
	NewStream(info StreamInfo)
	StreamStopped()
}

// Diffable is satisfied by a node's parameter snapshot type: the
// controller diffs the last-sent baseline against the desired state to
// produce patches, and the processor applies patches it receives back
// onto its own copy of the same snapshot type.
type Diffable interface {
	Diff(baseline Diffable) []event.PatchPayload
	ApplyPatch(p event.PatchPayload) error
}

// Factory constructs a node's Processor given the stream it will run
// under. Construction failure is reported through the controller's
// update() call (see the Compile error taxonomy), not thrown across the
// audio thread boundary.
type Factory func(StreamInfo) (Processor, error)
