// Package event implements the per-block event pipeline (C6): the
// immediate event buffer, the scheduled event arena, and the per-node
// sub-chunk delivery the processor resolves once per inner block.
package event

import (
	"errors"

	"github.com/firewheel-audio/firewheel-go/pkg/clock"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
)

// ErrQueueFull is returned by Push when the queue is at capacity and
// configured with OverflowDrop.
var ErrQueueFull = errors.New("event: queue is full")

// InstantKind tags which timeline an EventInstant is expressed in. This
// stands in for source-language tagged-union dispatch.
type InstantKind int

const (
	KindSamples InstantKind = iota
	KindSeconds
	KindMusical
)

// EventInstant is a point in time expressed in one of three timelines.
// Exactly one of the Samples/Seconds/Musical fields is meaningful,
// selected by Kind.
type EventInstant struct {
	Kind    InstantKind
	Samples clock.InstantSamples
	Seconds clock.InstantSeconds
	Musical clock.InstantMusical
}

// AtSamples builds a sample-time EventInstant.
func AtSamples(s clock.InstantSamples) EventInstant { return EventInstant{Kind: KindSamples, Samples: s} }

// AtSeconds builds a second-time EventInstant.
func AtSeconds(s clock.InstantSeconds) EventInstant { return EventInstant{Kind: KindSeconds, Seconds: s} }

// AtMusical builds a musical-time EventInstant.
func AtMusical(m clock.InstantMusical) EventInstant { return EventInstant{Kind: KindMusical, Musical: m} }

// PatchPayload is a minimal record of a parameter change, produced by
// diffing the controller's last-sent baseline against the desired state.
type PatchPayload struct {
	Path string
	Data any
}

// CustomPayload carries a node-defined event payload outside the
// parameter-patch protocol.
type CustomPayload struct {
	Data any
}

// Event is a single addressed event: a target node, an optional delivery
// time (nil means "as soon as delivered"), and a payload that is either
// a PatchPayload or a CustomPayload.
type Event struct {
	Node    graph.NodeId
	Time    *EventInstant
	Payload any
}

// OverflowMode selects what happens when a queue is pushed to past
// capacity. The core never blocks the audio callback; these are the
// only three responses.
type OverflowMode int

const (
	OverflowAllocate OverflowMode = iota
	OverflowPanic
	OverflowDrop
)

// Resolver converts an EventInstant to an absolute sample instant given
// the currently active transport (or the static clock rate, for
// Samples/Seconds instants). Implementations live in the engine package,
// which owns both the transport runner and the sample clock.
type Resolver func(EventInstant) clock.InstantSamples
