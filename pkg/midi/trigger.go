package midi

import (
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
	"github.com/firewheel-audio/firewheel-go/pkg/nodes/sampler"
)

// NoteVelocityToGain maps a 7-bit MIDI velocity to a linear gain in
// [0, 1] using the common quadratic velocity curve.
func NoteVelocityToGain(velocity uint8) float32 {
	v := float32(velocity) / 127.0
	return v * v
}

// QueueSampler translates e into an event targeted at a sampler node and
// queues it through queueFor, the same signature as
// (*engine.Engine).QueueEventFor. A NoteOnEvent with nonzero velocity
// triggers resource at the velocity-mapped gain; any other event type is
// not meaningful to a one-shot sampler voice and is ignored. The caller
// chooses which SampleResource a given note plays; this package has no
// note-to-resource mapping of its own.
func QueueSampler(queueFor func(graph.NodeId, event.Event), node graph.NodeId, e Event, resource *sampler.SampleResource) {
	on, ok := e.(NoteOnEvent)
	if !ok || on.Velocity == 0 {
		return
	}
	queueFor(node, event.Event{
		Node: node,
		Payload: event.CustomPayload{
			Data: sampler.PlayCommand{
				Resource: resource,
				Gain:     NoteVelocityToGain(on.Velocity),
			},
		},
	})
}

// QueueSamplerStopAll queues a StopAllCommand at node, for a MIDI "all
// notes off" / "all sound off" control change.
func QueueSamplerStopAll(queueFor func(graph.NodeId, event.Event), node graph.NodeId) {
	queueFor(node, event.Event{
		Node:    node,
		Payload: event.CustomPayload{Data: sampler.StopAllCommand{}},
	})
}
