// Package reverb provides a stereo algorithmic reverb node wrapping
// pkg/dsp/reverb.Freeverb, with patchable room size, damping, and
// wet/dry levels, wired the same way pkg/nodes/gain wires its smoothed
// gain parameter.
package reverb

import (
	dspreverb "github.com/firewheel-audio/firewheel-go/pkg/dsp/reverb"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

const (
	MinRoomSize = 0.0
	MaxRoomSize = 1.0
	MinDamping  = 0.0
	MaxDamping  = 1.0
	MinLevel    = 0.0
	MaxLevel    = 1.0
)

// Params is a reverb node's parameter snapshot: "room_size", "damping",
// "wet_level", "dry_level".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to Freeverb's own medium
// room defaults.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("room_size", "Room Size", MinRoomSize, MaxRoomSize, 0.5))
	r.Add(param.NewParameter("damping", "Damping", MinDamping, MaxDamping, 0.5))
	r.Add(param.NewParameter("wet_level", "Wet Level", MinLevel, MaxLevel, 0.33))
	r.Add(param.NewParameter("dry_level", "Dry Level", MinLevel, MaxLevel, 0.7))
	return &Params{Registry: r}
}

func (p *Params) RoomSize() float64     { return p.Get("room_size").GetPlainValue() }
func (p *Params) SetRoomSize(v float64) { p.Get("room_size").SetPlainValue(v) }
func (p *Params) Damping() float64      { return p.Get("damping").GetPlainValue() }
func (p *Params) SetDamping(v float64)  { p.Get("damping").SetPlainValue(v) }
func (p *Params) WetLevel() float64     { return p.Get("wet_level").GetPlainValue() }
func (p *Params) SetWetLevel(v float64) { p.Get("wet_level").SetPlainValue(v) }
func (p *Params) DryLevel() float64     { return p.Get("dry_level").GetPlainValue() }
func (p *Params) SetDryLevel(v float64) { p.Get("dry_level").SetPlainValue(v) }

// Node is a stereo Freeverb instance: exactly two inputs, two outputs.
type Node struct {
	Params *Params
}

// New builds a reverb node at the given starting parameters.
func New(roomSize, damping, wetLevel, dryLevel float64) *Node {
	p := NewParams()
	p.SetRoomSize(roomSize)
	p.SetDamping(damping)
	p.SetWetLevel(wetLevel)
	p.SetDryLevel(dryLevel)
	return &Node{Params: p}
}

// Config returns the node.Config this node declares at insertion time.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  2,
			NumOutputs: 2,
		},
		UsesEvents: true,
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	roomSize := n.Params.RoomSize()
	damping := n.Params.Damping()
	wetLevel := n.Params.WetLevel()
	dryLevel := n.Params.DryLevel()
	return func(info node.StreamInfo) (node.Processor, error) {
		fv := dspreverb.NewFreeverb(float64(info.SampleRate))
		fv.SetRoomSize(roomSize)
		fv.SetDamping(damping)
		fv.SetWetLevel(wetLevel)
		fv.SetDryLevel(dryLevel)
		return &processor{fv: fv}, nil
	}
}

type processor struct {
	fv *dspreverb.Freeverb
}

// Process runs the stereo pair through the shared Freeverb instance.
// Parameter changes are applied once per block: Freeverb recomputes its
// internal comb/allpass coefficients on every Set call, so applying them
// sample-by-sample would be needless extra work for an effect with no
// audible zipper risk at block-rate granularity.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.applyPatch(e.Payload)
	}
	for _, d := range events.Scheduled {
		p.applyPatch(d.Event.Payload)
	}

	if len(buffers.Inputs) < 2 || len(buffers.Outputs) < 2 {
		return node.ClearAllOutputs()
	}
	if info.InSilenceMask == silence.AllSilent(len(buffers.Inputs)) {
		return node.ClearAllOutputs()
	}

	inL := buffers.Inputs[0]
	inR := buffers.Inputs[1]
	outL := buffers.Outputs[0]
	outR := buffers.Outputs[1]
	for i := 0; i < info.Frames; i++ {
		outL[i], outR[i] = p.fv.ProcessStereo(inL[i], inR[i])
	}

	return node.OutputsModified(silence.NoneSilent)
}

func (p *processor) applyPatch(payload any) {
	pp, ok := payload.(event.PatchPayload)
	if !ok {
		return
	}
	v, ok := pp.Data.(float64)
	if !ok {
		return
	}
	switch pp.Path {
	case "room_size":
		p.fv.SetRoomSize(v)
	case "damping":
		p.fv.SetDamping(v)
	case "wet_level":
		p.fv.SetWetLevel(v)
	case "dry_level":
		p.fv.SetDryLevel(v)
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
