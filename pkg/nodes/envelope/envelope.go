// Package envelope provides a gated ADSR VCA node: a per-channel
// pkg/dsp/envelope.ADSR multiplying its input by an attack-decay-sustain-
// release contour, triggered and released by custom events the same way
// pkg/nodes/sampler gates voices with PlayCommand/StopAllCommand.
package envelope

import (
	dspenvelope "github.com/firewheel-audio/firewheel-go/pkg/dsp/envelope"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

const (
	MinSeconds = 0.001
	MaxSeconds = 10.0
	MinSustain = 0.0
	MaxSustain = 1.0
)

// TriggerCommand starts (or restarts) the envelope's attack stage. It
// travels as a event.CustomPayload's Data.
type TriggerCommand struct{}

// ReleaseCommand starts the envelope's release stage. It travels as a
// event.CustomPayload's Data.
type ReleaseCommand struct{}

// Params is an envelope node's parameter snapshot: "attack", "decay",
// "sustain", "release".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to a fast pluck-style
// contour.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("attack", "Attack", MinSeconds, MaxSeconds, 0.01))
	r.Add(param.NewParameter("decay", "Decay", MinSeconds, MaxSeconds, 0.1))
	r.Add(param.NewParameter("sustain", "Sustain", MinSustain, MaxSustain, 0.7))
	r.Add(param.NewParameter("release", "Release", MinSeconds, MaxSeconds, 0.3))
	return &Params{Registry: r}
}

func (p *Params) Attack() float64      { return p.Get("attack").GetPlainValue() }
func (p *Params) SetAttack(s float64)  { p.Get("attack").SetPlainValue(s) }
func (p *Params) Decay() float64       { return p.Get("decay").GetPlainValue() }
func (p *Params) SetDecay(s float64)   { p.Get("decay").SetPlainValue(s) }
func (p *Params) Sustain() float64     { return p.Get("sustain").GetPlainValue() }
func (p *Params) SetSustain(s float64) { p.Get("sustain").SetPlainValue(s) }
func (p *Params) Release() float64     { return p.Get("release").GetPlainValue() }
func (p *Params) SetRelease(s float64) { p.Get("release").SetPlainValue(s) }

// Node is a gated ADSR VCA applied uniformly across Channels inputs.
type Node struct {
	Params   *Params
	Channels int
}

// New builds an envelope node for channels channels.
func New(channels int, attack, decay, sustain, release float64) *Node {
	p := NewParams()
	p.SetAttack(attack)
	p.SetDecay(decay)
	p.SetSustain(sustain)
	p.SetRelease(release)
	return &Node{Params: p, Channels: channels}
}

// Config returns the node.Config this node declares at insertion time.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  n.Channels,
			NumOutputs: n.Channels,
		},
		UsesEvents: true,
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	attack := n.Params.Attack()
	decay := n.Params.Decay()
	sustain := n.Params.Sustain()
	release := n.Params.Release()
	channels := n.Channels
	return func(info node.StreamInfo) (node.Processor, error) {
		env := dspenvelope.New(float64(info.SampleRate))
		env.SetADSR(attack, decay, sustain, release)
		return &processor{
			env:        env,
			channels:   channels,
			envScratch: make([]float32, info.MaxBlockFrames),
		}, nil
	}
}

type processor struct {
	env        *dspenvelope.ADSR
	channels   int
	envScratch []float32
}

// Process multiplies every input channel by the shared envelope,
// advancing it once per sample and reusing that value across all
// channels so they stay phase-aligned.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.handleEvent(e)
	}
	for _, d := range events.Scheduled {
		p.handleEvent(d.Event)
	}

	n := p.channels
	if len(buffers.Inputs) < n {
		n = len(buffers.Inputs)
	}
	if len(buffers.Outputs) < n {
		n = len(buffers.Outputs)
	}
	if n == 0 {
		return node.ClearAllOutputs()
	}
	if !p.env.IsActive() {
		return node.ClearAllOutputs()
	}

	gains := p.envScratch[:info.Frames]
	p.env.Process(gains)

	for ch := 0; ch < n; ch++ {
		in := buffers.Inputs[ch]
		out := buffers.Outputs[ch]
		for i := 0; i < info.Frames; i++ {
			out[i] = in[i] * gains[i]
		}
	}

	return node.OutputsModified(silence.NoneSilent)
}

func (p *processor) handleEvent(e event.Event) {
	switch payload := e.Payload.(type) {
	case event.CustomPayload:
		switch payload.Data.(type) {
		case TriggerCommand:
			p.env.Trigger()
		case ReleaseCommand:
			p.env.Release()
		}
	case event.PatchPayload:
		p.applyPatch(payload)
	case TriggerCommand:
		p.env.Trigger()
	case ReleaseCommand:
		p.env.Release()
	}
}

func (p *processor) applyPatch(pp event.PatchPayload) {
	v, ok := pp.Data.(float64)
	if !ok {
		return
	}
	switch pp.Path {
	case "attack":
		p.env.SetAttack(v)
	case "decay":
		p.env.SetDecay(v)
	case "sustain":
		p.env.SetSustain(v)
	case "release":
		p.env.SetRelease(v)
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
