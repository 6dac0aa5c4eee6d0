// Package pan provides a smoothed stereo panner node: a mono-to-stereo
// pan control following pkg/dsp/pan's constant-power
// law, wired into the graph the same way pkg/nodes/gain wires its
// smoothed gain parameter.
package pan

import (
	"github.com/firewheel-audio/firewheel-go/pkg/dsp/pan"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

// MinPan is hard left.
const MinPan = -1.0

// MaxPan is hard right.
const MaxPan = 1.0

// Params is a pan node's parameter snapshot, registered under a single
// "pan" path. It satisfies node.Diffable via an embedded Registry.
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot centered at 0 (equal left/right).
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("pan", "Pan", MinPan, MaxPan, 0))
	return &Params{Registry: r}
}

// Pan returns the current pan position, -1 (left) to 1 (right).
func (p *Params) Pan() float64 { return p.Get("pan").GetPlainValue() }

// SetPan updates the pan position.
func (p *Params) SetPan(v float64) { p.Get("pan").SetPlainValue(v) }

// Node is a smoothed stereo panner taking a mono input and producing
// stereo output, following pan.Law's constant-power curve.
type Node struct {
	Params *Params
	Law    pan.Law
}

// New builds a pan node at the given starting position, -1 to 1.
func New(initial float64) *Node {
	p := NewParams()
	p.SetPan(initial)
	return &Node{Params: p, Law: pan.ConstantPower}
}

// Config returns the node.Config this node declares at insertion time:
// one mono input, two stereo outputs. A stereo source wanting pan
// control should route through two mono pan nodes, one per channel, or
// a future stereo-balance variant; this node models the common
// mono-source-to-stereo-bus case.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  1,
			NumOutputs: 2,
		},
		UsesEvents: true,
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	initial := n.Params.Pan()
	law := n.Law
	return func(info node.StreamInfo) (node.Processor, error) {
		smoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		smoother.Reset(initial)
		smoother.RateForTime(float64(info.SampleRate), 0.01)
		return &processor{
			smoother: smoother,
			law:      law,
			monoScratch: make([]float32, info.MaxBlockFrames),
		}, nil
	}
}

type processor struct {
	smoother    *param.Smoother
	law         pan.Law
	monoScratch []float32
}

// Process pans the mono input to the stereo output, one sub-block per
// smoothed pan value change so a moving pan control doesn't click.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.applyPatch(e.Payload)
	}
	for _, d := range events.Scheduled {
		p.applyPatch(d.Event.Payload)
	}

	if len(buffers.Inputs) == 0 || len(buffers.Outputs) < 2 {
		return node.ClearAllOutputs()
	}
	if info.InSilenceMask == silence.AllSilent(len(buffers.Inputs)) {
		p.smoother.Reset(p.smoother.Next())
		return node.ClearAllOutputs()
	}

	in := buffers.Inputs[0]
	left := buffers.Outputs[0]
	right := buffers.Outputs[1]

	if !p.smoother.IsSmoothing() {
		pan.Process(in[:info.Frames], float32(p.smoother.Next()), p.law, left[:info.Frames], right[:info.Frames])
		return node.OutputsModified(silence.NoneSilent)
	}

	for i := 0; i < info.Frames; i++ {
		l, r := pan.MonoToStereo(float32(p.smoother.Next()), p.law)
		left[i] = in[i] * l
		right[i] = in[i] * r
	}
	return node.OutputsModified(silence.NoneSilent)
}

func (p *processor) applyPatch(payload any) {
	pp, ok := payload.(event.PatchPayload)
	if !ok || pp.Path != "pan" {
		return
	}
	v, ok := pp.Data.(float64)
	if !ok {
		return
	}
	p.smoother.SetTarget(v)
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
