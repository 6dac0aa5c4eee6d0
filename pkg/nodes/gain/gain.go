// Package gain provides a single-parameter smoothed gain node: the
// simplest useful effect in the graph, and the model for how a node
// wires pkg/param's registry into the node.Diffable patch protocol.
package gain

import (
	dspgain "github.com/firewheel-audio/firewheel-go/pkg/dsp/gain"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

// MinDb is the quietest gain this node's parameter can express before it
// is treated as fully muted.
const MinDb = -60.0

// MaxDb is the loudest gain this node's parameter can express.
const MaxDb = 12.0

// Params is a gain node's parameter snapshot, registered under a single
// "gain_db" path. It satisfies node.Diffable via an embedded Registry.
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot with its gain defaulted to 0 dB
// (unity).
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("gain_db", "Gain", MinDb, MaxDb, 0))
	return &Params{Registry: r}
}

// GainDb returns the current gain in decibels.
func (p *Params) GainDb() float64 {
	return p.Get("gain_db").GetPlainValue()
}

// SetGainDb updates the gain in decibels.
func (p *Params) SetGainDb(db float64) {
	p.Get("gain_db").SetPlainValue(db)
}

// Node is a smoothed gain node. It owns the controller-side Params and
// builds a processor that smooths toward whatever value the controller
// last pushed via a patch event.
type Node struct {
	Params *Params
}

// New builds a gain node at the given starting gain, in decibels.
func New(initialDb float64) *Node {
	p := NewParams()
	p.SetGainDb(initialDb)
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
	initial := dspgain.DbToLinear(n.Params.GainDb())
	return func(info node.StreamInfo) (node.Processor, error) {
		smoother := param.NewSmoother(param.ExponentialSmoothing, 0.0)
		smoother.Reset(initial)
		smoother.RateForTime(float64(info.SampleRate), 0.01)
		return &processor{smoother: smoother, gainScratch: make([]float32, info.MaxBlockFrames)}, nil
	}
}

type processor struct {
	smoother    *param.Smoother
	gainScratch []float32
}

// Process applies the smoothed gain to every input channel, mirroring
// the teacher's silence short-circuit for fully-silent input and its
// bypass short-circuit once the smoother settles at unity.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.applyPatch(e.Payload)
	}
	for _, d := range events.Scheduled {
		p.applyPatch(d.Event.Payload)
	}

	if info.InSilenceMask == silence.AllSilent(len(buffers.Inputs)) {
		p.smoother.Reset(p.smoother.Next())
		return node.ClearAllOutputs()
	}

	if !p.smoother.IsSmoothing() {
		gain := p.smoother.Next()
		if gain < 0.00001 {
			return node.ClearAllOutputs()
		}
		if gain > 0.99999 && gain < 1.00001 {
			return node.Bypass()
		}
	}

	gains := p.gainScratch[:info.Frames]
	for i := range gains {
		gains[i] = float32(p.smoother.Next())
	}

	n := len(buffers.Inputs)
	if len(buffers.Outputs) < n {
		n = len(buffers.Outputs)
	}
	for ch := 0; ch < n; ch++ {
		in := buffers.Inputs[ch]
		out := buffers.Outputs[ch]
		for i := 0; i < info.Frames; i++ {
			out[i] = in[i] * gains[i]
		}
	}

	return node.OutputsModified(info.InSilenceMask)
}

// applyPatch retargets the smoother when payload is a gain_db patch.
func (p *processor) applyPatch(payload any) {
	pp, ok := payload.(event.PatchPayload)
	if !ok || pp.Path != "gain_db" {
		return
	}
	db, ok := pp.Data.(float64)
	if !ok {
		return
	}
	p.smoother.SetTarget(dspgain.DbToLinear(db))
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
