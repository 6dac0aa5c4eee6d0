// Package tremolo provides an amplitude-modulation node: a
// pkg/dsp/modulation.Tremolo per channel pair, with patchable rate and
// depth, wired the same way pkg/nodes/gain wires its smoothed gain
// parameter. Rate and depth are applied directly to the Tremolo once per
// block rather than smoothed sample-by-sample -- the Tremolo's own LFO
// already interpolates continuously, so a stepped rate/depth change is
// inaudible as a click the way an un-smoothed gain jump would be.
package tremolo

import (
	dspmodulation "github.com/firewheel-audio/firewheel-go/pkg/dsp/modulation"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

const (
	MinRateHz = 0.01
	MaxRateHz = 20.0
	MinDepth  = 0.0
	MaxDepth  = 1.0
)

// Params is a tremolo node's parameter snapshot: "rate_hz" and "depth".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to a classic 5Hz,
// 50%-depth tremolo.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("rate_hz", "Rate", MinRateHz, MaxRateHz, 5.0))
	r.Add(param.NewParameter("depth", "Depth", MinDepth, MaxDepth, 0.5))
	return &Params{Registry: r}
}

func (p *Params) RateHz() float64      { return p.Get("rate_hz").GetPlainValue() }
func (p *Params) SetRateHz(hz float64) { p.Get("rate_hz").SetPlainValue(hz) }
func (p *Params) Depth() float64       { return p.Get("depth").GetPlainValue() }
func (p *Params) SetDepth(d float64)   { p.Get("depth").SetPlainValue(d) }

// Node is a per-channel tremolo, each channel running its own LFO phase
// locked to the same rate and depth.
type Node struct {
	Params   *Params
	Channels int
}

// New builds a tremolo node for channels channels.
func New(channels int, rateHz, depth float64) *Node {
	p := NewParams()
	p.SetRateHz(rateHz)
	p.SetDepth(depth)
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
	initialRate := n.Params.RateHz()
	initialDepth := n.Params.Depth()
	channels := n.Channels
	return func(info node.StreamInfo) (node.Processor, error) {
		sampleRate := float64(info.SampleRate)
		units := make([]*dspmodulation.Tremolo, channels)
		for ch := range units {
			units[ch] = dspmodulation.NewTremolo(sampleRate)
			units[ch].SetRate(initialRate)
			units[ch].SetDepth(initialDepth)
		}
		return &processor{units: units, rate: initialRate, depth: initialDepth}, nil
	}
}

type processor struct {
	units []*dspmodulation.Tremolo
	rate  float64
	depth float64
}

// Process runs every channel through its own Tremolo unit.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.applyPatch(e.Payload)
	}
	for _, d := range events.Scheduled {
		p.applyPatch(d.Event.Payload)
	}

	n := len(buffers.Inputs)
	if len(buffers.Outputs) < n {
		n = len(buffers.Outputs)
	}
	if n == 0 {
		return node.ClearAllOutputs()
	}
	if info.InSilenceMask == silence.AllSilent(len(buffers.Inputs)) {
		return node.ClearAllOutputs()
	}

	for ch := 0; ch < n; ch++ {
		p.units[ch].SetRate(p.rate)
		p.units[ch].SetDepth(p.depth)
		p.units[ch].ProcessBuffer(buffers.Inputs[ch][:info.Frames], buffers.Outputs[ch][:info.Frames])
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
	case "rate_hz":
		p.rate = v
	case "depth":
		p.depth = v
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
