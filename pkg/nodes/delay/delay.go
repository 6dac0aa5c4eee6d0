// Package delay provides a feedback echo node: a per-channel comb delay
// line with patchable time, feedback, and dry/wet mix, wired onto
// pkg/dsp/delay.CombDelay the same way pkg/nodes/gain wires its smoothed
// gain parameter.
package delay

import (
	dspdelay "github.com/firewheel-audio/firewheel-go/pkg/dsp/delay"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

const (
	MinTimeMs   = 1.0
	MaxTimeMs   = 2000.0
	MinFeedback = 0.0
	MaxFeedback = 0.95
	MinMix      = 0.0
	MaxMix      = 1.0
)

// Params is a delay node's parameter snapshot: "time_ms", "feedback",
// and "mix".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to a 300ms slapback echo
// with moderate feedback and a 35% wet mix.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("time_ms", "Time", MinTimeMs, MaxTimeMs, 300))
	r.Add(param.NewParameter("feedback", "Feedback", MinFeedback, MaxFeedback, 0.3))
	r.Add(param.NewParameter("mix", "Mix", MinMix, MaxMix, 0.35))
	return &Params{Registry: r}
}

func (p *Params) TimeMs() float64        { return p.Get("time_ms").GetPlainValue() }
func (p *Params) SetTimeMs(ms float64)   { p.Get("time_ms").SetPlainValue(ms) }
func (p *Params) Feedback() float64      { return p.Get("feedback").GetPlainValue() }
func (p *Params) SetFeedback(fb float64) { p.Get("feedback").SetPlainValue(fb) }
func (p *Params) Mix() float64           { return p.Get("mix").GetPlainValue() }
func (p *Params) SetMix(mix float64)     { p.Get("mix").SetPlainValue(mix) }

// Node is a smoothed multichannel feedback delay.
type Node struct {
	Params      *Params
	Channels    int
	MaxDelaySec float64
}

// New builds a delay node for channels channels, capable of delays up to
// maxDelaySec seconds.
func New(channels int, maxDelaySec, timeMs, feedback, mix float64) *Node {
	p := NewParams()
	p.SetTimeMs(timeMs)
	p.SetFeedback(feedback)
	p.SetMix(mix)
	return &Node{Params: p, Channels: channels, MaxDelaySec: maxDelaySec}
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
	initialTimeMs := n.Params.TimeMs()
	initialFeedback := n.Params.Feedback()
	initialMix := n.Params.Mix()
	channels := n.Channels
	maxDelaySec := n.MaxDelaySec
	return func(info node.StreamInfo) (node.Processor, error) {
		sampleRate := float64(info.SampleRate)
		lines := make([]*dspdelay.CombDelay, channels)
		for ch := range lines {
			lines[ch] = dspdelay.NewComb(maxDelaySec, sampleRate)
			lines[ch].SetFeedback(float32(initialFeedback))
		}
		timeSmoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		timeSmoother.Reset(initialTimeMs)
		timeSmoother.RateForTime(sampleRate, 0.05)
		mixSmoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		mixSmoother.Reset(initialMix)
		mixSmoother.RateForTime(sampleRate, 0.02)
		return &processor{
			lines:        lines,
			sampleRate:   sampleRate,
			feedback:     initialFeedback,
			timeSmoother: timeSmoother,
			mixSmoother:  mixSmoother,
			mixScratch:   make([]float32, info.MaxBlockFrames),
		}, nil
	}
}

type processor struct {
	lines        []*dspdelay.CombDelay
	sampleRate   float64
	feedback     float64
	timeSmoother *param.Smoother
	mixSmoother  *param.Smoother
	mixScratch   []float32
}

// Process runs every channel through its own comb delay line, applying
// the smoothed dry/wet mix. Delay time changes are applied once per
// block (the comb's internal read/write heads aren't designed for a
// moving tap within a block), and so is feedback; mix ramps per sample.
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

	delaySamples := p.timeSmoother.Next() * p.sampleRate / 1000.0
	for ch := 0; ch < n; ch++ {
		p.lines[ch].SetFeedback(float32(p.feedback))
	}

	mixes := p.mixScratch[:info.Frames]
	for i := range mixes {
		mixes[i] = float32(p.mixSmoother.Next())
	}

	for ch := 0; ch < n; ch++ {
		in := buffers.Inputs[ch]
		out := buffers.Outputs[ch]
		line := p.lines[ch]
		for i := 0; i < info.Frames; i++ {
			dry := in[i]
			wet := line.Process(dry, delaySamples)
			out[i] = dry*(1-mixes[i]) + wet*mixes[i]
		}
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
	case "time_ms":
		p.timeSmoother.SetTarget(v)
	case "feedback":
		p.feedback = v
	case "mix":
		p.mixSmoother.SetTarget(v)
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
