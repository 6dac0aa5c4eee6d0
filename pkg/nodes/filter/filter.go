// Package filter provides a smoothed state-variable filter node:
// lowpass, highpass, or bandpass, selectable at construction, with
// cutoff and resonance exposed as patchable parameters. Wired the same
// way pkg/nodes/gain wires its single smoothed parameter.
package filter

import (
	dspfilter "github.com/firewheel-audio/firewheel-go/pkg/dsp/filter"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

// Mode selects which of the state-variable filter's simultaneous
// outputs this node reports.
type Mode int

const (
	Lowpass Mode = iota
	Highpass
	Bandpass
)

const (
	MinCutoffHz = 20.0
	MaxCutoffHz = 20000.0
	MinQ        = 0.1
	MaxQ        = 20.0
)

// Params is a filter node's parameter snapshot: "cutoff_hz" and "q".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to a wide-open 1kHz,
// Q=0.707 (Butterworth) response.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("cutoff_hz", "Cutoff", MinCutoffHz, MaxCutoffHz, 1000))
	r.Add(param.NewParameter("q", "Resonance", MinQ, MaxQ, 0.707))
	return &Params{Registry: r}
}

func (p *Params) CutoffHz() float64 { return p.Get("cutoff_hz").GetPlainValue() }
func (p *Params) SetCutoffHz(hz float64) { p.Get("cutoff_hz").SetPlainValue(hz) }
func (p *Params) Q() float64 { return p.Get("q").GetPlainValue() }
func (p *Params) SetQ(q float64) { p.Get("q").SetPlainValue(q) }

// Node is a smoothed multichannel state-variable filter.
type Node struct {
	Params   *Params
	Mode     Mode
	Channels int
}

// New builds a filter node in the given mode for channels channels, at
// the given starting cutoff (Hz) and Q.
func New(mode Mode, channels int, cutoffHz, q float64) *Node {
	p := NewParams()
	p.SetCutoffHz(cutoffHz)
	p.SetQ(q)
	return &Node{Params: p, Mode: mode, Channels: channels}
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
	initialCutoff := n.Params.CutoffHz()
	initialQ := n.Params.Q()
	mode := n.Mode
	channels := n.Channels
	return func(info node.StreamInfo) (node.Processor, error) {
		svf := dspfilter.NewSVF(channels)
		cutoffSmoother := param.NewSmoother(param.ExponentialSmoothing, 0.0)
		cutoffSmoother.Reset(initialCutoff)
		cutoffSmoother.RateForTime(float64(info.SampleRate), 0.02)
		qSmoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		qSmoother.Reset(initialQ)
		qSmoother.RateForTime(float64(info.SampleRate), 0.02)
		return &processor{
			svf:            svf,
			mode:           mode,
			sampleRate:     float64(info.SampleRate),
			cutoffSmoother: cutoffSmoother,
			qSmoother:      qSmoother,
		}, nil
	}
}

type processor struct {
	svf            *dspfilter.SVF
	mode           Mode
	sampleRate     float64
	cutoffSmoother *param.Smoother
	qSmoother      *param.Smoother
}

// Process runs every channel through the state-variable filter,
// re-deriving its coefficients once per block from the current smoothed
// cutoff/Q (the teacher's SVF is not designed for per-sample coefficient
// updates, so a moving cutoff steps once per block rather than
// continuously, unlike this node's own gain smoothing).
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
		p.svf.Reset()
		return node.ClearAllOutputs()
	}

	p.svf.SetFrequencyAndQ(p.sampleRate, p.cutoffSmoother.Next(), p.qSmoother.Next())

	for ch := 0; ch < n; ch++ {
		in := buffers.Inputs[ch]
		out := buffers.Outputs[ch]
		for i := 0; i < info.Frames; i++ {
			outputs := p.svf.ProcessSample(in[i], ch)
			switch p.mode {
			case Highpass:
				out[i] = outputs.Highpass
			case Bandpass:
				out[i] = outputs.Bandpass
			default:
				out[i] = outputs.Lowpass
			}
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
	case "cutoff_hz":
		p.cutoffSmoother.SetTarget(v)
	case "q":
		p.qSmoother.SetTarget(v)
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
