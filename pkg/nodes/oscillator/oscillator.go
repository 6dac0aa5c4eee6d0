// Package oscillator provides a band-limited-saw-or-classic-waveform
// source node: one pkg/dsp/oscillator.Oscillator (or BandLimitedSaw) per
// output channel, with a patchable, smoothed frequency, wired the same
// way pkg/nodes/noise wires its per-channel generators.
package oscillator

import (
	dsposcillator "github.com/firewheel-audio/firewheel-go/pkg/dsp/oscillator"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
)

// Waveform selects which waveform the node generates.
type Waveform int

const (
	Sine Waveform = iota
	Saw
	Square
	Triangle
	BandLimitedSaw
)

const (
	MinFrequency = 1.0
	MaxFrequency = 20000.0
)

// Params is an oscillator node's parameter snapshot: "frequency".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to concert A.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("frequency", "Frequency", MinFrequency, MaxFrequency, 440.0))
	return &Params{Registry: r}
}

func (p *Params) Frequency() float64      { return p.Get("frequency").GetPlainValue() }
func (p *Params) SetFrequency(hz float64) { p.Get("frequency").SetPlainValue(hz) }

// Node is a multichannel, unison-detuned-free oscillator source: every
// channel runs its own generator at the same smoothed frequency.
type Node struct {
	Params      *Params
	NumChannels int
	Wave        Waveform
}

// New builds an oscillator node with numChannels independent generators
// at the given waveform and starting frequency.
func New(numChannels int, wave Waveform, frequencyHz float64) *Node {
	p := NewParams()
	p.SetFrequency(frequencyHz)
	return &Node{Params: p, NumChannels: numChannels, Wave: wave}
}

// Config returns the node.Config this node declares at insertion time.
// A source node has no inputs.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  0,
			NumOutputs: n.NumChannels,
		},
		UsesEvents: true,
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	initialFreq := n.Params.Frequency()
	numChannels := n.NumChannels
	wave := n.Wave
	return func(info node.StreamInfo) (node.Processor, error) {
		sampleRate := float64(info.SampleRate)
		oscs := make([]*dsposcillator.Oscillator, 0)
		saws := make([]*dsposcillator.BandLimitedSaw, 0)
		if wave == BandLimitedSaw {
			saws = make([]*dsposcillator.BandLimitedSaw, numChannels)
			for i := range saws {
				saws[i] = dsposcillator.NewBandLimitedSaw(sampleRate)
				saws[i].SetFrequency(initialFreq)
			}
		} else {
			oscs = make([]*dsposcillator.Oscillator, numChannels)
			for i := range oscs {
				oscs[i] = dsposcillator.New(sampleRate)
				oscs[i].SetFrequency(initialFreq)
			}
		}
		freqSmoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		freqSmoother.Reset(initialFreq)
		freqSmoother.RateForTime(sampleRate, 0.02)
		return &processor{
			oscs:         oscs,
			saws:         saws,
			wave:         wave,
			freqSmoother: freqSmoother,
		}, nil
	}
}

type processor struct {
	oscs         []*dsposcillator.Oscillator
	saws         []*dsposcillator.BandLimitedSaw
	wave         Waveform
	freqSmoother *param.Smoother
}

// Process fills every output channel with the node's waveform at the
// smoothed frequency. Frequency is re-applied once per sample so a
// moving pitch glides rather than clicking.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.applyPatch(e.Payload)
	}
	for _, d := range events.Scheduled {
		p.applyPatch(d.Event.Payload)
	}

	n := len(p.oscs)
	if p.wave == BandLimitedSaw {
		n = len(p.saws)
	}
	if len(buffers.Outputs) < n {
		n = len(buffers.Outputs)
	}
	if n == 0 {
		return node.ClearAllOutputs()
	}

	for i := 0; i < info.Frames; i++ {
		freq := p.freqSmoother.Next()
		for ch := 0; ch < n; ch++ {
			if p.wave == BandLimitedSaw {
				p.saws[ch].SetFrequency(freq)
				buffers.Outputs[ch][i] = p.saws[ch].Next()
			} else {
				p.oscs[ch].SetFrequency(freq)
				buffers.Outputs[ch][i] = p.sample(p.oscs[ch])
			}
		}
	}
	return node.OutputsModified(0)
}

func (p *processor) sample(osc *dsposcillator.Oscillator) float32 {
	switch p.wave {
	case Sine:
		return osc.Sine()
	case Saw:
		return osc.Saw()
	case Square:
		return osc.Square()
	case Triangle:
		return osc.Triangle()
	default:
		return osc.Sine()
	}
}

func (p *processor) applyPatch(payload any) {
	pp, ok := payload.(event.PatchPayload)
	if !ok || pp.Path != "frequency" {
		return
	}
	v, ok := pp.Data.(float64)
	if !ok {
		return
	}
	p.freqSmoother.SetTarget(v)
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
