// Package noise provides a white-noise source node, useful as a graph
// test fixture and as a stand-in signal generator before a real sampler
// voice is wired in.
package noise

import (
	"github.com/firewheel-audio/firewheel-go/pkg/dsp/utility"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

// Node is a mono-or-multichannel white-noise generator, one independent
// generator per output channel so channels don't correlate.
type Node struct {
	NumChannels int
	Gain        float32
}

// New builds a noise node with numChannels independent generators at the
// given linear gain.
func New(numChannels int, gain float32) *Node {
	return &Node{NumChannels: numChannels, Gain: gain}
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
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	numChannels := n.NumChannels
	gain := n.Gain
	return func(node.StreamInfo) (node.Processor, error) {
		gens := make([]*utility.NoiseGenerator, numChannels)
		for i := range gens {
			gens[i] = utility.NewNoiseGenerator(utility.WhiteNoise)
			gens[i].SetSeed(int64(i + 1))
		}
		return &processor{gens: gens, gain: gain}, nil
	}
}

type processor struct {
	gens []*utility.NoiseGenerator
	gain float32
}

// Process fills every output channel with an independent white-noise
// stream at the node's configured gain.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	n := len(p.gens)
	if len(buffers.Outputs) < n {
		n = len(buffers.Outputs)
	}
	for ch := 0; ch < n; ch++ {
		out := buffers.Outputs[ch][:info.Frames]
		for i := range out {
			out[i] = 0
		}
		p.gens[ch].GenerateAdd(out, p.gain)
	}
	return node.OutputsModified(0)
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
