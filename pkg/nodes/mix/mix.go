// Package mix provides an N-input-to-1 summing node: every input channel
// at a given port index is added together into the same-index output
// channel at unity gain; there is no per-input gain.
package mix

import (
	dspmix "github.com/firewheel-audio/firewheel-go/pkg/dsp/mix"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

// Node is a summing mixer over numInputs stereo-or-mono input buses,
// each contributing numChannels channels, collapsed to one numChannels
// output bus.
type Node struct {
	NumInputs   int
	NumChannels int
}

// New builds a mix node summing numInputs buses of numChannels channels
// each into a single numChannels output bus.
func New(numInputs, numChannels int) *Node {
	return &Node{NumInputs: numInputs, NumChannels: numChannels}
}

// Config returns the node.Config this node declares at insertion time.
// Its port layout is numInputs*numChannels flattened input channels
// feeding numChannels output channels.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  n.NumInputs * n.NumChannels,
			NumOutputs: n.NumChannels,
		},
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	numChannels := n.NumChannels
	return func(node.StreamInfo) (node.Processor, error) {
		return &processor{numChannels: numChannels}, nil
	}
}

type processor struct {
	numChannels int
}

// Process sums every input bus's channel i into output channel i. A
// channel known silent across every contributing input is reported
// silent in the returned mask.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	if p.numChannels == 0 || len(buffers.Outputs) == 0 {
		return node.ClearAllOutputs()
	}

	var outMask silence.Mask
	for ch := 0; ch < p.numChannels && ch < len(buffers.Outputs); ch++ {
		var contributors [][]float32
		allSilent := true
		for bus := 0; bus*p.numChannels+ch < len(buffers.Inputs); bus++ {
			idx := bus*p.numChannels + ch
			if info.InSilenceMask.IsSilent(idx) {
				continue
			}
			allSilent = false
			contributors = append(contributors, buffers.Inputs[idx])
		}
		dst := buffers.Outputs[ch][:info.Frames]
		if len(contributors) == 0 {
			// dsp/mix.Sum leaves dst untouched when there is nothing to
			// sum; a silent channel still needs its output cleared.
			for i := range dst {
				dst[i] = 0
			}
		} else {
			dspmix.Sum(contributors, dst)
		}
		if allSilent {
			outMask = outMask.WithSilent(ch)
		}
	}

	return node.OutputsModified(outMask)
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
