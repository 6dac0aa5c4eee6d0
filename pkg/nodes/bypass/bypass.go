// Package bypass provides a pass-through node: every output channel
// carries its same-index input unchanged. It serves as the simplest
// possible node.Processor for tests; GRAPH_IN and GRAPH_OUT have no
// processor installed and do not use it.
package bypass

import (
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

// Node is a channel-count-preserving pass-through node.
type Node struct {
	NumChannels int
}

// New builds a bypass node declaring numChannels inputs and outputs.
func New(numChannels int) *Node {
	return &Node{NumChannels: numChannels}
}

// Config returns the node.Config this node declares at insertion time.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  n.NumChannels,
			NumOutputs: n.NumChannels,
		},
	}
}

// Factory builds the node.Factory for this node, ignoring stream info
// since bypass never allocates state that depends on it.
func (n *Node) Factory() node.Factory {
	return func(node.StreamInfo) (node.Processor, error) {
		return &processor{}, nil
	}
}

type processor struct{}

// Process always reports Bypass: the engine copies inputs to outputs and
// zeroes any excess output channels, so this processor never touches the
// buffers itself.
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	return node.Bypass()
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
