package compiler

import (
	"math/rand"
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/graph"
	"github.com/stretchr/testify/require"
)

func nodeIndex(sched *Schedule, id graph.NodeId) int {
	for i, n := range sched.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func TestCompileEdgeEndpointsShareBuffer(t *testing.T) {
	g := graph.New(1, 1)
	a, _ := g.AddNode("a", 1, 1)
	_, err := g.Connect(g.GraphIn(), 0, a, 0, true)
	require.NoError(t, err)
	_, err = g.Connect(a, 0, g.GraphOut(), 0, true)
	require.NoError(t, err)

	sched, err := Compile(g)
	require.NoError(t, err)

	bufOf := func(id graph.NodeId, isInput bool, port uint32) BufferIndex {
		n := sched.Nodes[nodeIndex(sched, id)]
		if isInput {
			return n.Inputs[port].Buffer
		}
		return n.Outputs[port].Buffer
	}

	for _, e := range g.Edges() {
		srcBuf := bufOf(e.Src, false, e.SrcPort)
		dstBuf := bufOf(e.Dst, true, e.DstPort)
		require.Equal(t, srcBuf, dstBuf, "edge %v->%v should share a buffer", e.Src, e.Dst)
	}
}

func TestCompileLinearChainReusesBuffers(t *testing.T) {
	g := graph.New(1, 1)
	a, _ := g.AddNode("a", 1, 1)
	b, _ := g.AddNode("b", 1, 1)

	_, err := g.Connect(g.GraphIn(), 0, a, 0, true)
	require.NoError(t, err)
	_, err = g.Connect(a, 0, b, 0, true)
	require.NoError(t, err)
	_, err = g.Connect(b, 0, g.GraphOut(), 0, true)
	require.NoError(t, err)

	sched, err := Compile(g)
	require.NoError(t, err)
	require.Equal(t, 2, sched.NumBuffers, "a 3-stage serial chain should need only 2 buffers")
}

func TestCompileShouldClearOnlyOnUnconnectedInput(t *testing.T) {
	g := graph.New(0, 1)
	mixer, _ := g.AddNode("mixer", 2, 1)
	src, _ := g.AddNode("src", 0, 1)

	_, err := g.Connect(src, 0, mixer, 0, true)
	require.NoError(t, err)
	_, err = g.Connect(mixer, 0, g.GraphOut(), 0, true)
	require.NoError(t, err)
	// mixer input port 1 left unconnected

	sched, err := Compile(g)
	require.NoError(t, err)

	m := sched.Nodes[nodeIndex(sched, mixer)]
	require.False(t, m.Inputs[0].ShouldClear, "connected input must not be marked should_clear")
	require.True(t, m.Inputs[1].ShouldClear, "unconnected input must be marked should_clear")
}

func TestCompileNoSharedBufferWithinNode(t *testing.T) {
	g := graph.New(0, 1)
	mixer, _ := g.AddNode("mixer", 2, 1)
	a, _ := g.AddNode("a", 0, 1)
	b, _ := g.AddNode("b", 0, 1)

	g.Connect(a, 0, mixer, 0, true)
	g.Connect(b, 0, mixer, 1, true)
	g.Connect(mixer, 0, g.GraphOut(), 0, true)

	sched, err := Compile(g)
	require.NoError(t, err)

	m := sched.Nodes[nodeIndex(sched, mixer)]
	seen := map[BufferIndex]bool{}
	for _, in := range m.Inputs {
		require.False(t, seen[in.Buffer], "duplicate buffer within node inputs")
		seen[in.Buffer] = true
	}
	for _, out := range m.Outputs {
		require.False(t, seen[out.Buffer], "output buffer aliases an input or another output")
		seen[out.Buffer] = true
	}
}

func TestCompileTopologicalOrderRespectsEdges(t *testing.T) {
	g := graph.New(0, 1)
	a, _ := g.AddNode("a", 0, 1)
	b, _ := g.AddNode("b", 1, 1)
	c, _ := g.AddNode("c", 1, 1)

	g.Connect(a, 0, b, 0, true)
	g.Connect(b, 0, c, 0, true)
	g.Connect(c, 0, g.GraphOut(), 0, true)

	sched, err := Compile(g)
	require.NoError(t, err)

	for _, e := range g.Edges() {
		require.Less(t, nodeIndex(sched, e.Src), nodeIndex(sched, e.Dst), "edge source must precede destination")
	}
}

func TestCompileGraphInFirstGraphOutLast(t *testing.T) {
	g := graph.New(1, 1)
	a, _ := g.AddNode("a", 1, 1)
	g.Connect(g.GraphIn(), 0, a, 0, true)
	g.Connect(a, 0, g.GraphOut(), 0, true)

	sched, err := Compile(g)
	require.NoError(t, err)
	require.Equal(t, g.GraphIn(), sched.Nodes[0].ID)
	require.Equal(t, g.GraphOut(), sched.Nodes[len(sched.Nodes)-1].ID)
}

func TestCompileElidesUnreachableNodes(t *testing.T) {
	g := graph.New(0, 1)
	a, _ := g.AddNode("a", 0, 1)
	orphan, _ := g.AddNode("orphan", 0, 1)
	g.Connect(a, 0, g.GraphOut(), 0, true)

	sched, err := Compile(g)
	require.NoError(t, err)
	require.Equal(t, -1, nodeIndex(sched, orphan), "unreachable node should be elided from the schedule")
}

// TestCompileRandomDAGsSatisfyInvariants is a property test over random
// DAGs: every edge's endpoints share a buffer, no node shares a buffer
// across its own ports, should_clear matches connectivity, and the
// schedule is topologically valid.
func TestCompileRandomDAGsSatisfyInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		g := graph.New(1, 1)
		n := 2 + rng.Intn(12)
		nodes := make([]graph.NodeId, n)
		for i := range nodes {
			nodes[i], _ = g.AddNode("n", 1+rng.Intn(2), 1+rng.Intn(2))
		}

		all := append([]graph.NodeId{g.GraphIn()}, nodes...)
		all = append(all, g.GraphOut())

		// Only connect earlier nodes to later nodes in `all` so the graph
		// stays acyclic regardless of which edges land.
		for i := 0; i < len(all); i++ {
			for j := i + 1; j < len(all); j++ {
				if rng.Float64() > 0.25 {
					continue
				}
				srcInfo, ok := g.Node(all[i])
				if !ok || srcInfo.NumOutputs == 0 {
					continue
				}
				dstInfo, ok := g.Node(all[j])
				if !ok || dstInfo.NumInputs == 0 {
					continue
				}
				outPort := uint32(rng.Intn(srcInfo.NumOutputs))
				inPort := uint32(rng.Intn(dstInfo.NumInputs))
				g.Connect(all[i], outPort, all[j], inPort, true)
			}
		}

		sched, err := Compile(g)
		require.NoError(t, err, "trial %d", trial)

		positions := make(map[graph.NodeId]int, len(sched.Nodes))
		for i, sn := range sched.Nodes {
			positions[sn.ID] = i
		}

		bufOf := func(id graph.NodeId, isInput bool, port uint32) BufferIndex {
			sn := sched.Nodes[positions[id]]
			if isInput {
				return sn.Inputs[port].Buffer
			}
			return sn.Outputs[port].Buffer
		}

		for _, e := range g.Edges() {
			require.Equal(t, bufOf(e.Src, false, e.SrcPort), bufOf(e.Dst, true, e.DstPort), "trial %d: edge buffer mismatch", trial)
			require.Less(t, positions[e.Src], positions[e.Dst], "trial %d: topological violation", trial)
		}

		for _, sn := range sched.Nodes {
			seen := map[BufferIndex]bool{}
			for _, in := range sn.Inputs {
				require.False(t, seen[in.Buffer], "trial %d: node %v duplicate buffer", trial, sn.ID)
				seen[in.Buffer] = true
			}
			for _, out := range sn.Outputs {
				require.False(t, seen[out.Buffer], "trial %d: node %v output aliases input/output", trial, sn.ID)
				seen[out.Buffer] = true
			}
		}
	}
}
