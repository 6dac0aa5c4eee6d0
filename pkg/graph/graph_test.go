package graph

import "testing"

func TestAddNodeAndConnect(t *testing.T) {
	g := New(0, 2)
	n, err := g.AddNode("gain", 1, 1)
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if _, err := g.Connect(g.GraphIn(), 0, n, 0, true); err == nil {
		t.Fatal("expected error connecting from GRAPH_IN with 0 outputs")
	}

	eid, err := g.Connect(n, 0, g.GraphOut(), 0, true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(g.Edges()) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges()))
	}
	if !g.NeedsCompile() {
		t.Error("expected needsCompile after connect")
	}

	g.MarkCompiled()
	if g.NeedsCompile() {
		t.Error("expected needsCompile cleared after MarkCompiled")
	}

	_ = eid
}

func TestConnectDisconnectRestoresState(t *testing.T) {
	g := New(0, 2)
	n, _ := g.AddNode("gain", 1, 1)

	eid, err := g.Connect(n, 0, g.GraphOut(), 0, true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	before := len(g.Edges())

	if !g.Disconnect(eid) {
		t.Fatal("Disconnect returned false for a live edge")
	}
	if len(g.Edges()) != before-1 {
		t.Fatalf("expected edge count to drop by 1, got %d -> %d", before, len(g.Edges()))
	}
	if !g.NeedsCompile() {
		t.Error("expected needsCompile set after disconnect")
	}

	eid2, err := g.Connect(n, 0, g.GraphOut(), 0, true)
	if err != nil {
		t.Fatalf("re-Connect: %v", err)
	}
	if len(g.Edges()) != before {
		t.Fatalf("expected edge count restored to %d, got %d", before, len(g.Edges()))
	}
	_ = eid2
}

func TestInputAlreadyConnectedRejected(t *testing.T) {
	g := New(0, 2)
	a, _ := g.AddNode("a", 0, 1)
	b, _ := g.AddNode("b", 0, 1)

	if _, err := g.Connect(a, 0, g.GraphOut(), 0, true); err != nil {
		t.Fatalf("Connect a: %v", err)
	}
	if _, err := g.Connect(b, 0, g.GraphOut(), 0, true); err != ErrInputPortAlreadyConnected {
		t.Fatalf("expected ErrInputPortAlreadyConnected, got %v", err)
	}
}

func TestRemoveNodeReturnsIncidentEdges(t *testing.T) {
	g := New(0, 2)
	n, _ := g.AddNode("gain", 1, 1)
	src, _ := g.AddNode("src", 0, 1)

	e1, _ := g.Connect(src, 0, n, 0, true)
	e2, _ := g.Connect(n, 0, g.GraphOut(), 0, true)

	dropped, err := g.RemoveNode(n)
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped edges, got %d", len(dropped))
	}
	seen := map[EdgeId]bool{}
	for _, d := range dropped {
		seen[d] = true
	}
	if !seen[e1] || !seen[e2] {
		t.Error("dropped edges did not match the incident edge set")
	}
	if len(g.Edges()) != 0 {
		t.Errorf("expected 0 remaining edges, got %d", len(g.Edges()))
	}
}

func TestCannotRemoveSentinelNodes(t *testing.T) {
	g := New(0, 2)
	if _, err := g.RemoveNode(g.GraphIn()); err != ErrCannotRemoveSentinel {
		t.Errorf("expected ErrCannotRemoveSentinel, got %v", err)
	}
	if _, err := g.RemoveNode(g.GraphOut()); err != ErrCannotRemoveSentinel {
		t.Errorf("expected ErrCannotRemoveSentinel, got %v", err)
	}
}

func TestCycleDetectedLeavesGraphUnchanged(t *testing.T) {
	g := New(0, 2)
	a, _ := g.AddNode("a", 1, 1)
	b, _ := g.AddNode("b", 1, 1)

	if _, err := g.Connect(a, 0, b, 0, true); err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	before := len(g.Edges())

	if _, err := g.Connect(b, 0, a, 0, true); err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if len(g.Edges()) != before {
		t.Errorf("graph changed after rejected cycle: %d -> %d", before, len(g.Edges()))
	}
}

func TestSetNumInputsShrinkDropsEdges(t *testing.T) {
	g := New(0, 2)
	n, _ := g.AddNode("mixer", 2, 1)
	a, _ := g.AddNode("a", 0, 1)
	b, _ := g.AddNode("b", 0, 1)

	g.Connect(a, 0, n, 0, true)
	g.Connect(b, 0, n, 1, true)

	if err := g.SetNumInputs(n, 1); err != nil {
		t.Fatalf("SetNumInputs: %v", err)
	}
	edges := g.EdgesTo(n)
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge remaining on shrunk node, got %d", len(edges))
	}
	if edges[0].DstPort != 0 {
		t.Errorf("expected surviving edge on port 0, got port %d", edges[0].DstPort)
	}
}

func TestSentinelPortsCannotBeResized(t *testing.T) {
	g := New(0, 2)
	if err := g.SetNumInputs(g.GraphIn(), 3); err != ErrCannotResizeSentinel {
		t.Errorf("expected ErrCannotResizeSentinel, got %v", err)
	}
	if err := g.SetNumOutputs(g.GraphOut(), 3); err != ErrCannotResizeSentinel {
		t.Errorf("expected ErrCannotResizeSentinel, got %v", err)
	}
}
