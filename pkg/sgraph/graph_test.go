package sgraph

import (
	"testing"

	"github.com/azybler/meshvis/pkg/geom"
)

func threeNodeTriangle(t *testing.T) (*Graph, [3]geom.Vec) {
	t.Helper()
	pts := [3]geom.Vec{
		geom.New(0, 0, 0),
		geom.New(1, 0, 0),
		geom.New(0, 1, 0),
	}
	g := New()
	edges := []struct {
		from, to int
		score    float64
	}{
		{0, 1, 1}, {0, 2, 2},
		{1, 0, 3}, {1, 2, 4},
		{2, 0, 5}, {2, 1, 6},
	}
	for _, e := range edges {
		if err := g.AddEdge(pts[e.from], pts[e.to], e.score, 0, DefaultLayer); err != nil {
			t.Fatalf("AddEdge(%d,%d): %v", e.from, e.to, err)
		}
	}
	return g, pts
}

func TestGetIDQuantizesWithinTolerance(t *testing.T) {
	g := New()
	id := g.internNode(geom.New(1.00001, 2.00001, 3.00001))
	got, ok := g.GetID(geom.New(1.0, 2.0, 3.0))
	if !ok || got != id {
		t.Fatalf("GetID near-duplicate = (%d,%v), want (%d,true)", got, ok, id)
	}
}

func TestAddEdgeMintsDenseIDs(t *testing.T) {
	g, pts := threeNodeTriangle(t)
	if g.NodeCount() != 3 {
		t.Fatalf("NodeCount = %d, want 3", g.NodeCount())
	}
	for i, p := range pts {
		id, ok := g.GetID(p)
		if !ok || int(id) != i {
			t.Errorf("GetID(pts[%d]) = (%d,%v), want (%d,true)", i, id, ok, i)
		}
	}
}

func TestCompressProducesExpectedCSR(t *testing.T) {
	g, _ := threeNodeTriangle(t)

	nnz, rows, cols, data, inner, outer := g.CSR()
	if rows != 3 || cols != 3 {
		t.Fatalf("shape = (%d,%d), want (3,3)", rows, cols)
	}
	if nnz != 6 {
		t.Fatalf("nnz = %d, want 6", nnz)
	}

	wantData := []float64{1, 2, 3, 4, 5, 6}
	wantInner := []int32{1, 2, 0, 2, 0, 1}
	wantOuter := []int32{0, 2, 4, 6}

	for i, v := range wantData {
		if data[i] != v {
			t.Errorf("data[%d] = %v, want %v", i, data[i], v)
		}
	}
	for i, v := range wantInner {
		if inner[i] != v {
			t.Errorf("inner[%d] = %v, want %v", i, inner[i], v)
		}
	}
	for i, v := range wantOuter {
		if outer[i] != v {
			t.Errorf("outer[%d] = %v, want %v", i, outer[i], v)
		}
	}
}

func TestCompressIsIdempotent(t *testing.T) {
	g, _ := threeNodeTriangle(t)
	_, _, _, d1, i1, o1 := g.CSR()
	_, _, _, d2, i2, o2 := g.CSR()
	if len(d1) != len(d2) || len(i1) != len(i2) || len(o1) != len(o2) {
		t.Fatal("repeated compress changed CSR array lengths")
	}
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Errorf("data[%d] changed across repeated compress: %v vs %v", i, d1[i], d2[i])
		}
	}
}

func TestClearThenRebuildMatchesOriginal(t *testing.T) {
	g, pts := threeNodeTriangle(t)
	_, _, _, before, _, _ := g.CSR()

	g.Clear()
	if g.NodeCount() != 0 {
		t.Fatalf("NodeCount after Clear = %d, want 0", g.NodeCount())
	}

	batch := []BatchEdge{
		{Parent: pts[0], Child: pts[1], Score: 1},
		{Parent: pts[0], Child: pts[2], Score: 2},
		{Parent: pts[1], Child: pts[0], Score: 3},
		{Parent: pts[1], Child: pts[2], Score: 4},
		{Parent: pts[2], Child: pts[0], Score: 5},
		{Parent: pts[2], Child: pts[1], Score: 6},
	}
	if err := g.AddEdges(batch); err != nil {
		t.Fatalf("AddEdges: %v", err)
	}
	_, _, _, after, _, _ := g.CSR()
	if len(before) != len(after) {
		t.Fatalf("rebuilt CSR has %d entries, want %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("data[%d] = %v, want %v", i, after[i], before[i])
		}
	}
}

func TestOverlayRequiresDefaultEdge(t *testing.T) {
	g, pts := threeNodeTriangle(t)
	err := g.AddEdge(pts[0], geom.New(99, 99, 99), 1, 0, "cross_slope")
	if err == nil {
		t.Fatal("expected EdgeNotInDefaultLayer error for overlay write to absent edge")
	}
}

func TestOverlayWriteAndCSRLayer(t *testing.T) {
	g, pts := threeNodeTriangle(t)
	if err := g.AddEdge(pts[0], pts[1], 42, 0, "cross_slope"); err != nil {
		t.Fatalf("overlay AddEdge: %v", err)
	}
	nnz, _, _, data, inner, outer := g.CSRLayer("cross_slope")
	if nnz != 1 {
		t.Fatalf("nnz = %d, want 1", nnz)
	}
	if data[0] != 42 || inner[0] != 1 {
		t.Errorf("got data=%v inner=%v, want [42] [1]", data, inner)
	}
	if len(outer) != g.NodeCount()+1 {
		t.Fatalf("outer length = %d, want %d", len(outer), g.NodeCount()+1)
	}
}

func TestSubgraphsOnePerNonEmptyParent(t *testing.T) {
	g, _ := threeNodeTriangle(t)
	subs := g.Subgraphs()
	if len(subs) != 3 {
		t.Fatalf("Subgraphs() returned %d entries, want 3", len(subs))
	}
	for _, s := range subs {
		if len(s.Edges) != 2 {
			t.Errorf("parent %d has %d edges, want 2", s.Parent.ID, len(s.Edges))
		}
	}
}

func TestEdgesFromUnknownNodeErrors(t *testing.T) {
	g, _ := threeNodeTriangle(t)
	if _, err := g.EdgesFrom(99); err == nil {
		t.Fatal("expected NoSuchNode error")
	}
}

func TestNodeAttributeRoundTrip(t *testing.T) {
	g, _ := threeNodeTriangle(t)
	if err := g.AddNodeAttribute("label", []int32{0, 2}, []string{"start", "end"}); err != nil {
		t.Fatalf("AddNodeAttribute: %v", err)
	}
	values, present, err := g.GetNodeAttribute("label")
	if err != nil {
		t.Fatalf("GetNodeAttribute: %v", err)
	}
	if values[0] != "start" || values[2] != "end" {
		t.Errorf("values = %v, want start/end at 0/2", values)
	}
	if !present.Contains(0) || !present.Contains(2) || present.Contains(1) {
		t.Errorf("presence mask wrong: %v", present.ToArray())
	}
}

func TestClearAttributeRemovesIt(t *testing.T) {
	g, _ := threeNodeTriangle(t)
	if err := g.AddNodeAttribute("label", []int32{0}, []string{"x"}); err != nil {
		t.Fatalf("AddNodeAttribute: %v", err)
	}
	if err := g.ClearAttribute("label"); err != nil {
		t.Fatalf("ClearAttribute: %v", err)
	}
	if _, _, err := g.GetNodeAttribute("label"); err == nil {
		t.Fatal("expected AttributeNotFound after ClearAttribute")
	}
}
