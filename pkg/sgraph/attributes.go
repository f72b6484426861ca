package sgraph

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/azybler/meshvis/internal/engerr"
)

// AddNodeAttribute writes attributeName[ids[i]] = values[i] for each i. ids
// and values must be the same length and every id must be in range.
func (g *Graph) AddNodeAttribute(attributeName string, ids []int32, values []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(ids) != len(values) {
		return engerr.Invalid("Graph.AddNodeAttribute", "ids and values must be the same length")
	}
	for _, id := range ids {
		if id < 0 || int(id) >= len(g.nodes) {
			return engerr.NoSuchNode("Graph.AddNodeAttribute")
		}
	}

	a, ok := g.attrs[attributeName]
	if !ok {
		a = &attribute{present: roaring.New(), values: make([]string, len(g.nodes))}
		g.attrs[attributeName] = a
	}
	if n := len(g.nodes); len(a.values) < n {
		grown := make([]string, n)
		copy(grown, a.values)
		a.values = grown
	}
	for i, id := range ids {
		a.values[id] = values[i]
		a.present.Add(uint32(id))
	}
	return nil
}

// GetNodeAttribute returns a dense vector indexed by node id together with
// present, the per-id mask of nodes that have a value; entries for nodes
// without a value hold the empty string and are absent from present.
func (g *Graph) GetNodeAttribute(attributeName string) (values []string, present *roaring.Bitmap, err error) {
	a, ok := g.attrs[attributeName]
	if !ok {
		return nil, nil, engerr.AttributeNotFound("Graph.GetNodeAttribute", attributeName)
	}
	out := make([]string, len(g.nodes))
	copy(out, a.values)
	return out, a.present.Clone(), nil
}

// ClearAttribute removes the named attribute entirely.
func (g *Graph) ClearAttribute(attributeName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.attrs[attributeName]; !ok {
		return engerr.AttributeNotFound("Graph.ClearAttribute", attributeName)
	}
	delete(g.attrs, attributeName)
	return nil
}
