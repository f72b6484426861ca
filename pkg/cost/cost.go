// Package cost derives per-edge cost overlays (cross-slope, energy
// expenditure) from the geometry of a compressed sgraph.Graph and writes
// them back as named cost layers.
package cost

import (
	"math"
	"sort"

	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/sgraph"
)

// CrossSlopeLayer is the name CalculateCrossSlope writes to.
const CrossSlopeLayer = "cross_slope"

// EnergyExpenditureLayer is the name CalculateEnergyExpenditure writes to.
const EnergyExpenditureLayer = "energy_expenditure"

// CalculateCrossSlope writes one "cross_slope" score per default-layer
// edge: for edge (p, c) it looks at p's other outgoing neighbors, picks
// the two whose direction from p is closest to perpendicular (in the
// horizontal plane) to p->c, and scores the edge as the absolute
// difference in z between those two neighbors. With only one other
// neighbor, the score is |z(p) - z(neighbor)|; with none, the score is 0.
//
// Ties in perpendicularity are broken by preferring the smaller child node
// id, applied in the order neighbors are scanned (ascending child id).
func CalculateCrossSlope(g *sgraph.Graph) error {
	g.Compress()
	nodes := g.Nodes()
	var batch []sgraph.BatchEdge

	for _, sub := range g.Subgraphs() {
		p := sub.Parent
		neighbors := make([]sgraph.Edge, len(sub.Edges))
		copy(neighbors, sub.Edges)
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Child < neighbors[j].Child })

		for _, e := range sub.Edges {
			_, _, score := pickPerpendicularPair(p, neighbors, e.Child, nodes)
			batch = append(batch, sgraph.BatchEdge{
				Parent:    p.Point,
				Child:     nodes[e.Child].Point,
				Score:     score,
				CostLayer: CrossSlopeLayer,
			})
		}
	}
	return g.AddEdges(batch)
}

// pickPerpendicularPair finds, among neighbors excluding childID, the two
// whose direction from parent is closest to perpendicular to parent->child
// in the horizontal plane. neighbors must already be sorted by ascending
// child id so that ties resolve to the smallest id first.
func pickPerpendicularPair(parent sgraph.Node, neighbors []sgraph.Edge, childID int32, nodes []sgraph.Node) (aID, bID int32, score float64) {
	refDir := geom.New(
		nodes[childID].Point.X-parent.Point.X,
		nodes[childID].Point.Y-parent.Point.Y,
		0,
	)

	type candidate struct {
		id   int32
		dist float64 // distance from perpendicular (0 = exactly perpendicular)
	}
	var cands []candidate
	for _, n := range neighbors {
		if n.Child == childID {
			continue
		}
		dir := geom.New(
			nodes[n.Child].Point.X-parent.Point.X,
			nodes[n.Child].Point.Y-parent.Point.Y,
			0,
		)
		if dir.X == 0 && dir.Y == 0 {
			continue
		}
		angle := math.Abs(geom.HorizontalAngle(refDir, dir))
		dist := math.Abs(angle - math.Pi/2)
		cands = append(cands, candidate{id: n.Child, dist: dist})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	switch {
	case len(cands) == 0:
		return -1, -1, 0
	case len(cands) == 1:
		return cands[0].id, -1, math.Abs(nodes[cands[0].id].Point.Z - parent.Point.Z)
	default:
		a, b := cands[0].id, cands[1].id
		return a, b, math.Abs(nodes[a].Point.Z - nodes[b].Point.Z)
	}
}

// CalculateEnergyExpenditure writes one "energy_expenditure" score per
// default-layer edge, derived from the edge's grade g = delta-z /
// horizontal-length via a piecewise pedestrian metabolic-cost model
// (Minetti et al.'s cost-of-locomotion curve, clamped and linearly
// extended beyond its fitted range of +/-50% grade): a baseline flat-
// ground rate plus slope-dependent terms, scaled by the edge's horizontal
// length to yield a total cost rather than a rate.
func CalculateEnergyExpenditure(g *sgraph.Graph) error {
	g.Compress()
	nodes := g.Nodes()
	var batch []sgraph.BatchEdge

	for _, sub := range g.Subgraphs() {
		p := sub.Parent
		for _, e := range sub.Edges {
			c := nodes[e.Child]
			horiz := geom.HorizontalLength(geom.New(c.Point.X-p.Point.X, c.Point.Y-p.Point.Y, 0))
			dz := c.Point.Z - p.Point.Z

			var grade float64
			if horiz > 0 {
				grade = dz / horiz
			}
			rate := costOfLocomotion(grade)
			batch = append(batch, sgraph.BatchEdge{
				Parent:    p.Point,
				Child:     c.Point,
				Score:     rate * horiz,
				CostLayer: EnergyExpenditureLayer,
			})
		}
	}
	return g.AddEdges(batch)
}

// costOfLocomotion returns the metabolic cost rate, in joules per
// kilogram per meter of horizontal travel, for walking at grade g
// (positive uphill, negative downhill).
func costOfLocomotion(g float64) float64 {
	const clamp = 0.5
	extra := 0.0
	if g > clamp {
		extra = (g - clamp) * 50
		g = clamp
	} else if g < -clamp {
		extra = (-clamp - g) * 50
		g = -clamp
	}
	// Minetti et al. (2002), quintic fit to measured oxygen consumption.
	poly := 155.4*pow5(g) - 30.4*pow4(g) - 43.3*pow3(g) + 46.3*g*g + 19.5*g + 3.6
	return poly + extra
}

func pow3(x float64) float64 { return x * x * x }
func pow4(x float64) float64 { return x * x * x * x }
func pow5(x float64) float64 { return x * x * x * x * x }
