// Command demo exercises the engine against a synthetic flat-plane scene:
// it builds a single quad mesh, fires a batch of downward rays through it,
// builds a small visibility graph over sample points above the plane, and
// runs both cost algorithms over that graph.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/azybler/meshvis/pkg/aggregate"
	"github.com/azybler/meshvis/pkg/cost"
	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/mesh"
	"github.com/azybler/meshvis/pkg/rayengine"
	"github.com/azybler/meshvis/pkg/visibility"
)

func main() {
	trials := flag.Int("trials", 150, "number of trials to fire")
	raysPerTrial := flag.Int("rays-per-trial", 1000, "rays fired per trial")
	precise := flag.Bool("precise", false, "use the double-precision watertight intersector")
	flag.Parse()

	plane, err := mesh.New(0, "ground", []float32{
		-10, -10, 0,
		10, -10, 0,
		10, 10, 0,
		-10, 10, 0,
	}, []uint32{0, 1, 2, 0, 2, 3}, geom.NewEulerRotation(0, 0, 0))
	if err != nil {
		log.Fatalf("building plane mesh: %v", err)
	}

	engine, err := rayengine.NewFromMeshes([]*mesh.MeshInfo{plane}, *precise)
	if err != nil {
		log.Fatalf("building ray engine: %v", err)
	}
	defer engine.Release()

	log.Printf("scene: %d mesh(es), %d triangle(s), precise=%v",
		engine.MeshCount(), engine.TriangleCount(), engine.Precise())

	runDeterministicRays(engine, *trials, *raysPerTrial)
	runVisibilityAndCost(engine)
}

// runDeterministicRays reproduces the engine's canonical correctness check:
// a downward ray from (0,0,1) through the plane at z=0 should always report
// hit=true at distance 1, regardless of trial or batch size.
func runDeterministicRays(engine *rayengine.RayEngine, trials, raysPerTrial int) {
	origin := geom.New(0, 0, 1)
	dir := geom.New(0, 0, -1)

	origins := make([]geom.Vec, raysPerTrial)
	dirs := make([]geom.Vec, raysPerTrial)
	for i := range origins {
		origins[i] = origin
		dirs[i] = dir
	}

	start := time.Now()
	failures := 0
	for t := 0; t < trials; t++ {
		results, err := engine.FireManyIntersect(origins, dirs, nil)
		if err != nil {
			log.Fatalf("trial %d: %v", t, err)
		}
		for _, r := range results {
			if !r.Hit || math.Abs(float64(r.Distance)-1.0) > 1e-4 {
				failures++
			}
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("fired %d rays across %d trials in %s: %d failures\n",
		trials*raysPerTrial, trials, elapsed.Round(time.Millisecond), failures)
}

// runVisibilityAndCost builds a small visibility graph over six points
// scattered above the plane and derives both cost overlays from it.
func runVisibilityAndCost(engine *rayengine.RayEngine) {
	points := []geom.Vec{
		geom.New(0, 0, 0.1),
		geom.New(3, 0, 0.1),
		geom.New(0, 3, 0.2),
		geom.New(-3, 0, 0.3),
		geom.New(0, -3, 0.1),
		geom.New(2, 2, 0.5),
	}

	g := visibility.AllToAllUndirected(engine, points, visibility.DefaultHeight, -1)
	fmt.Printf("visibility graph: %d nodes, %d edges\n", g.NodeCount(), g.EdgeCount())

	if err := cost.CalculateCrossSlope(g); err != nil {
		log.Fatalf("cross slope: %v", err)
	}
	if err := cost.CalculateEnergyExpenditure(g); err != nil {
		log.Fatalf("energy expenditure: %v", err)
	}

	sums := aggregate.Compute(g, aggregate.Sum, true)
	for id, s := range sums {
		fmt.Printf("node %d: outgoing distance sum = %.3f\n", id, s)
	}
}
