package rayengine

import (
	"math"
	"testing"

	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/mesh"
)

func flatPlaneEngine(t *testing.T, precise bool) *RayEngine {
	t.Helper()
	plane, err := mesh.New(0, "ground", []float32{
		-10, -10, 0,
		10, -10, 0,
		10, 10, 0,
		-10, 10, 0,
	}, []uint32{0, 1, 2, 0, 2, 3}, geom.NewEulerRotation(0, 0, 0))
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	engine, err := NewFromMeshes([]*mesh.MeshInfo{plane}, precise)
	if err != nil {
		t.Fatalf("NewFromMeshes: %v", err)
	}
	return engine
}

// TestFlatPlaneScenario is spec.md's concrete scenario 1: a ray straight
// down through a flat plane at z=0 from (0,0,1) must hit at distance 1.
func TestFlatPlaneScenario(t *testing.T) {
	for _, precise := range []bool{false, true} {
		engine := flatPlaneEngine(t, precise)
		defer engine.Release()

		hit := engine.Intersect(geom.New(0, 0, 1), geom.New(0, 0, -1), math.Inf(1))
		if !hit.Hit {
			t.Fatalf("precise=%v: expected hit", precise)
		}
		if math.Abs(float64(hit.Distance)-1.0) > 1e-4 {
			t.Errorf("precise=%v: distance = %v, want ~1", precise, hit.Distance)
		}
		if hit.MeshID != 0 {
			t.Errorf("precise=%v: mesh id = %d, want 0", precise, hit.MeshID)
		}
	}
}

func TestIntersectMissesAboveButNotThroughPlane(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	hit := engine.Intersect(geom.New(0, 0, 1), geom.New(0, 0, 1), math.Inf(1))
	if hit.Hit {
		t.Fatal("expected miss, ray points away from the plane")
	}

	hit = engine.Intersect(geom.New(100, 100, 1), geom.New(0, 0, -1), math.Inf(1))
	if hit.Hit {
		t.Fatal("expected miss, ray is outside the plane's footprint")
	}
}

// TestOcclusionAgreesWithIntersectDistance is spec.md's invariant:
// fire_occlusion(t_max) must agree with intersect(...).distance <= t_max.
func TestOcclusionAgreesWithIntersectDistance(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	origin, dir := geom.New(0, 0, 1), geom.New(0, 0, -1)
	hit := engine.Intersect(origin, dir, math.Inf(1))
	if !hit.Hit {
		t.Fatal("expected a hit to compare t_max thresholds against")
	}

	cases := []struct {
		tMax           float64
		wantOccludable bool
	}{
		{tMax: 0.5, wantOccludable: false},                 // short of the hit
		{tMax: float64(hit.Distance) + 1e-3, wantOccludable: true}, // past the hit
		{tMax: 100, wantOccludable: true},
	}
	for _, c := range cases {
		occluded := engine.FireOcclusion(origin, dir, c.tMax)
		wantDistanceWithin := float64(hit.Distance) <= c.tMax
		if occluded != wantDistanceWithin {
			t.Errorf("t_max=%v: FireOcclusion=%v, want %v (distance %v <= t_max)", c.tMax, occluded, wantDistanceWithin, hit.Distance)
		}
		if occluded != c.wantOccludable {
			t.Errorf("t_max=%v: FireOcclusion=%v, want %v", c.tMax, occluded, c.wantOccludable)
		}
	}
}

func TestFireManyIntersectPreservesInputOrder(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	n := 2000
	origins := make([]geom.Vec, n)
	dirs := make([]geom.Vec, n)
	for i := range origins {
		// Alternate hit/miss so a shuffled or merged-out-of-order result
		// would be immediately detectable by position.
		if i%2 == 0 {
			origins[i] = geom.New(0, 0, 1)
			dirs[i] = geom.New(0, 0, -1)
		} else {
			origins[i] = geom.New(1000, 1000, 1)
			dirs[i] = geom.New(0, 0, -1)
		}
	}

	results, err := engine.FireManyIntersect(origins, dirs, nil)
	if err != nil {
		t.Fatalf("FireManyIntersect: %v", err)
	}
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	for i, r := range results {
		wantHit := i%2 == 0
		if r.Hit != wantHit {
			t.Fatalf("result[%d].Hit = %v, want %v (order not preserved)", i, r.Hit, wantHit)
		}
	}
}

func TestFireManyIntersectRejectsMismatchedLengths(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	_, err := engine.FireManyIntersect([]geom.Vec{geom.New(0, 0, 1)}, nil, nil)
	if err == nil {
		t.Fatal("expected error for mismatched origin/direction lengths")
	}
}

func TestFireManyOcclusionMatchesFireOcclusion(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	origins := []geom.Vec{geom.New(0, 0, 1), geom.New(1000, 1000, 1)}
	dirs := []geom.Vec{geom.New(0, 0, -1), geom.New(0, 0, -1)}

	results, err := engine.FireManyOcclusion(origins, dirs, nil)
	if err != nil {
		t.Fatalf("FireManyOcclusion: %v", err)
	}
	for i := range origins {
		want := engine.FireOcclusion(origins[i], dirs[i], math.Inf(1))
		if results[i] != want {
			t.Errorf("result[%d] = %v, want %v", i, results[i], want)
		}
	}
}
