package rayengine

import (
	"math"

	"github.com/azybler/meshvis/pkg/geom"
)

const epsilon = 1e-7

// intersectStandard is the backend's native single-precision
// Möller-Trumbore test.
func intersectStandard(origin, dir geom.Vec, v0, v1, v2 geom.Vec, tMax float64) (hit bool, t float64) {
	ox, oy, oz := float32(origin.X), float32(origin.Y), float32(origin.Z)
	dx, dy, dz := float32(dir.X), float32(dir.Y), float32(dir.Z)
	v0x, v0y, v0z := float32(v0.X), float32(v0.Y), float32(v0.Z)
	v1x, v1y, v1z := float32(v1.X), float32(v1.Y), float32(v1.Z)
	v2x, v2y, v2z := float32(v2.X), float32(v2.Y), float32(v2.Z)

	e1x, e1y, e1z := v1x-v0x, v1y-v0y, v1z-v0z
	e2x, e2y, e2z := v2x-v0x, v2y-v0y, v2z-v0z

	// pvec = dir x e2
	pvx := dy*e2z - dz*e2y
	pvy := dz*e2x - dx*e2z
	pvz := dx*e2y - dy*e2x

	det := e1x*pvx + e1y*pvy + e1z*pvz
	if det > -float32(epsilon) && det < float32(epsilon) {
		return false, 0
	}
	invDet := 1 / det

	tvx, tvy, tvz := ox-v0x, oy-v0y, oz-v0z
	u := (tvx*pvx + tvy*pvy + tvz*pvz) * invDet
	if u < 0 || u > 1 {
		return false, 0
	}

	// qvec = tvec x e1
	qvx := tvy*e1z - tvz*e1y
	qvy := tvz*e1x - tvx*e1z
	qvz := tvx*e1y - tvy*e1x

	v := (dx*qvx + dy*qvy + dz*qvz) * invDet
	if v < 0 || u+v > 1 {
		return false, 0
	}

	tt := (e2x*qvx + e2y*qvy + e2z*qvz) * invDet
	if tt < float32(epsilon) || float64(tt) > tMax {
		return false, 0
	}
	return true, float64(tt)
}

// intersectPrecise is the double-precision watertight test (Woop et al.,
// "Watertight Ray/Triangle Intersection"): the ray direction's dominant
// axis is sheared to the local z axis so that the edge tests become
// integer-stable sign comparisons, eliminating the standard test's false
// misses/hits at silhouette edges of near-axis-aligned geometry. All
// per-ray state (dominant axis, shear coefficients) is function-local,
// recomputed per call rather than memoized across rays.
func intersectPrecise(origin, dir geom.Vec, v0, v1, v2 geom.Vec, tMax float64) (hit bool, t float64) {
	// Dominant axis of the ray direction.
	ax, ay, az := math.Abs(dir.X), math.Abs(dir.Y), math.Abs(dir.Z)
	kz := 2
	if ax > ay && ax > az {
		kz = 0
	} else if ay > az {
		kz = 1
	}
	kx := (kz + 1) % 3
	ky := (kz + 2) % 3

	d := [3]float64{dir.X, dir.Y, dir.Z}
	if d[kz] < 0 {
		kx, ky = ky, kx
	}

	sx := d[kx] / d[kz]
	sy := d[ky] / d[kz]
	sz := 1 / d[kz]

	o := [3]float64{origin.X, origin.Y, origin.Z}
	va := [3]float64{v0.X - o[0], v0.Y - o[1], v0.Z - o[2]}
	vb := [3]float64{v1.X - o[0], v1.Y - o[1], v1.Z - o[2]}
	vc := [3]float64{v2.X - o[0], v2.Y - o[1], v2.Z - o[2]}

	axs := va[kx] - sx*va[kz]
	ays := va[ky] - sy*va[kz]
	bxs := vb[kx] - sx*vb[kz]
	bys := vb[ky] - sy*vb[kz]
	cxs := vc[kx] - sx*vc[kz]
	cys := vc[ky] - sy*vc[kz]

	u := cxs*bys - cys*bxs
	v := axs*cys - ays*cxs
	w := bxs*ays - bys*axs

	if (u < 0 || v < 0 || w < 0) && (u > 0 || v > 0 || w > 0) {
		return false, 0
	}

	det := u + v + w
	if det == 0 {
		return false, 0
	}

	az0 := sz * va[kz]
	bz0 := sz * vb[kz]
	cz0 := sz * vc[kz]
	tScaled := u*az0 + v*bz0 + w*cz0

	if det < 0 {
		if tScaled >= 0 || tScaled < tMax*det {
			return false, 0
		}
	} else {
		if tScaled <= 0 || tScaled > tMax*det {
			return false, 0
		}
	}

	rcpDet := 1 / det
	tt := tScaled * rcpDet
	if tt <= epsilon {
		return false, 0
	}
	return true, tt
}

// intersectTriangle dispatches to the precise or standard routine.
func intersectTriangle(precise bool, origin, dir geom.Vec, v0, v1, v2 geom.Vec, tMax float64) (bool, float64) {
	if precise {
		return intersectPrecise(origin, dir, v0, v1, v2, tMax)
	}
	return intersectStandard(origin, dir, v0, v1, v2, tMax)
}
