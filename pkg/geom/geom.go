// Package geom provides the small set of 3-D vector and rotation helpers
// shared by the mesh, ray-engine, cost, and visibility packages.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a 3-D coordinate or direction.
type Vec = r3.Vec

// New constructs a Vec from three scalars.
func New(x, y, z float64) Vec { return Vec{X: x, Y: y, Z: z} }

// HorizontalAngle returns the signed angle in radians, in the X-Y plane,
// between the horizontal projections of a and b, measured from a to b.
// Used by the cross-slope algorithm to rank neighbor directions by how
// close to perpendicular they are to a reference direction.
func HorizontalAngle(a, b Vec) float64 {
	return math.Atan2(a.X*b.Y-a.Y*b.X, a.X*b.X+a.Y*b.Y)
}

// HorizontalLength returns the length of v's projection onto the X-Y plane.
func HorizontalLength(v Vec) float64 {
	return math.Hypot(v.X, v.Y)
}

// EulerRotation builds a rotation that applies, in order, a rotation of rx
// degrees about the X axis, then ry about Y, then rz about Z. It is used to
// express the Y-up <-> Z-up conversion MeshInfo applies at load time.
type EulerRotation struct {
	rx, ry, rz r3.Rotation
	identity   bool
}

// NewEulerRotation builds an EulerRotation from angles in degrees.
func NewEulerRotation(rxDeg, ryDeg, rzDeg float64) EulerRotation {
	if rxDeg == 0 && ryDeg == 0 && rzDeg == 0 {
		return EulerRotation{identity: true}
	}
	return EulerRotation{
		rx: r3.NewRotation(rxDeg*math.Pi/180, Vec{X: 1}),
		ry: r3.NewRotation(ryDeg*math.Pi/180, Vec{Y: 1}),
		rz: r3.NewRotation(rzDeg*math.Pi/180, Vec{Z: 1}),
	}
}

// Apply rotates v by the Euler rotation.
func (e EulerRotation) Apply(v Vec) Vec {
	if e.identity {
		return v
	}
	v = e.rx.Rotate(v)
	v = e.ry.Rotate(v)
	v = e.rz.Rotate(v)
	return v
}

// IsIdentity reports whether the rotation is a no-op, letting callers skip
// a pass over the vertex buffer entirely.
func (e EulerRotation) IsIdentity() bool { return e.identity }

// RoundKey rounds each component of v to decimals fractional digits and
// returns a hashable, quantized key. Equality on the returned value is the
// Graph package's node-identity rule: two coordinates are the same node
// iff they round to the same key.
func RoundKey(v Vec, decimals int) [3]int64 {
	scale := math.Pow(10, float64(decimals))
	return [3]int64{
		roundToInt64(v.X * scale),
		roundToInt64(v.Y * scale),
		roundToInt64(v.Z * scale),
	}
}

// roundToInt64 rounds half to even, matching the source's quantization
// policy so that keys agree with equality regardless of sign.
func roundToInt64(f float64) int64 {
	return int64(math.RoundToEven(f))
}
