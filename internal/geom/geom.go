// Package geom provides the geometric types shared by the estimation
// pipeline: 2D points and 3x3 projective transforms.
package geom

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Homography is a 3x3 projective transform stored row-major.
// It maps points between two 2D projective planes and is defined up to
// a non-zero scale factor.
type Homography [9]float64

// IdentityHomography returns the identity transform.
func IdentityHomography() Homography {
	return Homography{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (h Homography) At(r, c int) float64 {
	return h[r*3+c]
}

// Apply maps a point through the homography, normalizing the homogeneous
// coordinate. A vanishing denominator yields +Inf coordinates rather than
// a panic.
func (h Homography) Apply(p Point2D) Point2D {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return Point2D{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Mul returns the composition h∘g, i.e. the transform that applies g first
// and then h.
func (h Homography) Mul(g Homography) Homography {
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += h[r*3+k] * g[k*3+c]
			}
			out[r*3+c] = sum
		}
	}
	return out
}

// Normalized returns the homography scaled so that the bottom-right element
// equals 1. If that element is zero the matrix is returned unchanged.
func (h Homography) Normalized() Homography {
	if h[8] == 0 {
		return h
	}
	var out Homography
	inv := 1 / h[8]
	for i := range h {
		out[i] = h[i] * inv
	}
	return out
}

// IsFinite reports whether all coefficients are finite numbers.
func (h Homography) IsFinite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ReprojectionError returns the Euclidean distance between h(src) and dst.
func (h Homography) ReprojectionError(src, dst Point2D) float64 {
	return h.Apply(src).Distance(dst)
}
