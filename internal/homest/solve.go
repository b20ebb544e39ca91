package homest

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/homfit/internal/geom"
)

// dltScratch holds the per-worker linear-system workspace so parallel build
// workers never share mutable state.
type dltScratch struct {
	a   *mat.Dense // 2*minSamplePoints x 9 homogeneous system
	svd mat.SVD
	v   mat.Dense
}

func newDLTScratch() *dltScratch {
	return &dltScratch{a: mat.NewDense(2*minSamplePoints, 9, nil)}
}

// pointNorm is a similarity transform conditioning a point set: centroid at
// the origin, mean distance sqrt(2).
type pointNorm struct {
	cx, cy, s float64
}

func normalizePoints(xs, ys *[minSamplePoints]float64) pointNorm {
	var cx, cy float64
	for i := 0; i < minSamplePoints; i++ {
		cx += xs[i]
		cy += ys[i]
	}
	cx /= minSamplePoints
	cy /= minSamplePoints

	var meanDist float64
	for i := 0; i < minSamplePoints; i++ {
		meanDist += math.Hypot(xs[i]-cx, ys[i]-cy)
	}
	meanDist /= minSamplePoints

	s := 1.0
	if meanDist > 0 {
		s = math.Sqrt2 / meanDist
	}
	return pointNorm{cx: cx, cy: cy, s: s}
}

func (n pointNorm) apply(x, y float64) (float64, float64) {
	return n.s * (x - n.cx), n.s * (y - n.cy)
}

// transform returns the normalization as a homography.
func (n pointNorm) transform() geom.Homography {
	return geom.Homography{
		n.s, 0, -n.s * n.cx,
		0, n.s, -n.s * n.cy,
		0, 0, 1,
	}
}

// inverse returns the inverse of the normalization as a homography.
func (n pointNorm) inverse() geom.Homography {
	return geom.Homography{
		1 / n.s, 0, n.cx,
		0, 1 / n.s, n.cy,
		0, 0, 1,
	}
}

// fitHomography fits one candidate model from a minimal sample using the
// direct linear transform: both point sets are conditioned, the 8x9
// homogeneous system is assembled, and its null-space vector is extracted
// from the last right singular vector. A degenerate (e.g. collinear) sample
// yields an ill-conditioned system and therefore a low-quality candidate,
// never an error; selection naturally discounts it. The rare SVD
// non-convergence falls back to the identity transform for the same reason.
func (sc *dltScratch) fitHomography(sx, sy, dx, dy *[minSamplePoints]float64) geom.Homography {
	srcNorm := normalizePoints(sx, sy)
	dstNorm := normalizePoints(dx, dy)

	for i := 0; i < minSamplePoints; i++ {
		x, y := srcNorm.apply(sx[i], sy[i])
		u, v := dstNorm.apply(dx[i], dy[i])

		sc.a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		sc.a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	if !sc.svd.Factorize(sc.a, mat.SVDFullV) {
		return geom.IdentityHomography()
	}
	sc.svd.VTo(&sc.v)

	var hn geom.Homography
	for k := 0; k < 9; k++ {
		hn[k] = sc.v.At(k, 8)
	}

	// Undo the conditioning: H = Tdst^-1 * Hn * Tsrc.
	return dstNorm.inverse().Mul(hn).Mul(srcNorm.transform())
}
