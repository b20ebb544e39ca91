package homest

import "math"

// residual computes the forward reprojection distance of one correspondence
// under the candidate stored at h[0:9]. The homogeneous denominator is
// guarded by the machine epsilon of the scalar type so near-vanishing
// denominators degrade into large residuals instead of dividing by zero.
func residual[T Real](h []T, x, y, u, v T) T {
	w := h[6]*x + h[7]*y + h[8]
	eps := epsilon[T]()
	if w >= 0 && w < eps {
		w = eps
	} else if w < 0 && w > -eps {
		w = -eps
	}
	px := (h[0]*x + h[1]*y + h[2]) / w
	py := (h[3]*x + h[4]*y + h[5]) / w
	dx := float64(px - u)
	dy := float64(py - v)
	return T(math.Sqrt(dx*dx + dy*dy))
}

// evalRANSACBlock scores every iteration of one block against all
// correspondences, thresholding residuals into per-iteration inlier counts,
// and records the block-local arg-max. Iterating in ascending order with a
// strict comparison keeps the lowest iteration index on ties.
func evalRANSACBlock[T Real](block int, h []T, m Matches[T], thr T, iterations int, counts, idx []uint32) {
	lo := block * blockSize
	hi := min(lo+blockSize, iterations)
	nsamples := m.Len()

	var bestCount uint32
	bestIter := uint32(lo)
	for it := lo; it < hi; it++ {
		row := h[it*9 : it*9+9]
		var inliers uint32
		for j := 0; j < nsamples; j++ {
			if residual(row, m.XSrc[j], m.YSrc[j], m.XDst[j], m.YDst[j]) < thr {
				inliers++
			}
		}
		if inliers > bestCount {
			bestCount = inliers
			bestIter = uint32(it)
		}
	}
	counts[block] = bestCount
	idx[block] = bestIter
}

// evalLMedSBlock fills the residual matrix rows owned by one block. Every
// (iteration, point) pair writes a disjoint location, so blocks and the
// iterations within them never interfere.
func evalLMedSBlock[T Real](block int, h []T, m Matches[T], iterations int, errMat []T) {
	lo := block * blockSize
	hi := min(lo+blockSize, iterations)
	nsamples := m.Len()

	for it := lo; it < hi; it++ {
		row := h[it*9 : it*9+9]
		out := errMat[it*nsamples : (it+1)*nsamples]
		for j := 0; j < nsamples; j++ {
			out[j] = residual(row, m.XSrc[j], m.YSrc[j], m.XDst[j], m.YDst[j])
		}
	}
}

// recountInliersBlock classifies one block of correspondences against a
// single homography and returns the partial inlier count for that block.
// Used by the LMedS post-selection recount.
func recountInliersBlock[T Real](block int, h []T, m Matches[T], thr T) uint32 {
	lo := block * blockSize
	hi := min(lo+blockSize, m.Len())

	var inliers uint32
	for j := lo; j < hi; j++ {
		if residual(h, m.XSrc[j], m.YSrc[j], m.XDst[j], m.YDst[j]) <= thr {
			inliers++
		}
	}
	return inliers
}
