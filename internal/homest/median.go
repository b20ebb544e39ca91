package homest

import "slices"

// LMedS recount calibration. The robust standard deviation is derived from
// the winning median residual as sigma = 1.4826 * (1 + 5/(n-4)) * median and
// a correspondence counts as an inlier within lmedsOutlierScale sigmas.
// Constants follow Rousseeuw's classical LMedS formulation; treat them as
// calibration parameters when matching reference outputs.
const (
	lmedsSigmaScale   = 1.4826
	lmedsOutlierScale = 2.5
)

// lmedsInlierThreshold derives the recount threshold from the winning
// median residual.
func lmedsInlierThreshold(minMedian float64, nsamples int) float64 {
	correction := 1.0
	if nsamples > minSamplePoints {
		correction = 1.0 + 5.0/float64(nsamples-minSamplePoints)
	}
	return lmedsOutlierScale * lmedsSigmaScale * correction * minMedian
}

// medianBlock sorts the residual rows owned by one block ascending, takes
// each iteration's median, and records the block-local minimum with its
// iteration index. Ascending iteration order with a strict comparison keeps
// the lowest index on ties.
func medianBlock[T Real](block int, errMat []T, iterations, nsamples int, medians []T, idx []uint32) {
	lo := block * blockSize
	hi := min(lo+blockSize, iterations)

	first := true
	var bestMedian T
	bestIter := uint32(lo)
	for it := lo; it < hi; it++ {
		row := errMat[it*nsamples : (it+1)*nsamples]
		slices.Sort(row)

		var med T
		if nsamples%2 == 1 {
			med = row[nsamples/2]
		} else {
			med = (row[nsamples/2-1] + row[nsamples/2]) / 2
		}

		if first || med < bestMedian {
			first = false
			bestMedian = med
			bestIter = uint32(it)
		}
	}
	medians[block] = bestMedian
	idx[block] = bestIter
}

// findMinMedian reduces block-local minimum medians to the global minimum
// and its iteration index. With a single block the block result is read
// directly, skipping the second reduction level entirely.
func findMinMedian[T Real](medians []T, idx []uint32) (T, uint32) {
	if len(medians) == 1 {
		return medians[0], idx[0]
	}
	best := medians[0]
	bestIdx := idx[0]
	for b := 1; b < len(medians); b++ {
		if medians[b] < best {
			best = medians[b]
			bestIdx = idx[b]
		}
	}
	return best, bestIdx
}
