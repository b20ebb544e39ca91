package homest

// blockSize is the number of iterations (or points) each reduction block
// owns. It mirrors the work-group geometry of accelerator dispatch so block
// counts and two-level reductions behave identically across backends.
const blockSize = 256

// divup returns ceil(a / b).
func divup(a, b int) int {
	return (a + b - 1) / b
}

// argmaxUint32 reduces block-local (count, index) pairs to the global
// arg-max. The single-block case short-circuits to a direct read; ties
// resolve to the pair with the lowest iteration index, which block ordering
// and the strict comparison below guarantee.
func argmaxUint32(counts, idx []uint32) (best uint32, bestIdx uint32) {
	if len(counts) == 1 {
		return counts[0], idx[0]
	}
	best = counts[0]
	bestIdx = idx[0]
	for b := 1; b < len(counts); b++ {
		if counts[b] > best {
			best = counts[b]
			bestIdx = idx[b]
		}
	}
	return best, bestIdx
}

// sumUint32 reduces per-block partial counts to a total. The single-block
// case is a direct read.
func sumUint32(partials []uint32) uint32 {
	if len(partials) == 1 {
		return partials[0]
	}
	var total uint32
	for _, p := range partials {
		total += p
	}
	return total
}
