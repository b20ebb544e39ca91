package homest

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/homfit/internal/geom"
)

// CPUEstimator runs the estimation pipeline as data-parallel stages over a
// worker pool, using the same block geometry as accelerator dispatch.
type CPUEstimator struct {
	workers int
}

// NewCPUEstimator creates a CPU-based estimator using one worker per CPU.
func NewCPUEstimator() *CPUEstimator {
	return &CPUEstimator{}
}

// Estimate runs the full pipeline in double precision.
func (e *CPUEstimator) Estimate(m Matches[float64], method Method, opts Options) (*Result, error) {
	if opts.Workers == 0 {
		opts.Workers = e.workers
	}
	return computeH(m, method, opts)
}

// EstimateSingle runs the pipeline in single precision. Only the epsilon
// guard of the homogeneous normalization differs from the double path.
func EstimateSingle(m Matches[float32], method Method, opts Options) (*Result, error) {
	return computeH(m, method, opts)
}

// buffers holds the transient per-call workspace: the candidate bank, the
// residual matrix, and the reduction intermediates. Instances are recycled
// through a pool and never outlive a call.
type buffers[T Real] struct {
	h       []T      // iterations x 9 candidate bank
	errMat  []T      // iterations x nsamples residuals (LMedS only)
	medians []T      // per-block minimum medians
	counts  []uint32 // per-block inlier counts / recount partials
	idx     []uint32 // per-block iteration indices
}

var (
	buffersPool64 = sync.Pool{New: func() any { return new(buffers[float64]) }}
	buffersPool32 = sync.Pool{New: func() any { return new(buffers[float32]) }}
)

// getBuffers leases a workspace from the pool matching the scalar type.
// The release hook must run on every exit path of the call.
func getBuffers[T Real]() (*buffers[T], func()) {
	var t T
	switch any(t).(type) {
	case float32:
		b := buffersPool32.Get().(*buffers[float32])
		return any(b).(*buffers[T]), func() { buffersPool32.Put(b) }
	default:
		b := buffersPool64.Get().(*buffers[float64])
		return any(b).(*buffers[T]), func() { buffersPool64.Put(b) }
	}
}

func grow[S any](s []S, n int) []S {
	if cap(s) < n {
		return make([]S, n)
	}
	return s[:n]
}

// reserve sizes the workspace for one call, reusing capacity from earlier
// calls where possible.
func (b *buffers[T]) reserve(iterations, nsamples, nBlocks int, lmeds bool) {
	b.h = grow(b.h, iterations*9)
	if lmeds {
		b.errMat = grow(b.errMat, iterations*nsamples)
		b.medians = grow(b.medians, nBlocks)
	}
	// The recount partials reuse the counts buffer, so it must cover both
	// iteration blocks and point blocks.
	blocks := max(nBlocks, divup(nsamples, blockSize))
	b.counts = grow(b.counts, blocks)
	b.idx = grow(b.idx, nBlocks)
}

// parallelBlocks dispatches fn over block indices [0, nBlocks) using at most
// workers goroutines. Each invocation owns disjoint output locations, so the
// stage is lock-free; the call returns only after every block completed,
// forming a full barrier between stages.
func parallelBlocks(nBlocks, workers int, fn func(worker, block int)) {
	if workers > nBlocks {
		workers = nBlocks
	}
	if workers <= 1 {
		for b := 0; b < nBlocks; b++ {
			fn(0, b)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				b := int(next.Add(1)) - 1
				if b >= nBlocks {
					return
				}
				fn(worker, b)
			}
		}(w)
	}
	wg.Wait()
}

// buildCandidates fits one homography candidate per iteration from its
// minimal sample. Workers keep private linear-system scratch.
func buildCandidates[T Real](h []T, m Matches[T], samples []int, iterations, workers int) {
	nBlocks := divup(iterations, blockSize)
	scratches := make([]*dltScratch, max(workers, 1))

	parallelBlocks(nBlocks, workers, func(worker, block int) {
		sc := scratches[worker]
		if sc == nil {
			sc = newDLTScratch()
			scratches[worker] = sc
		}

		lo := block * blockSize
		hi := min(lo+blockSize, iterations)
		var sx, sy, dx, dy [minSamplePoints]float64
		for it := lo; it < hi; it++ {
			base := it * minSamplePoints
			for k := 0; k < minSamplePoints; k++ {
				j := samples[base+k]
				sx[k] = float64(m.XSrc[j])
				sy[k] = float64(m.YSrc[j])
				dx[k] = float64(m.XDst[j])
				dy[k] = float64(m.YDst[j])
			}

			hom := sc.fitHomography(&sx, &sy, &dx, &dy)
			row := h[it*9 : it*9+9]
			for k := 0; k < 9; k++ {
				row[k] = T(hom[k])
			}
		}
	})
}

// computeH is the estimation pipeline: BUILD -> EVALUATE -> {MEDIAN_REDUCE ->
// RECOUNT_INLIERS | MAX_REDUCE} -> COPY_OUT. Each stage is a full barrier and
// exactly one selection path executes per call. All transient buffers are
// leased at the top and returned on every exit path.
func computeH[T Real](m Matches[T], method Method, opts Options) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	nsamples := m.Len()
	if err := opts.validate(nsamples); err != nil {
		return nil, err
	}
	if method != MethodRANSAC && method != MethodLMedS {
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidInput, method)
	}

	samples := opts.Samples
	if samples == nil {
		samples = DrawSamples(nsamples, opts.Iterations, opts.Seed)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	iterations := opts.Iterations
	nBlocks := divup(iterations, blockSize)
	lmeds := method == MethodLMedS

	buf, release := getBuffers[T]()
	defer release()
	buf.reserve(iterations, nsamples, nBlocks, lmeds)

	res := &Result{Method: method, Iterations: iterations, NSamples: nsamples}

	start := time.Now()
	buildCandidates(buf.h, m, samples, iterations, workers)
	res.Timings.Build = time.Since(start)

	start = time.Now()
	thr := T(opts.InlierThreshold)
	if lmeds {
		parallelBlocks(nBlocks, workers, func(_, block int) {
			evalLMedSBlock(block, buf.h, m, iterations, buf.errMat)
		})
	} else {
		parallelBlocks(nBlocks, workers, func(_, block int) {
			evalRANSACBlock(block, buf.h, m, thr, iterations, buf.counts, buf.idx)
		})
	}
	res.Timings.Evaluate = time.Since(start)

	start = time.Now()
	var bestIter uint32
	var inliers uint32
	if lmeds {
		parallelBlocks(nBlocks, workers, func(_, block int) {
			medianBlock(block, buf.errMat, iterations, nsamples, buf.medians, buf.idx)
		})
		minMedian, iterIdx := findMinMedian(buf.medians[:nBlocks], buf.idx[:nBlocks])
		bestIter = iterIdx
		res.MinMedian = float64(minMedian)
		res.Timings.Reduce = time.Since(start)

		// Post-selection recount: the winning median calibrates the inlier
		// threshold, not the caller-supplied one.
		start = time.Now()
		if int(bestIter) >= iterations {
			return nil, fmt.Errorf("homest: selected candidate %d out of range [0, %d)", bestIter, iterations)
		}
		row := buf.h[int(bestIter)*9 : int(bestIter)*9+9]
		recountThr := T(lmedsInlierThreshold(res.MinMedian, nsamples))
		pointBlocks := divup(nsamples, blockSize)
		parallelBlocks(pointBlocks, workers, func(_, block int) {
			buf.counts[block] = recountInliersBlock(block, row, m, recountThr)
		})
		inliers = sumUint32(buf.counts[:pointBlocks])
	} else {
		best, iterIdx := argmaxUint32(buf.counts[:nBlocks], buf.idx[:nBlocks])
		bestIter = iterIdx
		inliers = best
		res.Timings.Reduce = time.Since(start)
		start = time.Now()
	}

	if int(bestIter) >= iterations {
		return nil, fmt.Errorf("homest: selected candidate %d out of range [0, %d)", bestIter, iterations)
	}

	var h geom.Homography
	row := buf.h[int(bestIter)*9 : int(bestIter)*9+9]
	for k := 0; k < 9; k++ {
		h[k] = float64(row[k])
	}
	res.H = h.Normalized()
	res.Inliers = int(inliers)
	res.BestIter = int(bestIter)
	res.Timings.Select = time.Since(start)

	slog.Debug("estimation complete",
		"method", method,
		"iterations", iterations,
		"nsamples", nsamples,
		"best_iter", res.BestIter,
		"inliers", res.Inliers,
	)

	return res, nil
}
