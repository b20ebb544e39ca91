// Package homest implements robust homography estimation from 2D point
// correspondences. A batch of candidate models is fitted from random minimal
// samples, every candidate is scored against all correspondences, and the
// winner is selected either by maximum inlier count (RANSAC) or by minimum
// median residual (LMedS).
package homest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cwbudde/homfit/internal/geom"
)

// Real constrains the scalar type of the estimation pipeline. The precision
// only affects the epsilon guard used during homogeneous normalization.
type Real interface {
	~float32 | ~float64
}

// epsilon returns the machine epsilon for the pipeline scalar type.
func epsilon[T Real]() T {
	var t T
	switch any(t).(type) {
	case float32:
		return T(1.1920929e-07)
	default:
		return T(2.220446049250313e-16)
	}
}

// minSamplePoints is the size of the minimal sample needed to fit one
// homography candidate.
const minSamplePoints = 4

// Method selects the robust estimator used to pick the winning candidate.
type Method string

const (
	MethodRANSAC Method = "ransac"
	MethodLMedS  Method = "lmeds"
)

// ParseMethod maps user input to a known method.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case MethodRANSAC, MethodLMedS:
		return Method(name), nil
	case "":
		return MethodRANSAC, nil
	default:
		return "", fmt.Errorf("%w: unknown method %q", ErrInvalidInput, name)
	}
}

// Matches holds a correspondence set as four parallel coordinate sequences.
// All four slices must have equal length. The data is read-only for the
// duration of an estimation call.
type Matches[T Real] struct {
	XSrc []T
	YSrc []T
	XDst []T
	YDst []T
}

// Len returns the number of correspondences.
func (m Matches[T]) Len() int {
	return len(m.XSrc)
}

// Validate checks the shape invariants of the correspondence set.
func (m Matches[T]) Validate() error {
	n := len(m.XSrc)
	if len(m.YSrc) != n || len(m.XDst) != n || len(m.YDst) != n {
		return fmt.Errorf("%w: coordinate sequences have mismatched lengths (%d, %d, %d, %d)",
			ErrInvalidInput, len(m.XSrc), len(m.YSrc), len(m.XDst), len(m.YDst))
	}
	if n < minSamplePoints {
		return fmt.Errorf("%w: need at least %d correspondences, got %d",
			ErrInvalidInput, minSamplePoints, n)
	}
	return nil
}

// Options configures a single estimation call.
type Options struct {
	// Iterations is the number of independent random trials. Must be >= 1.
	Iterations int

	// InlierThreshold is the residual below which a correspondence counts
	// as an inlier in RANSAC mode. Must be > 0.
	InlierThreshold float64

	// Samples supplies the precomputed sample indices: minSamplePoints
	// entries per iteration, each in [0, nsamples). When nil, samples are
	// drawn deterministically from Seed.
	Samples []int

	// Seed seeds the sample generator when Samples is nil.
	Seed int64

	// Workers bounds the parallelism of each pipeline stage.
	// Zero means one worker per CPU.
	Workers int
}

// validate checks option invariants against a correspondence count.
func (o Options) validate(nsamples int) error {
	if o.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidInput, o.Iterations)
	}
	if o.InlierThreshold <= 0 {
		return fmt.Errorf("%w: inlier threshold must be > 0, got %g", ErrInvalidInput, o.InlierThreshold)
	}
	if o.Samples != nil {
		if len(o.Samples) < o.Iterations*minSamplePoints {
			return fmt.Errorf("%w: need %d sample indices for %d iterations, got %d",
				ErrInvalidInput, o.Iterations*minSamplePoints, o.Iterations, len(o.Samples))
		}
		for _, idx := range o.Samples[:o.Iterations*minSamplePoints] {
			if idx < 0 || idx >= nsamples {
				return fmt.Errorf("%w: sample index %d out of range [0, %d)", ErrInvalidInput, idx, nsamples)
			}
		}
	}
	return nil
}

// DrawSamples generates minSamplePoints distinct correspondence indices per
// iteration using a deterministic source. The same seed always yields the
// same sequence, which makes whole estimation runs reproducible.
func DrawSamples(nsamples, iterations int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	out := make([]int, 0, iterations*minSamplePoints)
	for it := 0; it < iterations; it++ {
		out = append(out, rng.Perm(nsamples)[:minSamplePoints]...)
	}
	return out
}

// StageTimings records wall-clock durations of the pipeline stages.
type StageTimings struct {
	Build    time.Duration `json:"build"`
	Evaluate time.Duration `json:"evaluate"`
	Reduce   time.Duration `json:"reduce"`
	Select   time.Duration `json:"select"`
}

// Result is the outcome of one estimation call.
type Result struct {
	// H is the winning homography, scaled so its bottom-right element is 1
	// whenever that element is non-zero.
	H geom.Homography `json:"h"`

	// Inliers is the number of correspondences classified as inliers under H.
	Inliers int `json:"inliers"`

	Method     Method `json:"method"`
	Iterations int    `json:"iterations"`
	NSamples   int    `json:"nsamples"`

	// BestIter is the trial whose candidate won the selection.
	BestIter int `json:"bestIter"`

	// MinMedian is the winning median residual. LMedS only.
	MinMedian float64 `json:"minMedian,omitempty"`

	Timings StageTimings `json:"timings"`
}

// Estimator estimates a homography from a correspondence set.
type Estimator interface {
	Estimate(m Matches[float64], method Method, opts Options) (*Result, error)
}
