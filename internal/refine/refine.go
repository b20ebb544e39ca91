// Package refine polishes an estimated homography by minimizing the mean
// reprojection error over its inlier set with a derivative-free optimizer.
package refine

import (
	"log/slog"

	"github.com/cwbudde/homfit/internal/geom"
	"github.com/cwbudde/homfit/internal/homest"
	"github.com/cwbudde/homfit/internal/opt"
)

// Config controls the refinement search.
type Config struct {
	// Iterations and PopSize are passed through to the optimizer.
	Iterations int
	PopSize    int
	Seed       int64

	// Radius is the relative half-width of the search box around each
	// coefficient of the (scale-normalized) input homography.
	Radius float64
}

// DefaultConfig returns the refinement defaults.
func DefaultConfig() Config {
	return Config{
		Iterations: 150,
		PopSize:    30,
		Seed:       42,
		Radius:     0.05,
	}
}

// Result reports the outcome of a refinement run.
type Result struct {
	H            geom.Homography `json:"h"`
	InitialError float64         `json:"initialError"`
	FinalError   float64         `json:"finalError"`
	Inliers      int             `json:"inliers"`
	Improved     bool            `json:"improved"`
}

const minInliers = 4

// Refine searches a bounded neighborhood of h for a transform with lower
// mean reprojection error over the inliers of h. The inlier set is frozen at
// entry; the returned transform is never worse than the input on that set.
//
// The 8 free coefficients (scale fixed at the bottom-right element) are
// reparameterized into the uniform box [-1, 1]^8 because the optimizer only
// supports scalar bounds; each delta is mapped back through a per-coefficient
// span inside the objective.
func Refine(h geom.Homography, m homest.Matches[float64], inlierThr float64, optimizer opt.Optimizer, cfg Config) Result {
	res := Result{H: h}

	hn := h.Normalized()
	if hn[8] != 1 {
		// Scale element is zero; the fixed-scale parameterization does not
		// apply, return the input unchanged.
		return res
	}

	var inliers []int
	for i := range m.XSrc {
		d := hn.ReprojectionError(
			geom.Point2D{X: m.XSrc[i], Y: m.YSrc[i]},
			geom.Point2D{X: m.XDst[i], Y: m.YDst[i]},
		)
		if d < inlierThr {
			inliers = append(inliers, i)
		}
	}
	res.Inliers = len(inliers)
	if len(inliers) < minInliers {
		return res
	}

	meanError := func(cand geom.Homography) float64 {
		var sum float64
		for _, i := range inliers {
			sum += cand.ReprojectionError(
				geom.Point2D{X: m.XSrc[i], Y: m.YSrc[i]},
				geom.Point2D{X: m.XDst[i], Y: m.YDst[i]},
			)
		}
		return sum / float64(len(inliers))
	}

	res.InitialError = meanError(hn)
	res.FinalError = res.InitialError

	// Per-coefficient search spans. The additive floor keeps near-zero
	// coefficients searchable without swamping the perspective terms.
	var span [8]float64
	for i := 0; i < 8; i++ {
		mag := hn[i]
		if mag < 0 {
			mag = -mag
		}
		span[i] = cfg.Radius * (mag + 1e-3)
	}

	eval := func(delta []float64) float64 {
		cand := hn
		for i := 0; i < 8; i++ {
			cand[i] += delta[i] * span[i]
		}
		return meanError(cand)
	}

	lower := make([]float64, 8)
	upper := make([]float64, 8)
	for i := range lower {
		lower[i] = -1
		upper[i] = 1
	}

	bestDelta, bestCost := optimizer.Run(eval, lower, upper, 8)

	if bestCost < res.InitialError {
		refined := hn
		for i := 0; i < 8; i++ {
			refined[i] += bestDelta[i] * span[i]
		}
		res.H = refined
		res.FinalError = bestCost
		res.Improved = true
	}

	slog.Debug("refinement complete",
		"inliers", res.Inliers,
		"initial_error", res.InitialError,
		"final_error", res.FinalError,
		"improved", res.Improved,
	)

	return res
}
