//go:build gpu

package homest

import (
	"fmt"

	"github.com/cwbudde/homfit/internal/homest/gpu"
)

func newOpenCLEstimator() (Estimator, func(), error) {
	rt, err := gpu.InitOpenCL()
	if err != nil {
		return nil, noopCleanup, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	cleanup := func() {
		rt.Close()
	}

	return nil, cleanup, fmt.Errorf("%w: OpenCL backend scaffolding in place; estimator pending implementation", ErrBackendNotImplemented)
}
