//go:build !gpu

package homest

import "fmt"

func newOpenCLEstimator() (Estimator, func(), error) {
	return nil, noopCleanup, fmt.Errorf("%w: build without GPU tag", ErrBackendUnavailable)
}
