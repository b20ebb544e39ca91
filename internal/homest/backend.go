package homest

import (
	"errors"
	"fmt"
	"strings"
)

// Backend identifies an estimator implementation.
type Backend string

const (
	BackendCPU    Backend = "cpu"
	BackendOpenCL Backend = "opencl"
)

var (
	// ErrInvalidInput is returned when the correspondence set or options
	// fail validation before any pipeline work is dispatched.
	ErrInvalidInput = errors.New("invalid estimation input")
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown estimator backend")
	// ErrBackendUnavailable indicates the backend is not available in this build.
	ErrBackendUnavailable = errors.New("estimator backend unavailable")
	// ErrBackendNotImplemented indicates the backend is known but not yet implemented.
	ErrBackendNotImplemented = errors.New("estimator backend not implemented")
)

var noopCleanup = func() {}

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return BackendCPU
	case "gpu", "opencl", "cl":
		return BackendOpenCL
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Backend {
	return []Backend{BackendCPU, BackendOpenCL}
}

// NewEstimatorForBackend constructs the requested estimator and returns an
// optional cleanup hook releasing any device resources it acquired.
func NewEstimatorForBackend(name string) (Estimator, func(), error) {
	backend := NormalizeBackend(name)

	switch backend {
	case BackendCPU:
		return NewCPUEstimator(), noopCleanup, nil
	case BackendOpenCL:
		return newOpenCLEstimator()
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
