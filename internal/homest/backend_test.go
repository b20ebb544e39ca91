package homest

import (
	"errors"
	"testing"
)

func TestNormalizeBackend(t *testing.T) {
	tests := []struct {
		input string
		want  Backend
	}{
		{"", BackendCPU},
		{"cpu", BackendCPU},
		{"CPU", BackendCPU},
		{"gpu", BackendOpenCL},
		{"opencl", BackendOpenCL},
		{"cl", BackendOpenCL},
		{" OpenCL ", BackendOpenCL},
		{"cuda", Backend("cuda")},
	}

	for _, tt := range tests {
		if got := NormalizeBackend(tt.input); got != tt.want {
			t.Errorf("NormalizeBackend(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewEstimatorForBackendCPU(t *testing.T) {
	est, cleanup, err := NewEstimatorForBackend("cpu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if est == nil {
		t.Fatal("expected estimator, got nil")
	}
}

func TestNewEstimatorForBackendUnknown(t *testing.T) {
	_, cleanup, err := NewEstimatorForBackend("tpu")
	defer cleanup()

	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNewEstimatorForBackendOpenCL(t *testing.T) {
	_, cleanup, err := NewEstimatorForBackend("opencl")
	defer cleanup()

	// Without the gpu build tag the backend is unavailable; with it, the
	// estimator is still pending implementation. Either way an error is
	// expected and the cleanup hook must be safe to call.
	if err == nil {
		t.Error("expected an error for the OpenCL backend")
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"ransac", MethodRANSAC, false},
		{"lmeds", MethodLMedS, false},
		{"", MethodRANSAC, false},
		{"huber", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMethod(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseMethod(%q): expected ErrInvalidInput, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMethod(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
