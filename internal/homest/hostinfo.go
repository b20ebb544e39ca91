package homest

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HostInfo describes the host the CPU backend dispatches to.
type HostInfo struct {
	Arch     string   `json:"arch"`
	Workers  int      `json:"workers"`
	Features []string `json:"features,omitempty"`
}

// Host reports the parallelism and relevant SIMD capabilities of the
// current machine.
func Host() HostInfo {
	var features []string
	if cpu.X86.HasSSE42 {
		features = append(features, "sse4.2")
	}
	if cpu.X86.HasAVX2 {
		features = append(features, "avx2")
	}
	if cpu.X86.HasAVX512F {
		features = append(features, "avx512f")
	}
	if cpu.ARM64.HasASIMD {
		features = append(features, "neon")
	}
	return HostInfo{
		Arch:     runtime.GOARCH,
		Workers:  runtime.NumCPU(),
		Features: features,
	}
}
