//go:build gpu

package gpu

/*
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Precision selects the floating point width the kernels are compiled for.
type Precision string

const (
	PrecisionFloat32 Precision = "float32"
	PrecisionFloat64 Precision = "float64"
)

// BuildOptions specializes a program build. Each distinct combination is
// compiled once per device and cached for the life of the process.
type BuildOptions struct {
	Precision Precision
	Defines   string
}

func (o BuildOptions) compilerFlags() string {
	flags := "-cl-std=CL1.2"
	if o.Precision == PrecisionFloat64 {
		flags += " -DUSE_DOUBLE"
	}
	if o.Defines != "" {
		flags += " " + o.Defines
	}
	return flags
}

type programKey struct {
	device C.cl_device_id
	flags  string
}

type programEntry struct {
	once    sync.Once
	program C.cl_program
	err     error
}

var (
	programMu    sync.Mutex
	programCache = map[programKey]*programEntry{}
)

// BuildProgram compiles source for the runtime's device with the given
// options, reusing a cached binary when the same (device, options) pair was
// built before. The returned program is owned by the cache; callers must not
// release it.
func BuildProgram(r *Runtime, source string, opts BuildOptions) (C.cl_program, error) {
	key := programKey{device: r.deviceID, flags: opts.compilerFlags()}

	programMu.Lock()
	entry, ok := programCache[key]
	if !ok {
		entry = &programEntry{}
		programCache[key] = entry
	}
	programMu.Unlock()

	entry.once.Do(func() {
		entry.program, entry.err = compileProgram(r, source, key.flags)
	})

	return entry.program, entry.err
}

// ReleasePrograms frees every cached program. Intended for process shutdown.
func ReleasePrograms() {
	programMu.Lock()
	defer programMu.Unlock()

	for key, entry := range programCache {
		if entry.program != nil {
			C.clReleaseProgram(entry.program)
		}
		delete(programCache, key)
	}
}

func compileProgram(r *Runtime, source, flags string) (C.cl_program, error) {
	csource := C.CString(source)
	defer C.free(unsafe.Pointer(csource))

	var status C.cl_int
	program := C.clCreateProgramWithSource(r.context, 1, &csource, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}

	cflags := C.CString(flags)
	defer C.free(unsafe.Pointer(cflags))

	status = C.clBuildProgram(program, 1, &r.deviceID, cflags, nil, nil)
	if status != C.CL_SUCCESS {
		buildLog := programBuildLog(program, r.deviceID)
		C.clReleaseProgram(program)
		return nil, fmt.Errorf("%w\nbuild log:\n%s", statusError("clBuildProgram", status), buildLog)
	}

	return program, nil
}

func programBuildLog(program C.cl_program, device C.cl_device_id) string {
	var size C.size_t
	status := C.clGetProgramBuildInfo(program, device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)
	if status != C.CL_SUCCESS || size == 0 {
		return "(unavailable)"
	}

	buf := make([]byte, int(size))
	status = C.clGetProgramBuildInfo(program, device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "(unavailable)"
	}

	return trimNull(buf)
}
