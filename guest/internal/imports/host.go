// Package imports wraps the functions the host exports to service modules.
package imports

import (
	"errors"
	"runtime"

	"github.com/purelang/launcher/guest/api"
	"github.com/purelang/launcher/guest/internal/mem"
)

// StatusToCode returns a WebAssembly compatible result for the input status,
// after sending any reason to the host.
func StatusToCode(s *api.Status) uint32 {
	// Nil status is the same as one with a success code.
	if s == nil || s.Code == api.StatusCodeSuccess {
		return uint32(api.StatusCodeSuccess)
	}

	// WebAssembly Core 2.0 (DRAFT) only includes numeric types. Return the
	// reason using a host function.
	if reason := s.Reason; reason != "" {
		SetStatusReason(reason)
	}

	return uint32(s.Code)
}

// SetStatusReason reports why the current call failed.
func SetStatusReason(reason string) {
	ptr, size := mem.StringToPtr(reason)
	setStatusReasonHost(ptr, size)
	runtime.KeepAlive(reason) // until ptr is no longer needed.
}

// SetExitCode reports the status of the program run by cpu_run.
func SetExitCode(code int64) {
	setExitCodeHost(code)
}

var errNotNamed = errors.New("host did not name the compiled output")

// OutputPath asks the host to name the compiled output of source. It is
// only valid while compile_service_compile runs.
func OutputPath(source string) (string, error) {
	srcPtr, srcLen := mem.StringToPtr(source)
	out := mem.GetBytes(func(ptr uint32, limit mem.BufLimit) uint32 {
		return outputPathHost(srcPtr, srcLen, ptr, limit)
	})
	runtime.KeepAlive(source)
	if len(out) == 0 {
		return "", errNotNamed
	}
	return string(out), nil
}

// LogMessage sends an encoded log record to the host.
func LogMessage(record []byte) {
	ptr, size := mem.BytesToPtr(record)
	logMessageHost(ptr, size)
	runtime.KeepAlive(record)
}
