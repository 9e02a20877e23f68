// Package wasmservice loads service modules compiled to WebAssembly and exposes
// their guest objects as service capabilities.
package wasmservice

import (
	"fmt"

	"github.com/purelang/launcher/runtime"
)

const (
	// abiVersionV1MarkerExport must be exported by every service module.
	abiVersionV1MarkerExport = "purelang_service_abi_v1"

	// allocFunction allocates guest memory for payloads pushed by the host.
	allocFunction = "purelang_alloc"

	// releaseFunction optionally drops a guest object.
	releaseFunction = "release"

	// Guest methods.
	compileServiceLoadCompiler = "compile_service_load_compiler"
	compileServiceAddFile      = "compile_service_add_file"
	compileServiceCompile      = "compile_service_compile"
	vmAssemblyManager          = "vm_assembly_manager"
	vmLoadStatics              = "vm_load_statics"
	vmNewCPU                   = "vm_new_cpu"
	assemblyManagerLoad        = "assembly_manager_load"
	cpuRun                     = "cpu_run"

	// hostModuleName is the import module of the host functions.
	hostModuleName = "purelang.dev/service"

	// Host function exports
	setStatusReason = "set_status_reason"
	outputPath      = "output_path"
	setExitCode     = "set_exit_code"
	logMessage      = "log_message"
)

// ABIVersion represents the detected service module ABI.
type ABIVersion uint8

const (
	// ABIUnknown indicates that no known ABI marker was exported.
	ABIUnknown ABIVersion = iota
	// ABIV1 indicates the module exports the ABI v1 marker.
	ABIV1
)

func (v ABIVersion) String() string {
	switch v {
	case ABIV1:
		return "v1"
	case ABIUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

func detectABIVersion(mod runtime.Instance) ABIVersion {
	if mod == nil {
		return ABIUnknown
	}
	if mod.Export(abiVersionV1MarkerExport) != nil {
		return ABIV1
	}
	return ABIUnknown
}

// StatusCode represents the result status code of a guest method.
type StatusCode uint32

const (
	StatusOK StatusCode = iota
	StatusError
	StatusInvalidArgument
)

// String returns the string representation of the status code
func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(s))
	}
}

// factoryParams is the number of i32 parameters each factory export takes.
// Configuration travels as (ptr, len), an assembly manager as its handle.
var factoryParams = map[string]int{
	"NewCompileService":              0,
	"NewCompileServiceWithConfig":    2,
	"NewVM":                          0,
	"NewVMWithConfig":                2,
	"NewVMWithConfigAssemblyManager": 3,
	"NewAssemblyManager":             0,
}
