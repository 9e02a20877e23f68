// Package nativeservice loads service modules built as C-ABI shared objects
// and exposes the objects they create as service capabilities.
package nativeservice

import "errors"

// C symbols beyond the factories. Factories share their names with the
// service entry points.
const (
	lastErrorSymbol = "purelang_last_error"
	releaseSymbol   = "purelang_release"

	compileServiceLoadCompiler = "purelang_compile_service_load_compiler"
	compileServiceAddFile      = "purelang_compile_service_add_file"
	compileServiceCompile      = "purelang_compile_service_compile"
	vmAssemblyManager          = "purelang_vm_assembly_manager"
	vmLoadStatics              = "purelang_vm_load_statics"
	vmNewCPU                   = "purelang_vm_new_cpu"
	assemblyManagerLoad        = "purelang_assembly_manager_load"
	cpuRun                     = "purelang_cpu_run"
)

var (
	ErrRequiredSymbolNotExported = errors.New("required symbol not exported")
	ErrUnsupportedPlatform       = errors.New("native service modules are not supported on this platform")
)
