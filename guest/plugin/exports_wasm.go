//go:build wasm

package plugin

import (
	"github.com/purelang/launcher/guest/api"
	"github.com/purelang/launcher/guest/internal/imports"
	"github.com/purelang/launcher/guest/internal/mem"
)

//go:wasmexport purelang_service_abi_v1
func _purelangServiceABIV1() {}

// handleResult returns h, sending the failure reason when h is 0.
func handleResult(h uint32, s *api.Status) uint32 {
	if s != nil {
		imports.StatusToCode(s)
		return 0
	}
	return h
}

//go:wasmexport NewCompileService
func _newCompileService() uint32 {
	return handleResult(newCompileService())
}

//go:wasmexport NewCompileServiceWithConfig
func _newCompileServiceWithConfig(cfgPtr, cfgSize uint32) uint32 {
	return handleResult(newCompileServiceWithConfig(mem.TakeOwnership(cfgPtr, cfgSize)))
}

//go:wasmexport NewVM
func _newVM() uint32 {
	return handleResult(newVM())
}

//go:wasmexport NewVMWithConfig
func _newVMWithConfig(cfgPtr, cfgSize uint32) uint32 {
	return handleResult(newVMWithConfig(mem.TakeOwnership(cfgPtr, cfgSize)))
}

//go:wasmexport NewVMWithConfigAssemblyManager
func _newVMWithConfigAssemblyManager(cfgPtr, cfgSize, am uint32) uint32 {
	return handleResult(newVMWithConfigAssemblyManager(mem.TakeOwnership(cfgPtr, cfgSize), am))
}

//go:wasmexport NewAssemblyManager
func _newAssemblyManager() uint32 {
	return handleResult(newAssemblyManager())
}

//go:wasmexport compile_service_load_compiler
func _compileServiceLoadCompiler(h, pathPtr, pathSize uint32) uint32 {
	return imports.StatusToCode(compileServiceLoadCompiler(h, string(mem.TakeOwnership(pathPtr, pathSize))))
}

//go:wasmexport compile_service_add_file
func _compileServiceAddFile(h, pathPtr, pathSize uint32) uint32 {
	return imports.StatusToCode(compileServiceAddFile(h, string(mem.TakeOwnership(pathPtr, pathSize))))
}

//go:wasmexport compile_service_compile
func _compileServiceCompile(h uint32) uint32 {
	return imports.StatusToCode(compileServiceCompile(h, imports.OutputPath))
}

//go:wasmexport vm_assembly_manager
func _vmAssemblyManager(h uint32) uint32 {
	return handleResult(vmAssemblyManager(h))
}

//go:wasmexport vm_load_statics
func _vmLoadStatics(h uint32) uint32 {
	return imports.StatusToCode(vmLoadStatics(h))
}

//go:wasmexport vm_new_cpu
func _vmNewCPU(h uint32) uint32 {
	return handleResult(vmNewCPU(h))
}

//go:wasmexport assembly_manager_load
func _assemblyManagerLoad(h, ptr, size uint32) uint32 {
	return imports.StatusToCode(assemblyManagerLoad(h, mem.TakeOwnership(ptr, size)))
}

//go:wasmexport cpu_run
func _cpuRun(h, ptr, size uint32) uint32 {
	code, s := cpuRun(h, mem.TakeOwnership(ptr, size))
	if s == nil {
		imports.SetExitCode(code)
	}
	return imports.StatusToCode(s)
}

//go:wasmexport release
func _release(h uint32) {
	release(h)
}
