// Package plugin turns Go implementations of the service capabilities into a
// purelang wasm service module. A module calls Set from init and is built
// with GOOS=wasip1 GOARCH=wasm -buildmode=c-shared.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/purelang/launcher/guest/api"
	"github.com/purelang/launcher/service"
)

// Factories are the entry points a module provides. Missing factories fail
// at call time with a status reason.
type Factories struct {
	NewCompileService              service.NewCompileServiceFunc
	NewCompileServiceWithConfig    service.NewCompileServiceWithConfigFunc
	NewVM                          service.NewVMFunc
	NewVMWithConfig                service.NewVMWithConfigFunc
	NewVMWithConfigAssemblyManager service.NewVMWithConfigAssemblyManagerFunc
	NewAssemblyManager             service.NewAssemblyManagerFunc
}

var (
	factories Factories
	objects   = newHandleTable()
)

// Set registers the module's factories.
func Set(f Factories) {
	factories = f
}

// handleTable maps the i32 handles given to the host to guest objects.
// Handle 0 is never issued.
type handleTable struct {
	next    uint32
	objects map[uint32]any
}

func newHandleTable() *handleTable {
	return &handleTable{objects: map[uint32]any{}}
}

func (t *handleTable) add(v any) uint32 {
	t.next++
	t.objects[t.next] = v
	return t.next
}

func (t *handleTable) remove(h uint32) (any, bool) {
	v, ok := t.objects[h]
	delete(t.objects, h)
	return v, ok
}

func lookup[T any](h uint32) (T, *api.Status) {
	var zero T
	v, ok := objects.objects[h]
	if !ok {
		return zero, api.InvalidArgument(fmt.Sprintf("unknown handle %d", h))
	}
	obj, ok := v.(T)
	if !ok {
		return zero, api.InvalidArgument(fmt.Sprintf("handle %d is a %T, not a %T", h, v, zero))
	}
	return obj, nil
}

func construct[T any](name string, v T, err error, provided bool) (uint32, *api.Status) {
	if !provided {
		return 0, &api.Status{Code: api.StatusCodeError, Reason: name + " is not provided by this module"}
	}
	if err != nil {
		return 0, api.Error(err)
	}
	return objects.add(v), nil
}

// decodeConfig checks the configuration bytes and hands them on unchanged.
func decodeConfig(cfgJSON []byte) (service.Config, *api.Status) {
	if len(cfgJSON) == 0 {
		return service.Config("{}"), nil
	}
	if !json.Valid(cfgJSON) {
		return nil, api.InvalidArgument(fmt.Sprintf("%s: invalid JSON", service.ErrConfigParse))
	}
	return service.Config(cfgJSON), nil
}

func newCompileService() (uint32, *api.Status) {
	f := factories.NewCompileService
	if f == nil {
		return construct[service.CompileService](service.EntryNewCompileService, nil, nil, false)
	}
	svc, err := f(context.Background())
	return construct(service.EntryNewCompileService, svc, err, true)
}

func newCompileServiceWithConfig(cfgJSON []byte) (uint32, *api.Status) {
	f := factories.NewCompileServiceWithConfig
	if f == nil {
		return construct[service.CompileService](service.EntryNewCompileServiceWithConfig, nil, nil, false)
	}
	cfg, st := decodeConfig(cfgJSON)
	if st != nil {
		return 0, st
	}
	svc, err := f(context.Background(), cfg)
	return construct(service.EntryNewCompileServiceWithConfig, svc, err, true)
}

func newVM() (uint32, *api.Status) {
	f := factories.NewVM
	if f == nil {
		return construct[service.VM](service.EntryNewVM, nil, nil, false)
	}
	vm, err := f(context.Background())
	return construct(service.EntryNewVM, vm, err, true)
}

func newVMWithConfig(cfgJSON []byte) (uint32, *api.Status) {
	f := factories.NewVMWithConfig
	if f == nil {
		return construct[service.VM](service.EntryNewVMWithConfig, nil, nil, false)
	}
	cfg, st := decodeConfig(cfgJSON)
	if st != nil {
		return 0, st
	}
	vm, err := f(context.Background(), cfg)
	return construct(service.EntryNewVMWithConfig, vm, err, true)
}

// newVMWithConfigAssemblyManager hands the manager behind amHandle to the new
// VM; the handle is no longer valid afterwards.
func newVMWithConfigAssemblyManager(cfgJSON []byte, amHandle uint32) (uint32, *api.Status) {
	f := factories.NewVMWithConfigAssemblyManager
	if f == nil {
		return construct[service.VM](service.EntryNewVMWithConfigAssemblyManager, nil, nil, false)
	}
	cfg, st := decodeConfig(cfgJSON)
	if st != nil {
		return 0, st
	}
	am, st := lookup[service.AssemblyManager](amHandle)
	if st != nil {
		return 0, st
	}
	objects.remove(amHandle)
	vm, err := f(context.Background(), cfg, am)
	return construct(service.EntryNewVMWithConfigAssemblyManager, vm, err, true)
}

func newAssemblyManager() (uint32, *api.Status) {
	f := factories.NewAssemblyManager
	if f == nil {
		return construct[service.AssemblyManager](service.EntryNewAssemblyManager, nil, nil, false)
	}
	am, err := f(context.Background())
	return construct(service.EntryNewAssemblyManager, am, err, true)
}

func compileServiceLoadCompiler(h uint32, path string) *api.Status {
	svc, st := lookup[service.CompileService](h)
	if st != nil {
		return st
	}
	return api.Error(svc.LoadCompilerFromPath(context.Background(), path))
}

func compileServiceAddFile(h uint32, path string) *api.Status {
	svc, st := lookup[service.CompileService](h)
	if st != nil {
		return st
	}
	return api.Error(svc.AddFile(context.Background(), path))
}

func compileServiceCompile(h uint32, namer service.OutputNamer) *api.Status {
	svc, st := lookup[service.CompileService](h)
	if st != nil {
		return st
	}
	return api.Error(svc.Compile(context.Background(), namer))
}

// vmAssemblyManager issues a handle for the VM's manager. The handle borrows
// the manager; releasing it does not close it.
func vmAssemblyManager(h uint32) (uint32, *api.Status) {
	vm, st := lookup[service.VM](h)
	if st != nil {
		return 0, st
	}
	am := vm.AssemblyManager()
	if am == nil {
		return 0, &api.Status{Code: api.StatusCodeError, Reason: "VM has no assembly manager"}
	}
	return objects.add(borrowed{am}), nil
}

// borrowed hides io.Closer from release.
type borrowed struct {
	service.AssemblyManager
}

func vmLoadStatics(h uint32) *api.Status {
	vm, st := lookup[service.VM](h)
	if st != nil {
		return st
	}
	return api.Error(vm.LoadStatics(context.Background()))
}

func vmNewCPU(h uint32) (uint32, *api.Status) {
	vm, st := lookup[service.VM](h)
	if st != nil {
		return 0, st
	}
	_, cpu, err := vm.NewCPU(context.Background())
	if err != nil {
		return 0, api.Error(err)
	}
	return objects.add(cpu), nil
}

func assemblyManagerLoad(h uint32, payload []byte) *api.Status {
	am, st := lookup[service.AssemblyManager](h)
	if st != nil {
		return st
	}
	assemblies, err := service.DecodeAssemblies(payload)
	if err != nil {
		return api.InvalidArgument(err.Error())
	}
	return api.Error(am.LoadFromBinaryAssemblies(context.Background(), assemblies))
}

func cpuRun(h uint32, payload []byte) (int64, *api.Status) {
	cpu, st := lookup[service.CPU](h)
	if st != nil {
		return 0, st
	}
	req, err := service.DecodeRunRequest(payload)
	if err != nil {
		return 0, api.InvalidArgument(err.Error())
	}
	code, err := cpu.Run(context.Background(), req.Assembly, req.Class, req.Args)
	if err != nil {
		return 0, api.Error(err)
	}
	return code, nil
}

// release forgets h and closes its object if it is an io.Closer.
func release(h uint32) {
	v, ok := objects.remove(h)
	if !ok {
		return
	}
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
