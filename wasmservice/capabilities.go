package wasmservice

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/purelang/launcher/service"
)

// guestObject addresses an object living inside the guest instance.
type guestObject struct {
	m      *Module
	handle uint32
}

// Close drops the guest object when the module exports release.
func (o guestObject) Close() error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if o.m.instance == nil || o.m.instance.Export(releaseFunction) == nil {
		return nil
	}
	ctx := o.m.instance.Bind(context.Background())
	_, err := o.m.callLocked(ctx, releaseFunction, o.m.newStack(), uint64(o.handle))
	return err
}

type compileService struct {
	guestObject
}

func (s *compileService) LoadCompilerFromPath(ctx context.Context, path string) error {
	return s.method(ctx, compileServiceLoadCompiler, path)
}

func (s *compileService) AddFile(ctx context.Context, path string) error {
	return s.method(ctx, compileServiceAddFile, path)
}

func (s *compileService) method(ctx context.Context, name, path string) error {
	stack := s.m.newStack()
	res, err := s.m.pushAndCall(ctx, name, stack, s.handle, []byte(path))
	if err != nil {
		return err
	}
	return checkStatus(name, res, stack)
}

// Compile runs the guest compiler. Output paths are requested by the guest
// through output_path while the call is in progress.
func (s *compileService) Compile(ctx context.Context, name service.OutputNamer) error {
	stack := s.m.newStack()
	stack.Namer = name
	res, err := s.m.call(ctx, compileServiceCompile, stack, uint64(s.handle))
	if err != nil {
		return err
	}
	if stack.NamerErr != nil {
		return fmt.Errorf("wasm: naming compiled output: %w", stack.NamerErr)
	}
	if err := checkStatus(compileServiceCompile, res, stack); err != nil {
		return fmt.Errorf("%w: %w", service.ErrCompile, err)
	}
	return nil
}

type assemblyManager struct {
	guestObject
	// borrowed managers belong to their VM and are not released on Close.
	borrowed bool
}

func (a *assemblyManager) LoadFromBinaryAssemblies(ctx context.Context, assemblies []*service.Assembly) error {
	payload, err := service.EncodeAssemblies(assemblies)
	if err != nil {
		return err
	}
	stack := a.m.newStack()
	res, err := a.m.pushAndCall(ctx, assemblyManagerLoad, stack, a.handle, payload)
	if err != nil {
		return err
	}
	return checkStatus(assemblyManagerLoad, res, stack)
}

func (a *assemblyManager) Close() error {
	if a.borrowed {
		return nil
	}
	return a.guestObject.Close()
}

type vm struct {
	guestObject
	am *assemblyManager
}

// newVM wraps a VM handle and resolves the assembly manager it owns.
func (m *Module) newVM(ctx context.Context, h uint32) (service.VM, error) {
	v := &vm{guestObject: guestObject{m, h}}
	stack := m.newStack()
	res, err := m.call(ctx, vmAssemblyManager, stack, uint64(h))
	if err == nil {
		var amHandle uint32
		if amHandle, err = handleResult(vmAssemblyManager, res, stack); err == nil {
			v.am = &assemblyManager{guestObject: guestObject{m, amHandle}, borrowed: true}
			return v, nil
		}
	}
	if cerr := v.Close(); cerr != nil {
		m.logger.Warn("Failed to release VM", zap.Error(cerr))
	}
	return nil, err
}

func (v *vm) AssemblyManager() service.AssemblyManager {
	return v.am
}

func (v *vm) LoadStatics(ctx context.Context) error {
	stack := v.m.newStack()
	res, err := v.m.call(ctx, vmLoadStatics, stack, uint64(v.handle))
	if err != nil {
		return err
	}
	return checkStatus(vmLoadStatics, res, stack)
}

func (v *vm) NewCPU(ctx context.Context) (service.CPUID, service.CPU, error) {
	stack := v.m.newStack()
	res, err := v.m.call(ctx, vmNewCPU, stack, uint64(v.handle))
	if err != nil {
		return 0, nil, err
	}
	h, err := handleResult(vmNewCPU, res, stack)
	if err != nil {
		return 0, nil, err
	}
	return service.CPUID(h), &cpu{guestObject{v.m, h}}, nil
}

type cpu struct {
	guestObject
}

// Run blocks until the guest returns from cpu_run. The program status is
// reported through set_exit_code and defaults to 0.
func (c *cpu) Run(ctx context.Context, assembly, class string, args []string) (int64, error) {
	payload, err := service.RunRequest{Assembly: assembly, Class: class, Args: args}.Encode()
	if err != nil {
		return 0, err
	}
	stack := c.m.newStack()
	res, err := c.m.pushAndCall(ctx, cpuRun, stack, c.handle, payload)
	if err != nil {
		return 0, err
	}
	if err := checkStatus(cpuRun, res, stack); err != nil {
		return 0, fmt.Errorf("%w: %w", service.ErrRun, err)
	}
	return stack.ExitCode, nil
}
