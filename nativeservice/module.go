//go:build darwin || freebsd || linux

package nativeservice

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/service"
)

var (
	namerCallbackOnce sync.Once
	namerCallback     uintptr
)

func namerCallbackPtr() uintptr {
	namerCallbackOnce.Do(func() {
		namerCallback = purego.NewCallback(nameOutput)
	})
	return namerCallback
}

// Opener opens native service modules with dlopen.
type Opener struct {
	Logger *zap.Logger
}

// NewOpener returns an Opener logging to logger.
func NewOpener(logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{Logger: logger}
}

// Open maps the shared object at path. Its initializers run here.
func (o *Opener) Open(_ context.Context, path string) (loader.Module, error) {
	// Bare names are left to the dynamic linker's library search.
	if strings.ContainsRune(path, '/') {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("native: dlopen %s: %w", path, err)
	}

	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Module{path: path, lib: lib, logger: logger.With(zap.String("module", path))}
	if sym, err := purego.Dlsym(lib, lastErrorSymbol); err == nil {
		purego.RegisterFunc(&m.lastError, sym)
	}
	if sym, err := purego.Dlsym(lib, releaseSymbol); err == nil {
		purego.RegisterFunc(&m.release, sym)
	}
	return m, nil
}

// Module is a mapped shared object. It is never unmapped: objects created by
// the module may outlive any Go reference to it.
type Module struct {
	path   string
	lib    uintptr
	logger *zap.Logger

	lastError func() string
	release   func(uintptr)
}

// Path returns the path the module was opened from.
func (m *Module) Path() string { return m.path }

// Close is a no-op; see Module.
func (m *Module) Close(context.Context) error { return nil }

// Lookup resolves name with dlsym. Factory symbols are bound to their Go
// factory type; the C signature behind them is trusted. Other symbols resolve
// to their address.
func (m *Module) Lookup(name string) (any, error) {
	sym, err := purego.Dlsym(m.lib, name)
	if err != nil {
		return nil, fmt.Errorf("native: %s: %w: %w", name, service.ErrSymbolNotFound, err)
	}

	switch name {
	case service.EntryNewCompileService:
		var newFn func() uintptr
		purego.RegisterFunc(&newFn, sym)
		return service.NewCompileServiceFunc(func(context.Context) (service.CompileService, error) {
			h, err := m.construct(name, newFn)
			if err != nil {
				return nil, err
			}
			return m.newCompileService(h)
		}), nil
	case service.EntryNewCompileServiceWithConfig:
		var newFn func(string) uintptr
		purego.RegisterFunc(&newFn, sym)
		return service.NewCompileServiceWithConfigFunc(func(_ context.Context, cfg service.Config) (service.CompileService, error) {
			h, err := m.constructWithConfig(name, cfg, newFn)
			if err != nil {
				return nil, err
			}
			return m.newCompileService(h)
		}), nil
	case service.EntryNewVM:
		var newFn func() uintptr
		purego.RegisterFunc(&newFn, sym)
		return service.NewVMFunc(func(context.Context) (service.VM, error) {
			h, err := m.construct(name, newFn)
			if err != nil {
				return nil, err
			}
			return m.newVM(h)
		}), nil
	case service.EntryNewVMWithConfig:
		var newFn func(string) uintptr
		purego.RegisterFunc(&newFn, sym)
		return service.NewVMWithConfigFunc(func(_ context.Context, cfg service.Config) (service.VM, error) {
			h, err := m.constructWithConfig(name, cfg, newFn)
			if err != nil {
				return nil, err
			}
			return m.newVM(h)
		}), nil
	case service.EntryNewVMWithConfigAssemblyManager:
		var newFn func(string, uintptr) uintptr
		purego.RegisterFunc(&newFn, sym)
		return service.NewVMWithConfigAssemblyManagerFunc(func(_ context.Context, cfg service.Config, am service.AssemblyManager) (service.VM, error) {
			owned, ok := am.(*assemblyManager)
			if !ok || owned.m != m {
				return nil, fmt.Errorf("native: assembly manager %T does not belong to %s: %w", am, m.path, service.ErrForeignCapability)
			}
			h, err := m.constructWithConfig(name, cfg, func(cfgJSON string) uintptr {
				return newFn(cfgJSON, owned.handle)
			})
			if err != nil {
				return nil, err
			}
			// The native VM owns the manager now.
			owned.borrowed = true
			return m.newVM(h)
		}), nil
	case service.EntryNewAssemblyManager:
		var newFn func() uintptr
		purego.RegisterFunc(&newFn, sym)
		return service.NewAssemblyManagerFunc(func(context.Context) (service.AssemblyManager, error) {
			h, err := m.construct(name, newFn)
			if err != nil {
				return nil, err
			}
			return m.newAssemblyManager(h, false)
		}), nil
	}
	return sym, nil
}

// bind resolves a required method symbol into fptr.
func (m *Module) bind(fptr any, name string) error {
	sym, err := purego.Dlsym(m.lib, name)
	if err != nil {
		return fmt.Errorf("native: %s: %w: %w", name, ErrRequiredSymbolNotExported, err)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

// construct calls a factory. The OS thread stays locked so a thread-local
// last error belongs to this call.
func (m *Module) construct(name string, newFn func() uintptr) (uintptr, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if h := newFn(); h != 0 {
		return h, nil
	}
	return 0, m.failure(name, "returned a null handle")
}

func (m *Module) constructWithConfig(name string, cfg service.Config, newFn func(string) uintptr) (uintptr, error) {
	payload, err := cfg.JSON()
	if err != nil {
		return 0, err
	}
	return m.construct(name, func() uintptr { return newFn(string(payload)) })
}

// failure describes a failed call using purelang_last_error. Callers hold
// the OS thread.
func (m *Module) failure(name, what string) error {
	reason := "no error reported"
	if m.lastError != nil {
		if s := m.lastError(); s != "" {
			reason = s
		}
	}
	return fmt.Errorf("native: %s %s: %s", name, what, reason)
}

// status runs a method returning an int32 status.
func (m *Module) status(name string, call func() int32) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if rc := call(); rc != 0 {
		return m.failure(name, fmt.Sprintf("failed with status %d", rc))
	}
	return nil
}

// object is a handle to an object created by the module.
type object struct {
	m      *Module
	handle uintptr
}

// Close drops the object when the module exports purelang_release.
func (o object) Close() error {
	if o.m.release != nil {
		o.m.release(o.handle)
	}
	return nil
}

type compileService struct {
	object
	loadCompiler func(uintptr, string) int32
	addFile      func(uintptr, string) int32
	compile      func(uintptr, uintptr) int32
}

func (m *Module) newCompileService(h uintptr) (service.CompileService, error) {
	s := &compileService{object: object{m, h}}
	for name, fptr := range map[string]any{
		compileServiceLoadCompiler: &s.loadCompiler,
		compileServiceAddFile:      &s.addFile,
		compileServiceCompile:      &s.compile,
	} {
		if err := m.bind(fptr, name); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *compileService) LoadCompilerFromPath(_ context.Context, path string) error {
	return s.m.status(compileServiceLoadCompiler, func() int32 { return s.loadCompiler(s.handle, path) })
}

func (s *compileService) AddFile(_ context.Context, path string) error {
	return s.m.status(compileServiceAddFile, func() int32 { return s.addFile(s.handle, path) })
}

func (s *compileService) Compile(_ context.Context, name service.OutputNamer) error {
	cb := namerCallbackPtr()
	var err error
	namerErr := withNamer(name, func() {
		err = s.m.status(compileServiceCompile, func() int32 { return s.compile(s.handle, cb) })
	})
	if namerErr != nil {
		return fmt.Errorf("native: naming compiled output: %w", namerErr)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", service.ErrCompile, err)
	}
	return nil
}

type assemblyManager struct {
	object
	// borrowed managers belong to their VM and are not released on Close.
	borrowed bool
	load     func(uintptr, *byte, int32) int32
}

func (m *Module) newAssemblyManager(h uintptr, borrowed bool) (*assemblyManager, error) {
	a := &assemblyManager{object: object{m, h}, borrowed: borrowed}
	if err := m.bind(&a.load, assemblyManagerLoad); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *assemblyManager) LoadFromBinaryAssemblies(_ context.Context, assemblies []*service.Assembly) error {
	payload, err := service.EncodeAssemblies(assemblies)
	if err != nil {
		return err
	}
	return a.m.status(assemblyManagerLoad, func() int32 {
		return a.load(a.handle, &payload[0], int32(len(payload)))
	})
}

func (a *assemblyManager) Close() error {
	if a.borrowed {
		return nil
	}
	return a.object.Close()
}

type vm struct {
	object
	am          *assemblyManager
	loadStatics func(uintptr) int32
	newCPU      func(uintptr) uintptr
	run         func(uintptr, *byte, int32, *int64) int32
}

func (m *Module) newVM(h uintptr) (service.VM, error) {
	v := &vm{object: object{m, h}}
	var amOf func(uintptr) uintptr
	for name, fptr := range map[string]any{
		vmAssemblyManager: &amOf,
		vmLoadStatics:     &v.loadStatics,
		vmNewCPU:          &v.newCPU,
		cpuRun:            &v.run,
	} {
		if err := m.bind(fptr, name); err != nil {
			v.Close()
			return nil, err
		}
	}

	amHandle, err := m.construct(vmAssemblyManager, func() uintptr { return amOf(h) })
	if err == nil {
		v.am, err = m.newAssemblyManager(amHandle, true)
	}
	if err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *vm) AssemblyManager() service.AssemblyManager {
	return v.am
}

func (v *vm) LoadStatics(context.Context) error {
	return v.m.status(vmLoadStatics, func() int32 { return v.loadStatics(v.handle) })
}

func (v *vm) NewCPU(context.Context) (service.CPUID, service.CPU, error) {
	h, err := v.m.construct(vmNewCPU, func() uintptr { return v.newCPU(v.handle) })
	if err != nil {
		return 0, nil, err
	}
	return service.CPUID(h), &cpu{object: object{v.m, h}, run: v.run}, nil
}

type cpu struct {
	object
	run func(uintptr, *byte, int32, *int64) int32
}

func (c *cpu) Run(_ context.Context, assembly, class string, args []string) (int64, error) {
	payload, err := service.RunRequest{Assembly: assembly, Class: class, Args: args}.Encode()
	if err != nil {
		return 0, err
	}
	var code int64
	err = c.m.status(cpuRun, func() int32 {
		return c.run(c.handle, &payload[0], int32(len(payload)), &code)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", service.ErrRun, err)
	}
	return code, nil
}
