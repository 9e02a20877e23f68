package wasmservice

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/runtime"
	_ "github.com/purelang/launcher/runtime/wazero" // registers the wazero runtime
	"github.com/purelang/launcher/service"
)

// Opener opens wasm service modules.
type Opener struct {
	Config Config
	Logger *zap.Logger
}

// NewOpener returns an Opener for cfg.
func NewOpener(cfg Config, logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{Config: cfg, Logger: logger}
}

// Open compiles and instantiates the module at path and checks that it
// implements the service ABI.
func (o *Opener) Open(ctx context.Context, path string) (loader.Module, error) {
	if err := o.Config.Validate(); err != nil {
		return nil, err
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("module", path))

	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rtConfig := o.Config.Runtime
	rtConfig.Name = path
	rt, err := runtime.NewRuntime(o.Config.RuntimeType, &rtConfig)
	if err != nil {
		return nil, fmt.Errorf("wasm: error creating runtime: %w", err)
	}

	m, err := instantiate(ctx, rt, bytes, path, logger)
	if err != nil {
		return nil, multierr.Append(err, rt.Close(ctx))
	}
	return m, nil
}

func instantiate(ctx context.Context, rt runtime.Runtime, bytes []byte, path string, logger *zap.Logger) (*Module, error) {
	// Host functions called from _initialize log through the module logger.
	initCtx := createContextWithStack(ctx, &Stack{Logger: logger})
	instance, err := rt.Load(initCtx, bytes, serviceHostModule())
	if err != nil {
		return nil, fmt.Errorf("wasm: error loading module: %w", err)
	}

	m := &Module{
		path:     path,
		runtime:  rt,
		instance: instance,
		logger:   logger,
	}

	if m.abi = detectABIVersion(instance); m.abi == ABIUnknown {
		return nil, multierr.Append(
			fmt.Errorf("wasm: %s is not exported: %w", abiVersionV1MarkerExport, ErrABIVersionMarkerNotExported),
			m.closeInstance(ctx))
	}
	if instance.Export(allocFunction) == nil {
		return nil, multierr.Append(
			fmt.Errorf("wasm: %s is not exported: %w", allocFunction, ErrRequiredFunctionNotExported),
			m.closeInstance(ctx))
	}
	return m, nil
}

// Module is an instantiated wasm service module. Guest objects created by its
// factories are addressed by i32 handles into this single instance.
type Module struct {
	path     string
	runtime  runtime.Runtime
	instance runtime.Instance
	abi      ABIVersion
	logger   *zap.Logger

	// mu serializes guest calls; an instance is single threaded.
	mu sync.Mutex
}

// Path returns the path the module was opened from.
func (m *Module) Path() string { return m.path }

// ABI returns the detected ABI version.
func (m *Module) ABI() ABIVersion { return m.abi }

// Lookup binds a factory export to its Go factory type. Names that are not
// factories resolve to the raw runtime.Function.
func (m *Module) Lookup(name string) (any, error) {
	fn := m.instance.Export(name)
	if fn == nil {
		return nil, fmt.Errorf("wasm: %s is not exported: %w", name, service.ErrSymbolNotFound)
	}

	params, isFactory := factoryParams[name]
	if !isFactory {
		return fn, nil
	}
	if got, results := fn.Arity(); got != params || results != 1 {
		return nil, fmt.Errorf("wasm: %s takes %d params and returns %d results, want %d params and 1 result: %w",
			name, got, results, params, service.ErrSignatureMismatch)
	}

	switch name {
	case service.EntryNewCompileService:
		return service.NewCompileServiceFunc(func(ctx context.Context) (service.CompileService, error) {
			h, err := m.construct(ctx, name)
			if err != nil {
				return nil, err
			}
			return &compileService{guestObject{m, h}}, nil
		}), nil
	case service.EntryNewCompileServiceWithConfig:
		return service.NewCompileServiceWithConfigFunc(func(ctx context.Context, cfg service.Config) (service.CompileService, error) {
			h, err := m.constructWithConfig(ctx, name, cfg)
			if err != nil {
				return nil, err
			}
			return &compileService{guestObject{m, h}}, nil
		}), nil
	case service.EntryNewVM:
		return service.NewVMFunc(func(ctx context.Context) (service.VM, error) {
			h, err := m.construct(ctx, name)
			if err != nil {
				return nil, err
			}
			return m.newVM(ctx, h)
		}), nil
	case service.EntryNewVMWithConfig:
		return service.NewVMWithConfigFunc(func(ctx context.Context, cfg service.Config) (service.VM, error) {
			h, err := m.constructWithConfig(ctx, name, cfg)
			if err != nil {
				return nil, err
			}
			return m.newVM(ctx, h)
		}), nil
	case service.EntryNewVMWithConfigAssemblyManager:
		return service.NewVMWithConfigAssemblyManagerFunc(func(ctx context.Context, cfg service.Config, am service.AssemblyManager) (service.VM, error) {
			guestAM, ok := am.(*assemblyManager)
			if !ok || guestAM.m != m {
				return nil, fmt.Errorf("wasm: assembly manager %T does not belong to %s: %w", am, m.path, service.ErrForeignCapability)
			}
			h, err := m.constructWithConfig(ctx, name, cfg, uint64(guestAM.handle))
			if err != nil {
				return nil, err
			}
			// The guest VM owns the manager now.
			guestAM.borrowed = true
			return m.newVM(ctx, h)
		}), nil
	case service.EntryNewAssemblyManager:
		return service.NewAssemblyManagerFunc(func(ctx context.Context) (service.AssemblyManager, error) {
			h, err := m.construct(ctx, name)
			if err != nil {
				return nil, err
			}
			return &assemblyManager{guestObject: guestObject{m, h}}, nil
		}), nil
	}
	return fn, nil
}

// Close releases the instance and its runtime.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instance == nil {
		return nil
	}
	return multierr.Append(m.closeInstance(ctx), m.runtime.Close(ctx))
}

func (m *Module) closeInstance(ctx context.Context) error {
	if m.instance == nil {
		return nil
	}
	err := m.instance.Close(ctx)
	m.instance = nil
	return err
}

// construct calls a factory without configuration.
func (m *Module) construct(ctx context.Context, name string) (uint32, error) {
	stack := m.newStack()
	res, err := m.call(ctx, name, stack)
	if err != nil {
		return 0, err
	}
	return handleResult(name, res, stack)
}

// constructWithConfig pushes cfg as JSON and calls a factory with it,
// followed by extra params.
func (m *Module) constructWithConfig(ctx context.Context, name string, cfg service.Config, extra ...uint64) (uint32, error) {
	payload, err := cfg.JSON()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instance == nil {
		return 0, fmt.Errorf("wasm: %s: module closed: %w", name, service.ErrReleased)
	}
	ctx = m.instance.Bind(ctx)
	ptr, size, err := m.push(ctx, payload)
	if err != nil {
		return 0, err
	}

	stack := m.newStack()
	res, err := m.callLocked(ctx, name, stack, append([]uint64{uint64(ptr), uint64(size)}, extra...)...)
	if err != nil {
		return 0, err
	}
	return handleResult(name, res, stack)
}

func (m *Module) newStack() *Stack {
	return &Stack{Logger: m.logger}
}

// call executes a guest export with the call stack in scope. A trap is
// reported as service.ErrTrap.
func (m *Module) call(ctx context.Context, name string, stack *Stack, params ...uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instance == nil {
		return 0, fmt.Errorf("wasm: %s: module closed: %w", name, service.ErrReleased)
	}
	return m.callLocked(m.instance.Bind(ctx), name, stack, params...)
}

func (m *Module) callLocked(ctx context.Context, name string, stack *Stack, params ...uint64) (uint64, error) {
	fn := m.instance.Export(name)
	if fn == nil {
		return 0, fmt.Errorf("wasm: %s is not exported: %w", name, ErrRequiredFunctionNotExported)
	}

	res, err := fn.Call(createContextWithStack(ctx, stack), params...)
	if err != nil {
		return 0, fmt.Errorf("wasm: %s: %w: %w", name, service.ErrTrap, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}

// pushAndCall pushes payload into guest memory and calls name with
// (handle, ptr, len).
func (m *Module) pushAndCall(ctx context.Context, name string, stack *Stack, handle uint32, payload []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instance == nil {
		return 0, fmt.Errorf("wasm: %s: module closed: %w", name, service.ErrReleased)
	}
	ctx = m.instance.Bind(ctx)
	ptr, size, err := m.push(ctx, payload)
	if err != nil {
		return 0, err
	}
	return m.callLocked(ctx, name, stack, uint64(handle), uint64(ptr), uint64(size))
}

func handleResult(name string, res uint64, stack *Stack) (uint32, error) {
	h := uint32(res)
	if h == 0 {
		return 0, statusError(name, StatusError, stack)
	}
	return h, nil
}

func statusError(name string, status StatusCode, stack *Stack) error {
	reason := stack.StatusReason
	if reason == "" {
		reason = "no status reason"
	}
	return fmt.Errorf("wasm: %s: %s: %s", name, status, reason)
}

// checkStatus converts a method status into an error.
func checkStatus(name string, res uint64, stack *Stack) error {
	if status := StatusCode(uint32(res)); status != StatusOK {
		return statusError(name, status, stack)
	}
	return nil
}
