package wazero

import (
	"context"
	"fmt"

	"github.com/stealthrocket/wasi-go"
	wasiimports "github.com/stealthrocket/wasi-go/imports"
	"github.com/stealthrocket/wasi-go/imports/wasi_snapshot_preview1"
	"github.com/stealthrocket/wazergo"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"

	"github.com/purelang/launcher/runtime"
)

const (
	memoryExport = "memory"
	// reactorInit is run once at load time when the guest exports it.
	reactorInit = "_initialize"
)

// wasiKey is the context key wazergo binds the WASI host module under. wasi-go
// host functions panic when called with a context that lacks it.
var wasiKey = (*wazergo.ModuleInstance[*wasi_snapshot_preview1.Module])(nil)

type engine struct {
	rt  wazero.Runtime
	cfg *runtime.Config
}

func newEngine(cfg *runtime.Config) (runtime.Runtime, error) {
	rc := wazero.NewRuntimeConfigInterpreter()
	if cfg.Mode == runtime.ModeCompiled {
		rc = wazero.NewRuntimeConfigCompiler()
	}
	return &engine{rt: wazero.NewRuntimeWithConfig(context.Background(), rc), cfg: cfg}, nil
}

func (e *engine) Load(ctx context.Context, binary []byte, host runtime.HostModule) (runtime.Instance, error) {
	compiled, err := e.rt.CompileModule(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("wazero: %w: %w", runtime.ErrModuleCompileFailed, err)
	}
	if _, ok := compiled.ExportedMemories()[memoryExport]; !ok {
		return nil, multierr.Append(
			fmt.Errorf("wazero: guest does not export %q: %w", memoryExport, runtime.ErrMemoryExportNotFound),
			compiled.Close(ctx))
	}

	ctx, sys, err := wasiimports.NewBuilder().
		WithName(e.cfg.Name).
		WithEnv(e.cfg.Env...).
		WithDirs(e.cfg.Dirs...).
		Instantiate(ctx, e.rt)
	if err != nil {
		return nil, fmt.Errorf("wazero: linking WASI: %w: %w", runtime.ErrModuleInstantiateFailed, err)
	}
	inst := &instance{sys: sys}
	if inst.wasi, _ = ctx.Value(wasiKey).(*wasi_snapshot_preview1.Module); inst.wasi == nil {
		return nil, multierr.Append(
			fmt.Errorf("wazero: WASI module missing from context: %w", runtime.ErrInvalidConfiguration),
			sys.Close(ctx))
	}

	if err := e.link(ctx, host); err != nil {
		return nil, multierr.Append(err, sys.Close(ctx))
	}

	mc := wazero.NewModuleConfig().WithStartFunctions()
	if _, ok := compiled.ExportedFunctions()[reactorInit]; ok {
		mc = mc.WithStartFunctions(reactorInit)
	}
	if inst.mod, err = e.rt.InstantiateModule(ctx, compiled, mc); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("wazero: %w: %w", runtime.ErrModuleInstantiateFailed, err),
			sys.Close(ctx))
	}
	return inst, nil
}

// link instantiates host under its module name so the guest can import it.
func (e *engine) link(ctx context.Context, host runtime.HostModule) error {
	b := e.rt.NewHostModuleBuilder(host.Name)
	for _, fn := range host.Functions {
		if fn.Func == nil {
			return fmt.Errorf("wazero: %s.%s: %w", host.Name, fn.Name, runtime.ErrHostFunctionNotFound)
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(fn.Func, fn.Params, fn.Results).
			Export(fn.Name)
	}
	if _, err := b.Instantiate(ctx); err != nil {
		return fmt.Errorf("wazero: linking %s: %w: %w", host.Name, runtime.ErrModuleInstantiateFailed, err)
	}
	return nil
}

func (e *engine) Close(ctx context.Context) error {
	return e.rt.Close(ctx)
}

type instance struct {
	mod  api.Module
	sys  wasi.System
	wasi *wasi_snapshot_preview1.Module
}

func (i *instance) Export(name string) runtime.Function {
	if fn := i.mod.ExportedFunction(name); fn != nil {
		return function{fn}
	}
	return nil
}

func (i *instance) Memory() runtime.Memory {
	if mem := i.mod.Memory(); mem != nil {
		return mem
	}
	return nil
}

func (i *instance) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, wasiKey, i.wasi)
}

func (i *instance) Close(ctx context.Context) error {
	return multierr.Append(i.mod.Close(ctx), i.sys.Close(ctx))
}

type function struct {
	fn api.Function
}

func (f function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

func (f function) Arity() (int, int) {
	def := f.fn.Definition()
	return len(def.ParamTypes()), len(def.ResultTypes())
}
