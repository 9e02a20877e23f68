package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/service"
)

// ExitStatus is the status reported by a program that ran to completion.
type ExitStatus int32

// RunJob describes one run invocation.
type RunJob struct {
	// Core is the path of the runtime module.
	Core string
	// Config selects NewVMWithConfig when non-nil.
	Config service.Config
	// AssemblyManager, when set, is handed to NewVMWithConfigAssemblyManager
	// and owned by the VM from then on.
	AssemblyManager *service.Exclusive[service.AssemblyManager]
	// Assemblies are decoded and loaded in order.
	Assemblies []string
	// Assembly and Class name the entry point.
	Assembly string
	Class    string
	Args     []string
	// Decoder reads assembly files. Defaults to service.FileDecoder.
	Decoder service.AssemblyDecoder
}

// Run loads the runtime module and runs job: construct the VM, decode and load
// assemblies, initialize statics, spawn an execution context and run the entry
// point. The returned status is the program's own; a non-nil error means the
// tooling failed and the status is meaningless.
func Run(ctx context.Context, l ModuleLoader, job RunJob, logger *zap.Logger) (ExitStatus, error) {
	logger = loggerOrNop(logger)

	m, err := l.Load(ctx, job.Core)
	if err != nil {
		return 0, err
	}
	vm, err := newVM(ctx, m, job.Config, job.AssemblyManager)
	if err != nil {
		return 0, err
	}
	vmHandle := service.NewShared(vm)
	defer closeLogged(logger, "VM", vmHandle.Release)

	decoder := job.Decoder
	if decoder == nil {
		decoder = service.FileDecoder{}
	}
	assemblies := make([]*service.Assembly, 0, len(job.Assemblies))
	for _, path := range job.Assemblies {
		a, err := decoder.DecodeFile(path)
		if err != nil {
			if !errors.Is(err, service.ErrAssemblyDecode) {
				err = fmt.Errorf("%w: %w", service.ErrAssemblyDecode, err)
			}
			return 0, fmt.Errorf("pipeline: %w", err)
		}
		logger.Debug("Decoded assembly", zap.String("path", path), zap.String("name", a.Name))
		assemblies = append(assemblies, a)
	}

	am := vmHandle.Value().AssemblyManager()
	if am == nil {
		return 0, errors.New("pipeline: VM has no assembly manager")
	}
	if err := am.LoadFromBinaryAssemblies(ctx, assemblies); err != nil {
		return 0, fmt.Errorf("pipeline: loading assemblies: %w", err)
	}
	if err := vmHandle.Value().LoadStatics(ctx); err != nil {
		return 0, fmt.Errorf("pipeline: loading statics: %w", err)
	}

	// The execution context keeps its own share of the VM while it runs.
	cpuVM := vmHandle.Clone()
	defer closeLogged(logger, "VM", cpuVM.Release)

	id, cpu, err := cpuVM.Value().NewCPU(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: spawning execution context: %w", err)
	}
	if cpu == nil {
		return 0, errors.New("pipeline: VM returned no execution context")
	}
	cpuHandle := service.NewExclusive(cpu)
	defer closeLogged(logger, "CPU", cpuHandle.Close)

	logger.Info("Running entry point",
		zap.Uint64("cpu", uint64(id)),
		zap.String("assembly", job.Assembly),
		zap.String("class", job.Class),
		zap.Strings("args", job.Args))
	code, err := cpuHandle.Value().Run(ctx, job.Assembly, job.Class, job.Args)
	if err != nil {
		if !errors.Is(err, service.ErrRun) && !errors.Is(err, service.ErrTrap) {
			err = fmt.Errorf("%w: %w", service.ErrRun, err)
		}
		return 0, fmt.Errorf("pipeline: %w", err)
	}

	status := ExitStatus(int32(code))
	logger.Info("Program exited", zap.Int32("status", int32(status)))
	return status, nil
}

// NewAssemblyManager builds an assembly manager from the module at core for
// use as RunJob.AssemblyManager.
func NewAssemblyManager(ctx context.Context, l ModuleLoader, core string) (*service.Exclusive[service.AssemblyManager], error) {
	m, err := l.Load(ctx, core)
	if err != nil {
		return nil, err
	}
	newFn, err := loader.Resolve[service.NewAssemblyManagerFunc](m, service.EntryNewAssemblyManager)
	if err != nil {
		return nil, err
	}
	am, err := newFn(ctx)
	am, err = constructed(service.EntryNewAssemblyManager, am, err)
	if err != nil {
		return nil, err
	}
	return service.NewExclusive(am), nil
}

func newVM(ctx context.Context, m loader.Module, cfg service.Config, amHandle *service.Exclusive[service.AssemblyManager]) (service.VM, error) {
	switch {
	case amHandle != nil:
		newFn, err := loader.Resolve[service.NewVMWithConfigAssemblyManagerFunc](m, service.EntryNewVMWithConfigAssemblyManager)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = service.Config("{}")
		}
		am, err := amHandle.Take()
		if err != nil {
			return nil, fmt.Errorf("pipeline: assembly manager: %w", err)
		}
		vm, err := newFn(ctx, cfg, am)
		vm, err = constructed(service.EntryNewVMWithConfigAssemblyManager, vm, err)
		if err != nil {
			// The VM owns the manager only once it exists.
			return nil, multierr.Append(err, service.NewExclusive(am).Close())
		}
		return vm, nil
	case cfg != nil:
		newFn, err := loader.Resolve[service.NewVMWithConfigFunc](m, service.EntryNewVMWithConfig)
		if err != nil {
			return nil, err
		}
		vm, err := newFn(ctx, cfg)
		return constructed(service.EntryNewVMWithConfig, vm, err)
	default:
		newFn, err := loader.Resolve[service.NewVMFunc](m, service.EntryNewVM)
		if err != nil {
			return nil, err
		}
		vm, err := newFn(ctx)
		return constructed(service.EntryNewVM, vm, err)
	}
}
