package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/service"
)

// CompileJob describes one compile invocation.
type CompileJob struct {
	// Core is the path of the compile service module.
	Core string
	// Config selects NewCompileServiceWithConfig when non-nil.
	Config service.Config
	// Compilers are registered in order before any source is added.
	Compilers []string
	// Sources are added in order.
	Sources []string
	// Namer names compiled outputs. Defaults to LoggingNamer.
	Namer service.OutputNamer
}

// Compile loads the compile service and runs job through it: construct,
// register compilers, add sources, compile once. The first failure aborts the
// remaining steps.
func Compile(ctx context.Context, l ModuleLoader, job CompileJob, logger *zap.Logger) error {
	logger = loggerOrNop(logger)

	m, err := l.Load(ctx, job.Core)
	if err != nil {
		return err
	}
	svc, err := newCompileService(ctx, m, job.Config)
	if err != nil {
		return err
	}
	h := service.NewExclusive(svc)
	defer closeLogged(logger, "CompileService", h.Close)

	for _, compiler := range job.Compilers {
		logger.Debug("Loading compiler", zap.String("path", compiler))
		if err := h.Value().LoadCompilerFromPath(ctx, compiler); err != nil {
			return fmt.Errorf("pipeline: loading compiler %s: %w", compiler, err)
		}
	}
	for _, source := range job.Sources {
		logger.Debug("Adding source", zap.String("path", source))
		if err := h.Value().AddFile(ctx, source); err != nil {
			return fmt.Errorf("pipeline: adding source %s: %w", source, err)
		}
	}

	namer := job.Namer
	if namer == nil {
		namer = LoggingNamer(logger)
	}
	if err := h.Value().Compile(ctx, namer); err != nil {
		if !errors.Is(err, service.ErrCompile) {
			err = fmt.Errorf("%w: %w", service.ErrCompile, err)
		}
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("Compilation finished", zap.Int("sources", len(job.Sources)))
	return nil
}

func newCompileService(ctx context.Context, m loader.Module, cfg service.Config) (service.CompileService, error) {
	if cfg == nil {
		newFn, err := loader.Resolve[service.NewCompileServiceFunc](m, service.EntryNewCompileService)
		if err != nil {
			return nil, err
		}
		svc, err := newFn(ctx)
		return constructed(service.EntryNewCompileService, svc, err)
	}
	newFn, err := loader.Resolve[service.NewCompileServiceWithConfigFunc](m, service.EntryNewCompileServiceWithConfig)
	if err != nil {
		return nil, err
	}
	svc, err := newFn(ctx, cfg)
	return constructed(service.EntryNewCompileServiceWithConfig, svc, err)
}
