// Package pipeline drives loaded service modules through the compile and run
// call sequences.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/purelang/launcher/loader"
)

// ModuleLoader is the part of loader.Loader the pipelines use.
type ModuleLoader interface {
	Load(ctx context.Context, path string) (loader.Module, error)
}

var _ ModuleLoader = (*loader.Loader)(nil)

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// closeLogged releases a handle at the end of a pipeline. Release failures
// are logged rather than returned: the pipeline result has already been
// decided.
func closeLogged(logger *zap.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("Failed to release capability", zap.String("capability", what), zap.Error(err))
	}
}

// constructed checks the result of a factory entry point.
func constructed[T any](entry string, v T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, fmt.Errorf("pipeline: %s: %w", entry, err)
	}
	if any(v) == nil {
		return zero, fmt.Errorf("pipeline: %s returned no capability", entry)
	}
	return v, nil
}
