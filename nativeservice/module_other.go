//go:build !(darwin || freebsd || linux)

package nativeservice

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/purelang/launcher/loader"
)

// Opener reports ErrUnsupportedPlatform; dlopen is unavailable here.
type Opener struct {
	Logger *zap.Logger
}

// NewOpener returns an Opener logging to logger.
func NewOpener(logger *zap.Logger) *Opener {
	return &Opener{Logger: logger}
}

// Open always fails.
func (o *Opener) Open(_ context.Context, path string) (loader.Module, error) {
	return nil, fmt.Errorf("native: %s: %w", path, ErrUnsupportedPlatform)
}
