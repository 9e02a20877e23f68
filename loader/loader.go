package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/purelang/launcher/service"
)

// Loader caches loaded modules by path. Concurrent first loads of a path share
// one open; failed opens are not cached, so a later Load retries. No lock is
// held while a module opens, so a module may load another one during its own
// initialization.
type Loader struct {
	opener Opener
	logger *zap.Logger

	group   singleflight.Group
	mu      sync.Mutex
	modules map[string]Module
}

// New returns a Loader that opens modules with opener.
func New(opener Opener, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		opener:  opener,
		logger:  logger,
		modules: make(map[string]Module),
	}
}

// Load returns the module at path, opening it on first use.
func (l *Loader) Load(ctx context.Context, path string) (Module, error) {
	key, err := cacheKey(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w: %w", path, service.ErrLoad, err)
	}
	if m, ok := l.cached(key); ok {
		l.logger.Debug("Service module already loaded", zap.String("path", key))
		return m, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if m, ok := l.cached(key); ok {
			return m, nil
		}

		// Openers get the key: an absolute path, or a bare name for dlopen to search.
		l.logger.Info("Loading service module", zap.String("path", key))
		m, err := l.opener.Open(ctx, key)
		if err != nil {
			if !errors.Is(err, service.ErrLoad) {
				err = fmt.Errorf("%w: %w", service.ErrLoad, err)
			}
			return nil, fmt.Errorf("loader: %s: %w", path, err)
		}

		l.mu.Lock()
		l.modules[key] = m
		l.mu.Unlock()

		l.logger.Info("Service module loaded", zap.String("path", key))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Module), nil
}

// Close closes every loaded module and forgets it.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	keys := make([]string, 0, len(l.modules))
	for k := range l.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	modules := l.modules
	l.modules = make(map[string]Module)
	l.mu.Unlock()

	var err error
	for _, k := range keys {
		err = multierr.Append(err, modules[k].Close(ctx))
	}
	return err
}

func (l *Loader) cached(key string) (Module, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[key]
	return m, ok
}

// cacheKey is the cleaned absolute path. A bare name such as "Runtime" is
// kept as is so native openers can search the library path for it.
func cacheKey(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty module path")
	}
	if isBareName(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func isBareName(path string) bool {
	return path != "." && path != ".." && !strings.ContainsRune(path, '/') &&
		!strings.ContainsRune(path, filepath.Separator)
}
