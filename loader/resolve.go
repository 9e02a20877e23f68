package loader

import (
	"errors"
	"fmt"

	"github.com/purelang/launcher/service"
)

// Resolve looks up name in m and asserts it to the factory type F.
//
// The assertion checks the Go binding the backend produced. For native modules
// the C signature behind a present symbol cannot be verified and is trusted.
func Resolve[F any](m Module, name string) (F, error) {
	var zero F

	sym, err := m.Lookup(name)
	if err != nil {
		if !errors.Is(err, service.ErrSymbolNotFound) {
			err = fmt.Errorf("%w: %w", service.ErrSymbolNotFound, err)
		}
		return zero, fmt.Errorf("loader: resolving %s in %s: %w", name, m.Path(), err)
	}

	f, ok := sym.(F)
	if !ok {
		return zero, fmt.Errorf("loader: resolving %s in %s: got %T, want %T: %w",
			name, m.Path(), sym, zero, service.ErrSignatureMismatch)
	}
	return f, nil
}
