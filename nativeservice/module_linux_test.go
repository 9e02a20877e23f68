//go:build linux

package nativeservice

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/service"
)

// libcPath finds a shared object every Linux system carries.
func libcPath(t *testing.T) string {
	t.Helper()
	for _, p := range []string{
		"/lib/x86_64-linux-gnu/libc.so.6",
		"/lib/aarch64-linux-gnu/libc.so.6",
		"/lib64/libc.so.6",
		"/usr/lib64/libc.so.6",
		"/usr/lib/libc.so.6",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("libc not found")
	return ""
}

func TestOpenErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewOpener(nil).Open(context.Background(), filepath.Join(t.TempDir(), "Runtime"))
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("not a shared object", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Runtime")
		require.NoError(t, os.WriteFile(path, []byte("not an ELF file"), 0o600))

		_, err := NewOpener(nil).Open(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dlopen")
	})

	t.Run("bare name not on the library path", func(t *testing.T) {
		_, err := NewOpener(nil).Open(context.Background(), "libpurelang-no-such-runtime.so")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dlopen")
	})
}

func TestOpenBareNameSearchesLibraryPath(t *testing.T) {
	name := filepath.Base(libcPath(t))
	mod, err := NewOpener(nil).Open(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, name, mod.Path())
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	mod, err := NewOpener(nil).Open(ctx, libcPath(t))
	require.NoError(t, err)
	defer mod.Close(ctx)

	t.Run("absent factory", func(t *testing.T) {
		_, err := loader.Resolve[service.NewVMFunc](mod, service.EntryNewVM)
		assert.ErrorIs(t, err, service.ErrSymbolNotFound)
	})

	t.Run("present symbol resolves to its address", func(t *testing.T) {
		sym, err := loader.Resolve[uintptr](mod, "strlen")
		require.NoError(t, err)
		assert.NotZero(t, sym)
	})

	t.Run("present symbol asserted as a factory", func(t *testing.T) {
		_, err := loader.Resolve[service.NewVMFunc](mod, "strlen")
		assert.ErrorIs(t, err, service.ErrSignatureMismatch)
	})

	t.Run("missing method symbols", func(t *testing.T) {
		m := mod.(*Module)
		_, err := m.newVM(1)
		assert.ErrorIs(t, err, ErrRequiredSymbolNotExported)
	})
}

func TestLoaderOpensNativeModuleOnce(t *testing.T) {
	ctx := context.Background()
	l := loader.New(NewOpener(nil), nil)
	defer l.Close(ctx)

	first, err := l.Load(ctx, libcPath(t))
	require.NoError(t, err)
	second, err := l.Load(ctx, libcPath(t))
	require.NoError(t, err)
	assert.Same(t, first, second)
}
