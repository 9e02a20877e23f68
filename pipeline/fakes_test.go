package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/service"
)

// recorder collects calls made on fake capabilities in order.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeModule struct {
	path    string
	symbols map[string]any
}

func (m *fakeModule) Path() string { return m.path }

func (m *fakeModule) Lookup(name string) (any, error) {
	sym, ok := m.symbols[name]
	if !ok {
		return nil, service.ErrSymbolNotFound
	}
	return sym, nil
}

func (m *fakeModule) Close(context.Context) error { return nil }

type fakeLoader struct {
	modules map[string]*fakeModule
	loads   []string
}

func (l *fakeLoader) Load(_ context.Context, path string) (loader.Module, error) {
	l.loads = append(l.loads, path)
	m, ok := l.modules[path]
	if !ok {
		return nil, fmt.Errorf("loader: %s: %w", path, service.ErrLoad)
	}
	return m, nil
}

type fakeCompileService struct {
	rec        *recorder
	failOn     string
	compileErr error
	sources    []string
	outputs    []string
	closed     int
}

func (s *fakeCompileService) LoadCompilerFromPath(_ context.Context, path string) error {
	s.rec.add("load(%s)", path)
	if path == s.failOn {
		return errors.New("bad compiler plugin")
	}
	return nil
}

func (s *fakeCompileService) AddFile(_ context.Context, path string) error {
	s.rec.add("add(%s)", path)
	if path == s.failOn {
		return errors.New("unreadable source")
	}
	s.sources = append(s.sources, path)
	return nil
}

func (s *fakeCompileService) Compile(_ context.Context, name service.OutputNamer) error {
	s.rec.add("compile()")
	for _, src := range s.sources {
		out, err := name(src)
		if err != nil {
			return err
		}
		s.outputs = append(s.outputs, out)
	}
	return s.compileErr
}

func (s *fakeCompileService) Close() error {
	s.closed++
	return nil
}

type fakeDecoder struct {
	rec *recorder
	bad string
}

func (d fakeDecoder) DecodeFile(path string) (*service.Assembly, error) {
	d.rec.add("decode(%s)", path)
	if path == d.bad {
		return nil, fmt.Errorf("%s: %w", path, service.ErrAssemblyDecode)
	}
	return &service.Assembly{Name: path}, nil
}

type fakeAssemblyManager struct {
	rec    *recorder
	loaded []*service.Assembly
	closed int
}

func (am *fakeAssemblyManager) LoadFromBinaryAssemblies(_ context.Context, assemblies []*service.Assembly) error {
	names := make([]string, len(assemblies))
	for i, a := range assemblies {
		names[i] = a.Name
	}
	am.rec.add("load_from_binary_assemblies([%s])", strings.Join(names, ","))
	am.loaded = assemblies
	return nil
}

func (am *fakeAssemblyManager) Close() error {
	am.closed++
	return nil
}

type fakeVM struct {
	rec      *recorder
	am       service.AssemblyManager
	cpu      *fakeCPU
	closed   int
	closedAt []string
}

func (vm *fakeVM) AssemblyManager() service.AssemblyManager { return vm.am }

func (vm *fakeVM) LoadStatics(context.Context) error {
	vm.rec.add("load_statics()")
	return nil
}

func (vm *fakeVM) NewCPU(context.Context) (service.CPUID, service.CPU, error) {
	vm.rec.add("new_cpu()")
	return 1, vm.cpu, nil
}

func (vm *fakeVM) Close() error {
	vm.closed++
	vm.closedAt = append([]string(nil), vm.rec.calls...)
	return nil
}

type fakeCPU struct {
	rec    *recorder
	status int64
	err    error
}

func (c *fakeCPU) Run(_ context.Context, assembly, class string, args []string) (int64, error) {
	c.rec.add("run(%q,%q,%q)", assembly, class, args)
	return c.status, c.err
}
