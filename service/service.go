// Package service defines the capability contracts shared by the launcher and
// the service modules it loads: capability interfaces, entry point names and
// their Go factory signatures.
package service

import "context"

// Entry point names exported by service modules. Resolution is by exact name.
const (
	EntryNewCompileService              = "NewCompileService"
	EntryNewCompileServiceWithConfig    = "NewCompileServiceWithConfig"
	EntryNewVM                          = "NewVM"
	EntryNewVMWithConfig                = "NewVMWithConfig"
	EntryNewVMWithConfigAssemblyManager = "NewVMWithConfigAssemblyManager"
	EntryNewAssemblyManager             = "NewAssemblyManager"
)

// EntryPoints lists every factory a backend binds to a typed Go function.
var EntryPoints = []string{
	EntryNewCompileService,
	EntryNewCompileServiceWithConfig,
	EntryNewVM,
	EntryNewVMWithConfig,
	EntryNewVMWithConfigAssemblyManager,
	EntryNewAssemblyManager,
}

// Factory signatures. Backends return these from Module.Lookup for the names
// above; loader.Resolve asserts them at the boundary.
type (
	NewCompileServiceFunc              func(ctx context.Context) (CompileService, error)
	NewCompileServiceWithConfigFunc    func(ctx context.Context, cfg Config) (CompileService, error)
	NewVMFunc                          func(ctx context.Context) (VM, error)
	NewVMWithConfigFunc                func(ctx context.Context, cfg Config) (VM, error)
	NewVMWithConfigAssemblyManagerFunc func(ctx context.Context, cfg Config, am AssemblyManager) (VM, error)
	NewAssemblyManagerFunc             func(ctx context.Context) (AssemblyManager, error)
)

// OutputNamer maps a source path to the path of its compiled artifact.
type OutputNamer func(source string) (string, error)

// CompileService is the compiler capability.
type CompileService interface {
	// LoadCompilerFromPath registers a compiler plugin. Later registrations may
	// take precedence over earlier ones.
	LoadCompilerFromPath(ctx context.Context, path string) error
	// AddFile adds a source file to the pending set.
	AddFile(ctx context.Context, path string) error
	// Compile compiles every pending source, naming outputs with name.
	Compile(ctx context.Context, name OutputNamer) error
}

// AssemblyManager owns the assemblies loaded into a VM.
type AssemblyManager interface {
	LoadFromBinaryAssemblies(ctx context.Context, assemblies []*Assembly) error
}

// CPUID identifies an execution context spawned by a VM.
type CPUID uint64

// VM is the runtime capability.
type VM interface {
	AssemblyManager() AssemblyManager
	// LoadStatics initializes static state of the loaded assemblies.
	LoadStatics(ctx context.Context) error
	// NewCPU spawns an execution context.
	NewCPU(ctx context.Context) (CPUID, CPU, error)
}

// CPU is an execution context.
type CPU interface {
	// Run blocks until the entry class of the entry assembly finishes and
	// returns the status code reported by the program.
	Run(ctx context.Context, assembly, class string, args []string) (int64, error)
}
