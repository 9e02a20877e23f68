// Package runtime abstracts the WebAssembly engine that runs wasm service
// modules. Engines register by name; wasmservice picks one per module.
package runtime

import "context"

// Runtime loads one guest module. Each wasm service module gets its own
// Runtime, so WASI state and host modules are never shared between guests.
type Runtime interface {
	// Load compiles binary, links it against WASI preview1 and host, runs the
	// reactor initializer if the guest exports one, and returns the instance.
	// Host functions called during initialization see ctx.
	Load(ctx context.Context, binary []byte, host HostModule) (Instance, error)
	// Close releases the engine and every instance it loaded.
	Close(ctx context.Context) error
}

// Instance is a loaded guest module.
type Instance interface {
	// Export returns the exported function name, or nil when there is none.
	Export(name string) Function
	// Memory returns the guest's linear memory.
	Memory() Memory
	// Bind returns ctx carrying the engine state guest calls need, such as
	// the WASI system. Every call into the guest must use a bound context.
	Bind(ctx context.Context) context.Context
	// Close releases the instance and its WASI system.
	Close(ctx context.Context) error
}

// Function is an exported guest function.
type Function interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
	// Arity reports how many params and results the export declares.
	Arity() (params, results int)
}

// Memory is a guest's linear memory.
type Memory interface {
	Read(offset, size uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}
