package wasmservice

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// These utility functions are derived from the kube-scheduler-wasm-extension.
// https://github.com/kubernetes-sigs/kube-scheduler-wasm-extension

// writeBytesIfUnderLimit writes bytes to memory if they fit within the limit.
// It returns the length of bytes either way, so the guest can retry with a
// larger buffer.
func writeBytesIfUnderLimit(memory api.Memory, bytes []byte, buf, bufLimit uint32) uint32 {
	n := uint32(len(bytes))
	if n == 0 || n > bufLimit {
		return n
	}
	if !memory.Write(buf, bytes) {
		panic("out of memory writing result") // Bug: caller passed a length outside memory
	}
	return n
}

// readString reads a guest string or panics, trapping the guest call.
func readString(memory api.Memory, ptr, size uint32, what string) string {
	b, ok := memory.Read(ptr, size)
	if !ok {
		panic(fmt.Sprintf("out of memory reading %s", what)) // Bug: caller passed a length outside memory
	}
	return string(b)
}

// push copies data into guest memory allocated by the guest allocator and
// returns its location. Empty payloads are passed as (0, 0).
func (m *Module) push(ctx context.Context, data []byte) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	alloc := m.instance.Export(allocFunction)
	if alloc == nil {
		return 0, 0, fmt.Errorf("wasm: %s is not exported: %w", allocFunction, ErrRequiredFunctionNotExported)
	}
	res, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("wasm: failed to call %s: %w", allocFunction, err)
	}
	if len(res) == 0 || uint32(res[0]) == 0 {
		return 0, 0, fmt.Errorf("wasm: %s returned null", allocFunction)
	}

	ptr := uint32(res[0])
	mem := m.instance.Memory()
	if mem == nil || !mem.Write(ptr, data) {
		return 0, 0, fmt.Errorf("wasm: failed to write payload of %d bytes at %d", len(data), ptr)
	}
	return ptr, uint32(len(data)), nil
}
