//go:build wasm

package mem

//go:wasmexport purelang_alloc
func _alloc(size uint32) uint32 {
	return Alloc(size)
}
