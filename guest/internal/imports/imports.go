//go:build wasm

package imports

import "github.com/purelang/launcher/guest/internal/mem"

//go:wasmimport purelang.dev/service set_status_reason
func setStatusReasonHost(ptr, size uint32)

//go:wasmimport purelang.dev/service output_path
func outputPathHost(src, srcLen uint32, buf uint32, limit mem.BufLimit) (len uint32)

//go:wasmimport purelang.dev/service set_exit_code
func setExitCodeHost(code int64)

//go:wasmimport purelang.dev/service log_message
func logMessageHost(ptr, size uint32)
