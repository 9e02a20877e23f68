//go:build !wasm

package imports

import "github.com/purelang/launcher/guest/internal/mem"

// This file is used to stub out the imports for running tests.

func setStatusReasonHost(ptr, size uint32) {}

func outputPathHost(src, srcLen uint32, buf uint32, limit mem.BufLimit) uint32 { return 0 }

func setExitCodeHost(code int64) {}

func logMessageHost(ptr, size uint32) {}
