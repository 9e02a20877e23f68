// Package wazero registers a runtime.Runtime backed by wazero, with WASI
// preview1 provided by wasi-go.
package wazero

import "github.com/purelang/launcher/runtime"

func init() {
	runtime.Register(runtime.TypeWazero, newEngine)
}
