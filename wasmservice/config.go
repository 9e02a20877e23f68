package wasmservice

import (
	"github.com/purelang/launcher/runtime"
)

// Config defines how service modules are executed.
type Config struct {
	// RuntimeType selects a registered runtime. Empty means wazero.
	RuntimeType string `mapstructure:"runtime_type"`

	// Runtime is the configuration of the wasm runtime.
	Runtime runtime.Config `mapstructure:"runtime"`
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	return cfg.Runtime.Validate()
}
