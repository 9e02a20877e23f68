package runtime

import (
	"fmt"
	"os"
)

// Mode selects how a runtime executes guest code.
type Mode string

const (
	// ModeInterpreter interprets guest code.
	ModeInterpreter Mode = "interpreter"
	// ModeCompiled compiles guest code ahead of execution.
	ModeCompiled Mode = "compiled"
)

// Validate validates the mode. The empty mode is accepted and means the default.
func (m Mode) Validate() error {
	switch m {
	case ModeInterpreter, ModeCompiled, "":
		return nil
	default:
		return fmt.Errorf("invalid runtime mode %q: %w", m, ErrInvalidConfiguration)
	}
}

// Config is the configuration of a runtime.
type Config struct {
	// Mode is the execution mode.
	Mode Mode `mapstructure:"mode"`

	// Env is the guest's WASI environment, as KEY=value pairs. Nil inherits
	// the launcher's environment.
	Env []string `mapstructure:"env"`
	// Dirs are host directories preopened for the guest. Nil preopens the
	// working directory.
	Dirs []string `mapstructure:"dirs"`

	// Name is the guest's argv[0].
	Name string `mapstructure:"-"`
}

// Default sets default values
func (c *Config) Default() {
	if c.Mode == "" {
		c.Mode = ModeInterpreter
	}
	if c.Env == nil {
		c.Env = os.Environ()
	}
	if c.Dirs == nil {
		c.Dirs = []string{"."}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return c.Mode.Validate()
}
