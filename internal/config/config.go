// Package config loads launcher settings from the environment and service
// configuration records from files.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/purelang/launcher/runtime"
	"github.com/purelang/launcher/service"
)

// EnvPrefix prefixes every environment variable the launcher reads.
const EnvPrefix = "PURELANG_"

// Module names under <home>/Native.
const (
	CompileServiceModule = "CompileService"
	RuntimeModule        = "Runtime"
)

// Settings are the launcher-level settings taken from the environment.
type Settings struct {
	// Home is PURELANG_HOME, the base of the default module paths.
	Home string `koanf:"home"`
	// LogLevel is PURELANG_LOG_LEVEL.
	LogLevel string `koanf:"log_level"`
	// WasmMode is PURELANG_WASM_MODE, the wazero engine used for .wasm modules.
	WasmMode runtime.Mode `koanf:"wasm_mode"`
}

// Default fills unset fields.
func (s *Settings) Default() {
	if s.LogLevel == "" {
		s.LogLevel = "warn"
	}
	if s.WasmMode == "" {
		s.WasmMode = runtime.ModeInterpreter
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	return s.WasmMode.Validate()
}

// LoadSettings reads PURELANG_* variables from the process environment.
func LoadSettings() (*Settings, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	var s Settings
	err = k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           &s,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("config: decoding settings: %w", err)
	}
	s.Default()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &s, nil
}

// DefaultCore returns the default path of the named module: <home>/Native/<name>,
// or the bare name when home is empty.
func (s *Settings) DefaultCore(name string) string {
	if s.Home == "" {
		return name
	}
	return filepath.Join(s.Home, "Native", name)
}

// Type is the format of a service configuration file.
type Type string

var _ pflag.Value = (*Type)(nil)

// TypeJSON is the only recognized configuration format.
const TypeJSON Type = "JSON"

// ParseType parses a configuration type name, ignoring case.
func ParseType(s string) (Type, error) {
	if strings.EqualFold(s, string(TypeJSON)) {
		return TypeJSON, nil
	}
	return "", fmt.Errorf("config: %q: %w (supported: %s)", s, service.ErrUnsupportedConfigType, TypeJSON)
}

// String implements pflag.Value.
func (t *Type) String() string {
	if *t == "" {
		return string(TypeJSON)
	}
	return string(*t)
}

// Set implements pflag.Value.
func (t *Type) Set(s string) error {
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Type implements pflag.Value.
func (t *Type) Type() string {
	return "type"
}

// LoadServiceConfig reads the configuration file at path and checks that it
// holds a JSON object. The file's bytes are returned unchanged. Read failures
// are returned as is; malformed content wraps service.ErrConfigParse.
func LoadServiceConfig(path string, typ Type) (service.Config, error) {
	if typ == "" {
		typ = TypeJSON
	}
	if _, err := ParseType(string(typ)); err != nil {
		return nil, err
	}

	b, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	m, err := json.Parser().Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w: %w", path, service.ErrConfigParse, err)
	}
	if m == nil {
		return nil, fmt.Errorf("config: %s: %w: not a JSON object", path, service.ErrConfigParse)
	}
	return service.Config(b), nil
}
