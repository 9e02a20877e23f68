package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelang/launcher/runtime"
	"github.com/purelang/launcher/service"
)

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("PURELANG_HOME", "")
		t.Setenv("PURELANG_LOG_LEVEL", "")
		t.Setenv("PURELANG_WASM_MODE", "")

		s, err := LoadSettings()
		require.NoError(t, err)
		assert.Equal(t, "", s.Home)
		assert.Equal(t, "warn", s.LogLevel)
		assert.Equal(t, runtime.ModeInterpreter, s.WasmMode)
		assert.Equal(t, "CompileService", s.DefaultCore(CompileServiceModule))
		assert.Equal(t, "Runtime", s.DefaultCore(RuntimeModule))
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("PURELANG_HOME", "/opt/purelang")
		t.Setenv("PURELANG_LOG_LEVEL", "debug")
		t.Setenv("PURELANG_WASM_MODE", "compiled")

		s, err := LoadSettings()
		require.NoError(t, err)
		assert.Equal(t, "/opt/purelang", s.Home)
		assert.Equal(t, "debug", s.LogLevel)
		assert.Equal(t, runtime.ModeCompiled, s.WasmMode)
		assert.Equal(t, filepath.Join("/opt/purelang", "Native", "CompileService"), s.DefaultCore(CompileServiceModule))
		assert.Equal(t, filepath.Join("/opt/purelang", "Native", "Runtime"), s.DefaultCore(RuntimeModule))
	})

	t.Run("invalid wasm mode", func(t *testing.T) {
		t.Setenv("PURELANG_WASM_MODE", "jit")

		_, err := LoadSettings()
		assert.ErrorIs(t, err, runtime.ErrInvalidConfiguration)
	})
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "JSON", want: TypeJSON},
		{in: "json", want: TypeJSON},
		{in: "Json", want: TypeJSON},
		{in: "YAML", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, service.ErrUnsupportedConfigType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeFlagValue(t *testing.T) {
	var typ Type
	assert.Equal(t, "JSON", typ.String())
	require.NoError(t, typ.Set("json"))
	assert.Equal(t, TypeJSON, typ)
	assert.ErrorIs(t, typ.Set("toml"), service.ErrUnsupportedConfigType)
}

func TestLoadServiceConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	t.Run("valid", func(t *testing.T) {
		path := write("vm.json", `{"heap": {"max": "64m"}, "threads": 4}`)
		cfg, err := LoadServiceConfig(path, TypeJSON)
		require.NoError(t, err)
		assert.Equal(t, service.Config(`{"heap": {"max": "64m"}, "threads": 4}`), cfg)
	})

	t.Run("content is passed through unchanged", func(t *testing.T) {
		content := `{"seed": 9007199254740993, "a.b": 1, "a": {"c": 2}}`
		cfg, err := LoadServiceConfig(write("seed.json", content), TypeJSON)
		require.NoError(t, err)
		b, err := cfg.JSON()
		require.NoError(t, err)
		assert.Equal(t, content, string(b))
	})

	t.Run("empty object is still a configuration", func(t *testing.T) {
		cfg, err := LoadServiceConfig(write("empty.json", `{}`), "")
		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, service.Config(`{}`), cfg)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := LoadServiceConfig(write("bad.json", `{"heap": `), TypeJSON)
		assert.ErrorIs(t, err, service.ErrConfigParse)
	})

	t.Run("not an object", func(t *testing.T) {
		for _, content := range []string{`[1, 2]`, `null`, `4`, ``} {
			_, err := LoadServiceConfig(write("other.json", content), TypeJSON)
			assert.ErrorIs(t, err, service.ErrConfigParse, content)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadServiceConfig(filepath.Join(dir, "missing.json"), TypeJSON)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.NotErrorIs(t, err, service.ErrConfigParse)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := LoadServiceConfig(write("vm.yaml", `heap: 1`), Type("YAML"))
		assert.ErrorIs(t, err, service.ErrUnsupportedConfigType)
	})
}
