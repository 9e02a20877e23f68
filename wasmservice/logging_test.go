package wasmservice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newMemoryModule instantiates a module that only exports memory.
func newMemoryModule(t *testing.T) api.Module {
	t.Helper()

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	mod, err := r.Instantiate(ctx, buildTestModule(wasmModuleDef{noImports: true}))
	require.NoError(t, err)
	return mod
}

func TestLogMessageFn(t *testing.T) {
	tests := []struct {
		name           string
		logMessage     LogMessage
		expectedLevel  zapcore.Level
		expectedFields map[string]string
	}{
		{
			name: "debug message",
			logMessage: LogMessage{
				Level:   int32(-4), // slog.LevelDebug
				Message: "debug message",
				Fields:  map[string]string{"key1": "value1"},
			},
			expectedLevel:  zapcore.DebugLevel,
			expectedFields: map[string]string{"key1": "value1"},
		},
		{
			name: "info message",
			logMessage: LogMessage{
				Level:   int32(0), // slog.LevelInfo
				Message: "info message",
				Fields:  map[string]string{"key2": "value2"},
			},
			expectedLevel:  zapcore.InfoLevel,
			expectedFields: map[string]string{"key2": "value2"},
		},
		{
			name: "warn message",
			logMessage: LogMessage{
				Level:   int32(4), // slog.LevelWarn
				Message: "warn message",
			},
			expectedLevel: zapcore.WarnLevel,
		},
		{
			name: "error message",
			logMessage: LogMessage{
				Level:   int32(8), // slog.LevelError
				Message: "error message",
				Fields:  map[string]string{"a": "1", "b": "2"},
			},
			expectedLevel:  zapcore.ErrorLevel,
			expectedFields: map[string]string{"a": "1", "b": "2"},
		},
		{
			name: "level between debug and info",
			logMessage: LogMessage{
				Level:   int32(-2),
				Message: "trace-ish",
			},
			expectedLevel: zapcore.DebugLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.DebugLevel)
			ctx := createContextWithStack(context.Background(), &Stack{Logger: zap.New(core)})
			mod := newMemoryModule(t)

			logBytes, err := json.Marshal(tt.logMessage)
			require.NoError(t, err)
			require.True(t, mod.Memory().Write(0, logBytes))

			logMessageFn(ctx, mod, []uint64{0, uint64(len(logBytes))})

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.expectedLevel, logs[0].Level)
			assert.Equal(t, tt.logMessage.Message, logs[0].Message)
			assert.Len(t, logs[0].Context, len(tt.expectedFields))
			for key, value := range tt.expectedFields {
				assert.Equal(t, value, logs[0].ContextMap()[key])
			}
		})
	}
}

func TestLogMessageFnWithInvalidJSON(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	ctx := createContextWithStack(context.Background(), &Stack{Logger: zap.New(core)})
	mod := newMemoryModule(t)

	invalidJSON := []byte(`{"invalid": json}`)
	require.True(t, mod.Memory().Write(0, invalidJSON))

	logMessageFn(ctx, mod, []uint64{0, uint64(len(invalidJSON))})

	logs := observed.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	assert.Contains(t, logs[0].Message, "failed to unmarshal log message from guest")
}

func TestLogMessageFnWithoutLogger(t *testing.T) {
	mod := newMemoryModule(t)

	assert.NotPanics(t, func() {
		logMessageFn(createContextWithStack(context.Background(), &Stack{}), mod, []uint64{0, 4})
		logMessageFn(context.Background(), mod, []uint64{0, 4})
	})
}

func TestOutputPathFn(t *testing.T) {
	mod := newMemoryModule(t)
	require.True(t, mod.Memory().Write(0, []byte("lib/b.pl")))
	namer := func(s string) (string, error) { return s + "b", nil }

	t.Run("fits", func(t *testing.T) {
		stack := &Stack{Namer: namer}
		wasmStack := []uint64{0, 8, 100, 64}
		outputPathFn(createContextWithStack(context.Background(), stack), mod, wasmStack)

		assert.Equal(t, uint64(9), wasmStack[0])
		got, ok := mod.Memory().Read(100, 9)
		require.True(t, ok)
		assert.Equal(t, "lib/b.plb", string(got))
	})

	t.Run("does not fit", func(t *testing.T) {
		stack := &Stack{Namer: namer}
		wasmStack := []uint64{0, 8, 200, 4}
		outputPathFn(createContextWithStack(context.Background(), stack), mod, wasmStack)

		assert.Equal(t, uint64(9), wasmStack[0])
		got, ok := mod.Memory().Read(200, 4)
		require.True(t, ok)
		assert.Equal(t, []byte{0, 0, 0, 0}, got)
	})

	t.Run("no namer", func(t *testing.T) {
		wasmStack := []uint64{0, 8, 300, 64}
		outputPathFn(createContextWithStack(context.Background(), &Stack{}), mod, wasmStack)
		assert.Zero(t, wasmStack[0])
	})
}

func TestSetExitCodeFn(t *testing.T) {
	stack := &Stack{}
	setExitCodeFn(createContextWithStack(context.Background(), stack), nil, []uint64{uint64(0xffffffffffffffff)})

	assert.True(t, stack.ExitCodeSet)
	assert.Equal(t, int64(-1), stack.ExitCode)
}
