package wasmservice

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/purelang/launcher/runtime"
	"github.com/purelang/launcher/service"
)

// stackKey is the key used to store the stack in the context
type stackKey struct{}

// Stack holds the data being passed between the host and the guest during
// one guest call.
type Stack struct {
	StatusReason string

	// Namer names compiled outputs while compile_service_compile runs.
	Namer service.OutputNamer
	// NamerErr is the first error returned by Namer.
	NamerErr error

	ExitCode    int64
	ExitCodeSet bool

	Logger *zap.Logger
}

// paramsFromContext retrieves the Stack from the context
func paramsFromContext(ctx context.Context) *Stack {
	if s, ok := ctx.Value(stackKey{}).(*Stack); ok {
		return s
	}
	return &Stack{}
}

// createContextWithStack creates a new context with a Stack
func createContextWithStack(ctx context.Context, stack *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, stack)
}

// serviceHostModule is the host module imported by service modules.
func serviceHostModule() runtime.HostModule {
	i32, i64 := api.ValueTypeI32, api.ValueTypeI64
	return runtime.HostModule{
		Name: hostModuleName,
		Functions: []runtime.HostFunction{
			{Name: setStatusReason, Params: []api.ValueType{i32, i32}, Func: setStatusReasonFn},
			{Name: outputPath, Params: []api.ValueType{i32, i32, i32, i32}, Results: []api.ValueType{i32}, Func: outputPathFn},
			{Name: setExitCode, Params: []api.ValueType{i64}, Func: setExitCodeFn},
			{Name: logMessage, Params: []api.ValueType{i32, i32}, Func: logMessageFn},
		},
	}
}

func setStatusReasonFn(ctx context.Context, mod api.Module, stack []uint64) {
	buf := uint32(stack[0])
	size := uint32(stack[1])

	paramsFromContext(ctx).StatusReason = readString(mod.Memory(), buf, size, "status reason")
}

// outputPathFn names the compiled output of a source. The result is written to
// buf when it fits in limit; the returned length lets the guest retry with a
// larger buffer. A naming failure returns 0 and is reported after the call.
func outputPathFn(ctx context.Context, mod api.Module, stack []uint64) {
	src := uint32(stack[0])
	srcLen := uint32(stack[1])
	buf := uint32(stack[2])
	bufLimit := uint32(stack[3])

	params := paramsFromContext(ctx)
	if params.Namer == nil {
		stack[0] = 0
		return
	}

	source := readString(mod.Memory(), src, srcLen, "source path")
	out, err := params.Namer(source)
	if err != nil {
		if params.NamerErr == nil {
			params.NamerErr = err
		}
		stack[0] = 0
		return
	}

	stack[0] = uint64(writeBytesIfUnderLimit(mod.Memory(), []byte(out), buf, bufLimit))
}

func setExitCodeFn(ctx context.Context, _ api.Module, stack []uint64) {
	params := paramsFromContext(ctx)
	params.ExitCode = int64(stack[0])
	params.ExitCodeSet = true
}

// LogMessage is a log record emitted by the guest. Level uses slog levels.
type LogMessage struct {
	Level   int32             `json:"level"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func logMessageFn(ctx context.Context, mod api.Module, stack []uint64) {
	buf := uint32(stack[0])
	size := uint32(stack[1])

	logger := paramsFromContext(ctx).Logger
	if logger == nil {
		return
	}

	b, ok := mod.Memory().Read(buf, size)
	if !ok {
		panic("out of memory reading log message") // Bug: caller passed a length outside memory
	}

	var msg LogMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		logger.Error("failed to unmarshal log message from guest", zap.Error(err))
		return
	}

	fields := make([]zap.Field, 0, len(msg.Fields))
	for k, v := range msg.Fields {
		fields = append(fields, zap.String(k, v))
	}
	logger.Log(zapLevelFromSlogLevel(msg.Level), msg.Message, fields...)
}
