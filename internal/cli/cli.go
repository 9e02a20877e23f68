// Package cli implements the purelang command line: flag parsing, logger
// setup and the mapping of pipeline results to process exit codes.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/purelang/launcher/internal/config"
	"github.com/purelang/launcher/loader"
	"github.com/purelang/launcher/nativeservice"
	"github.com/purelang/launcher/pipeline"
	"github.com/purelang/launcher/runtime"
	"github.com/purelang/launcher/wasmservice"
)

// ExitFailure is the process exit code for any fatal launcher error.
const ExitFailure = 1

// ModuleLoader loads service modules for the pipelines and releases them at
// exit.
type ModuleLoader interface {
	pipeline.ModuleLoader
	Close(ctx context.Context) error
}

// Options configure Execute.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// NewLoader builds the module loader. Defaults to NewModuleLoader.
	NewLoader func(*config.Settings, *zap.Logger) ModuleLoader
}

// NewModuleLoader returns a loader opening .wasm paths with wazero and every
// other path as a native shared object.
func NewModuleLoader(s *config.Settings, logger *zap.Logger) ModuleLoader {
	wasmOpener := wasmservice.NewOpener(wasmservice.Config{
		RuntimeType: runtime.TypeWazero,
		Runtime:     runtime.Config{Mode: s.WasmMode},
	}, logger)
	return loader.New(loader.ByExtension{
		Openers: map[string]loader.Opener{".wasm": wasmOpener},
		Default: nativeservice.NewOpener(logger),
	}, logger)
}

// Main runs the launcher with os.Args-style arguments (without the program
// name) and returns the process exit code.
func Main(args []string) int {
	return Execute(context.Background(), args, Options{Stdout: os.Stdout, Stderr: os.Stderr})
}

// Execute runs the launcher and returns the process exit code: 0 on success,
// the program's status for run, ExitFailure on any error.
func Execute(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.NewLoader == nil {
		opts.NewLoader = NewModuleLoader
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintln(opts.Stderr, "purelang:", err)
		return ExitFailure
	}

	a := &app{settings: settings, opts: opts, logger: zap.NewNop()}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err = root.ExecuteContext(ctx)
	if a.loader != nil {
		if cerr := a.loader.Close(ctx); cerr != nil {
			a.logger.Warn("Failed to close service modules", zap.Error(cerr))
		}
	}
	if err != nil {
		a.logger.Error("Command failed", zap.Error(err))
		fmt.Fprintln(opts.Stderr, "purelang:", err)
		return ExitFailure
	}
	_ = a.logger.Sync()
	return int(a.status)
}

// app is the state of one launcher invocation.
type app struct {
	settings *config.Settings
	opts     Options
	logLevel string

	logger *zap.Logger
	loader ModuleLoader
	status pipeline.ExitStatus
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "purelang",
		Short:         "Compile and run programs with dynamically loaded service modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(a.logLevel, a.opts.Stderr)
			if err != nil {
				return err
			}
			a.logger = logger
			a.loader = a.opts.NewLoader(a.settings, logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", a.settings.LogLevel,
		"log level (debug, info, warn, error)")

	root.AddCommand(a.compileCommand(), a.runCommand())
	return root
}

// newLogger builds the console logger on w at level.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core).Named("purelang"), nil
}
