package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/purelang/launcher/service"
)

// OutputExtension is the extension of compiled artifacts.
const OutputExtension = "plb"

// OutputPath replaces the extension of source with OutputExtension, or adds it
// when source has none. A leading dot in the file name does not start an
// extension.
func OutputPath(source string) (string, error) {
	if !utf8.ValidString(source) {
		return "", fmt.Errorf("pipeline: source %q: %w", source, service.ErrPathEncoding)
	}

	trimmed := strings.TrimRight(source, string(filepath.Separator))
	base := filepath.Base(trimmed)
	if trimmed == "" || base == "." || base == ".." {
		return "", fmt.Errorf("pipeline: source %q has no file name", source)
	}

	stem := trimmed
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		stem = trimmed[:len(trimmed)-len(base)+i]
	}
	return stem + "." + OutputExtension, nil
}

// LoggingNamer is OutputPath with a debug line per named source.
func LoggingNamer(logger *zap.Logger) service.OutputNamer {
	logger = loggerOrNop(logger)
	return func(source string) (string, error) {
		out, err := OutputPath(source)
		if err != nil {
			return "", err
		}
		logger.Debug("Naming compiled output", zap.String("source", source), zap.String("output", out))
		return out, nil
	}
}
