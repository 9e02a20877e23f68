package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/purelang/launcher/service"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"x.pl", "x.plb"},
		{"y.pl", "y.plb"},
		{"src/app/main.pl", "src/app/main.plb"},
		{"archive.tar.pl", "archive.tar.plb"},
		{"noext", "noext.plb"},
		{"dir.d/noext", "dir.d/noext.plb"},
		{".hidden", ".hidden.plb"},
		{"trailing.", "trailing.plb"},
		{"src/x.pl/", "src/x.plb"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := OutputPath(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputPathErrors(t *testing.T) {
	_, err := OutputPath("bad\xff.pl")
	assert.ErrorIs(t, err, service.ErrPathEncoding)

	for _, source := range []string{"", "/", "..", "src/.."} {
		_, err := OutputPath(source)
		assert.Error(t, err, source)
	}
}

func TestLoggingNamer(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	name := LoggingNamer(zap.New(core))

	out, err := name("x.pl")
	require.NoError(t, err)
	assert.Equal(t, "x.plb", out)

	entries := observed.FilterMessage("Naming compiled output").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "x.pl", entries[0].ContextMap()["source"])
	assert.Equal(t, "x.plb", entries[0].ContextMap()["output"])
}
