package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies string-to-level parsing including whitespace and case handling.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  zapcore.Level
		ok    bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"  INFO ", zapcore.InfoLevel, true},
		{"Warn", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"fatal", zapcore.FatalLevel, true},
		{"nonsense", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
	}

	for _, tc := range cases {
		got, ok := ParseLogLevel(tc.input)
		require.Equal(t, tc.ok, ok, "input %q", tc.input)
		require.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

// TestFromContextFallback verifies that a bare context yields the global logger.
func TestFromContextFallback(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestContextCarriesLogger verifies that ToContext/FromContext round-trip a logger
// and that WithName produces log entries carrying the component name.
func TestContextCarriesLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core).Sugar()

	ctx := ToContext(context.Background(), l)
	require.Same(t, l, FromContext(ctx))

	ctx = WithName(ctx, "assembler")
	Info(ctx, "hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "hello", entries[0].Message)
	require.Equal(t, "assembler", entries[0].LoggerName)
}

// TestWithKV verifies that WithKV attaches a field visible on subsequent entries.
func TestWithKV(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	ctx = WithKV(ctx, "chip", "rk3399")
	Warn(ctx, "slow partition scan")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "rk3399", entries[0].ContextMap()["chip"])
}
