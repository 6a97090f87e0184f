package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{raw: "", want: zerolog.InfoLevel, wantOK: false},
		{raw: "trace", want: zerolog.TraceLevel, wantOK: true},
		{raw: " DEBUG ", want: zerolog.DebugLevel, wantOK: true},
		{raw: "warning", want: zerolog.WarnLevel, wantOK: true},
		{raw: "error", want: zerolog.ErrorLevel, wantOK: true},
		{raw: "off", want: zerolog.Disabled, wantOK: true},
		{raw: "loud", want: zerolog.InfoLevel, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogNoColor, "true")

	cfg := FromEnv(ProfileRuntime)
	require.Equal(t, zerolog.WarnLevel, cfg.Level)
	require.True(t, cfg.JSON)
	require.True(t, cfg.NoColor)
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	t.Setenv(EnvLogFormat, "xml")
	t.Setenv(EnvLogNoColor, "maybe")

	cfg := FromEnv(ProfileTest)
	require.Equal(t, DefaultConfig(ProfileTest), cfg)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("erlport", Config{Level: zerolog.InfoLevel, JSON: true, Out: &buf})

	logger.Debug().Msg("hidden")
	logger.Info().Str("k", "v").Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"app":"erlport"`)
	require.Contains(t, buf.String(), `"k":"v"`)
	require.Contains(t, buf.String(), `"message":"shown"`)
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New("erlport", Config{Level: zerolog.DebugLevel, NoColor: true, Out: &buf})

	logger.Debug().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.Contains(t, buf.String(), "app=erlport")
}
