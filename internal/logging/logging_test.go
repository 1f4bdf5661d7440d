package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, Options{Level: "debug", Format: FormatJSON, Component: "cosim"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Debug().Int("ratio", 4).Msg("sub timestep")
	output := buf.String()
	for _, want := range []string{`"component":"cosim"`, `"ratio":4`, "sub timestep", `"level":"debug"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got: %s", want, output)
		}
	}
}

func TestNewLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, Options{Level: "warn", Format: FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn, got: %s", buf.String())
	}
	logger.Warn().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn missing, got: %s", buf.String())
	}
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, Options{Component: "driver"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("run complete")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("console output should not be JSON, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "run complete") {
		t.Errorf("message missing, got: %s", buf.String())
	}
}

func TestNewLoggerErrors(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, Options{Level: "loud"}); err == nil {
		t.Error("expected unknown level error")
	}
	if _, err := NewLogger(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Error("expected unknown format error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"trace", zerolog.TraceLevel},
		{"error", zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestEchoLevel(t *testing.T) {
	tests := []struct {
		echo int
		want zerolog.Level
	}{
		{-1, zerolog.WarnLevel},
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{5, zerolog.TraceLevel},
	}
	for _, tt := range tests {
		if got := EchoLevel(tt.echo); got != tt.want {
			t.Errorf("EchoLevel(%d) = %v, want %v", tt.echo, got, tt.want)
		}
	}
}
