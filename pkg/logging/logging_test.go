package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Debug("Test", "debug message should be filtered")
	Info("Test", "info message should appear")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered at Info level")
	}
	if !strings.Contains(output, "info message should appear") {
		t.Errorf("Info message missing from output: %s", output)
	}
}

func TestInit_SubsystemAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Warn("Callback", "something looks off")

	output := buf.String()
	if !strings.Contains(output, "subsystem=Callback") {
		t.Errorf("Expected subsystem attribute in output: %s", output)
	}
}

func TestError_IncludesErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Exchange", errors.New("boom"), "exchange failed for attempt %d", 7)

	output := buf.String()
	if !strings.Contains(output, "boom") {
		t.Errorf("Expected wrapped error in output: %s", output)
	}
	if !strings.Contains(output, "exchange failed for attempt 7") {
		t.Errorf("Expected formatted message in output: %s", output)
	}
}

func TestTruncateSessionID(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"short", "short"},
		{"12345678", "12345678"},
		{"123456789", "12345678..."},
		{"b4f2c1a9-7e31-4a7f-9c2d-0d3f5b6a8e10", "b4f2c1a9..."},
	}

	for _, test := range tests {
		if got := TruncateSessionID(test.in); got != test.expected {
			t.Errorf("TruncateSessionID(%q) = %q, expected %q", test.in, got, test.expected)
		}
	}
}
