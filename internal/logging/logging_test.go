package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	prevLevel := GetLevel()
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		ok       bool
	}{
		{"debug", "debug", LevelDebug, true},
		{"info", "info", LevelInfo, true},
		{"warn", "warn", LevelWarn, true},
		{"warning alias", "warning", LevelWarn, true},
		{"error", "error", LevelError, true},
		{"case insensitive", "DEBUG", LevelDebug, true},
		{"surrounding space", " error ", LevelError, true},
		{"empty defaults to info", "", LevelInfo, false},
		{"unknown defaults to info", "verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestSetLevelFiltersMessages(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelWarn)

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error %d", 42)

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("Expected warn message, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error 42") {
		t.Errorf("Expected formatted error message, got %q", out)
	}
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled should be false at warn level")
	}
}

func TestForJob(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelDebug)

	jl := ForJob("abc-123")
	jl.Debug("probing %s", "in.mp4")
	jl.Info("published")
	jl.Warn("cleanup failed")
	jl.Error("encode failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	expected := []string{
		"[DEBUG] [job abc-123] probing in.mp4",
		"[INFO] [job abc-123] published",
		"[WARN] [job abc-123] cleanup failed",
		"[ERROR] [job abc-123] encode failed",
	}
	for i, want := range expected {
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestPrintfAndPrintln(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelError)

	Printf("always %s", "printed")
	Println("also", "printed")

	out := buf.String()
	if !strings.Contains(out, "always printed") || !strings.Contains(out, "also printed") {
		t.Errorf("Printf/Println should ignore the level, got %q", out)
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
