package main

import (
	"log/slog"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		err   bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("parseLevel(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLevel(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseRunDate(t *testing.T) {
	now := time.Date(2026, 10, 17, 6, 30, 15, 0, time.UTC)

	got, err := parseRunDate("", now)
	if err != nil || !got.Equal(now) {
		t.Errorf("parseRunDate(\"\") = %v, %v; want now", got, err)
	}

	got, err = parseRunDate("2026-10-01", now)
	if err != nil {
		t.Fatalf("parseRunDate() error: %v", err)
	}
	if want := time.Date(2026, 10, 1, 6, 30, 15, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parseRunDate(2026-10-01) = %v, want %v", got, want)
	}

	if _, err := parseRunDate("10/01/2026", now); err == nil {
		t.Error("parseRunDate(10/01/2026): expected error")
	}
}
