package cli

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRun_Version(t *testing.T) {
	if err := Run(context.Background(), []string{"refsync", "--no-color", "version"}); err != nil {
		t.Errorf("Run(version) error: %v", err)
	}
}

func TestRun_Help(t *testing.T) {
	if err := Run(context.Background(), []string{"refsync", "--help"}); err != nil {
		t.Errorf("Run(--help) error: %v", err)
	}
}

func TestRun_SyncWithoutRemote(t *testing.T) {
	t.Setenv("REFSYNC_REMOTE", "")
	t.Setenv("REFSYNC_LOCAL", t.TempDir())
	// No remote configured anywhere: sync must refuse, not guess.
	err := Run(context.Background(), []string{"refsync", "sync", "--local", t.TempDir()})
	if err == nil {
		t.Error("sync without a remote root succeeded")
	}
}

func TestConfigLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"loud", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := configLevel(tt.in); got != tt.want {
			t.Errorf("configLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRun_InvalidConfigRejected(t *testing.T) {
	t.Setenv("REFSYNC_LOG_LEVEL", "noisy")
	err := Run(context.Background(), []string{"refsync", "version"})
	if err == nil {
		t.Fatal("invalid logging.level accepted")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("error should name the offending key, got %v", err)
	}
}
