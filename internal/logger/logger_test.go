package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Envs(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("env %s: %v", env, err)
		}
		_ = l.Sync()
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging"); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled with warn override")
	}

	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNewLoggerWithFile_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mushi.log")
	l, err := NewLoggerWithFile("prod", FileConfig{Path: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("model loaded", zap.Int("classes", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "model loaded") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected stored logger")
	}
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-1")
	if FromContext(ctx) != l {
		t.Fatal("expected request logger in context")
	}

	FromContext(With(ctx, zap.Int("k", 3))).Info("ranked")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["k"] != int64(3) {
		t.Errorf("fields: %v", fields)
	}
}
