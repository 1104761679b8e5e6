package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kailas-cloud/mushi/internal/domain/prediction"
	"github.com/kailas-cloud/mushi/internal/repository/journal"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	if _, _, err := runCLI(t); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for empty args, got %v", err)
	}
	_, stderr, err := runCLI(t, "unknown")
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for unknown command, got %v", err)
	}
	if !strings.Contains(stderr, `unknown command "unknown"`) {
		t.Errorf("stderr: %q", stderr)
	}
}

func TestRun_RequiredFlags(t *testing.T) {
	for _, cmd := range []string{"eda", "interim", "processed", "eval", "history"} {
		if _, _, err := runCLI(t, cmd); !errors.Is(err, errUsage) {
			t.Errorf("%s: expected usage error, got %v", cmd, err)
		}
	}
	if _, _, err := runCLI(t, "predict"); !errors.Is(err, errUsage) {
		t.Errorf("predict without images: expected usage error, got %v", err)
	}
	if _, _, err := runCLI(t, "predict", "-k", "0", "a.jpg"); !errors.Is(err, errUsage) {
		t.Errorf("predict -k 0: expected usage error, got %v", err)
	}
}

func TestRun_RequiredFlagMessageNamesCommand(t *testing.T) {
	_, stderr, err := runCLI(t, "history")
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(stderr, "mushictl history: --journal is required") {
		t.Errorf("stderr: %q", stderr)
	}
}

func TestRun_SubcommandHelp(t *testing.T) {
	_, stderr, err := runCLI(t, "predict", "--help")
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if exitCode(err) != 0 {
		t.Errorf("exit code for --help: got %d, want 0", exitCode(err))
	}
	if !strings.Contains(stderr, "Usage: mushictl predict") {
		t.Errorf("stderr: %q", stderr)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{flag.ErrHelp, 0},
		{errUsage, 2},
		{fmt.Errorf("%w: --data is required", errUsage), 2},
		{errors.New("open model: no such file"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRun_UnknownFlagIsUsageError(t *testing.T) {
	if _, _, err := runCLI(t, "history", "--no-such-flag"); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRun_Version(t *testing.T) {
	stdout, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "mushictl dev") {
		t.Errorf("version output: %q", stdout)
	}
}

func TestRunEDA(t *testing.T) {
	dir := t.TempDir()
	annPath := filepath.Join(dir, "train.json")
	writeFile(t, annPath, `{
		"images": [{"id": 1}, {"id": 2}, {"id": 3}],
		"categories": [{"id": 1, "name": "Boletus edulis"}, {"id": 2, "name": "Amanita muscaria"}],
		"annotations": [
			{"id": 1, "image_id": 1, "category_id": 1},
			{"id": 2, "image_id": 2, "category_id": 1},
			{"id": 3, "image_id": 3, "category_id": 2}
		]
	}`)
	classesPath := filepath.Join(dir, "classes.csv")
	writeFile(t, classesPath, "species\nBoletus edulis\nCantharellus cibarius\n")

	stdout, _, err := runCLI(t, "eda", "--annotations", annPath, "--classes", classesPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "images: 3, annotations: 3, species: 2") {
		t.Errorf("missing summary: %q", stdout)
	}
	if !strings.Contains(stdout, "Boletus edulis") || !strings.Contains(stdout, "Cantharellus cibarius") {
		t.Errorf("missing classes: %q", stdout)
	}
	if strings.Contains(stdout, "Amanita") {
		t.Errorf("unlisted species shown: %q", stdout)
	}
}

func TestRunInterimAndProcessed(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw")
	interim := filepath.Join(dir, "interim")
	processed := filepath.Join(dir, "processed")

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}

	meta := "genus,specificEpithet,image_path\n"
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg"} {
		writeFile(t, filepath.Join(raw, name), buf.String())
		meta += "Boletus,edulis," + name + "\n"
	}
	writeFile(t, filepath.Join(raw, "7.jpg"), buf.String())
	meta += "Amanita,muscaria,7.jpg\n"

	metaPath := filepath.Join(dir, "meta.csv")
	writeFile(t, metaPath, meta)
	classesPath := filepath.Join(dir, "classes.csv")
	writeFile(t, classesPath, "species\nBoletus edulis\nAmanita muscaria\n")

	stdout, _, err := runCLI(t, "interim",
		"--metadata", metaPath, "--classes", classesPath, "--raw", raw, "--interim", interim)
	if err != nil {
		t.Fatalf("interim: %v", err)
	}
	if !strings.Contains(stdout, "7 copied, 0 skipped") {
		t.Errorf("interim output: %q", stdout)
	}

	stdout, _, err = runCLI(t, "processed",
		"--classes", classesPath, "--interim", interim, "--processed", processed, "--subset", "test")
	if err != nil {
		t.Fatalf("processed: %v", err)
	}
	if !strings.Contains(stdout, "complete for boletus_edulis (6 files)") {
		t.Errorf("processed output: %q", stdout)
	}
	if !strings.Contains(stdout, "Skip transfer for amanita_muscaria, too little data (1 files)") {
		t.Errorf("processed output: %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(processed, "test", "boletus_edulis", "boletus_edulis_5.jpg")); err != nil {
		t.Errorf("expected renamed file: %v", err)
	}
}

func TestRunHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.db")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	err = j.Record(context.Background(), journal.Entry{
		CreatedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		ImageSHA256: strings.Repeat("ab", 32),
		K:           2,
		Ranking: []prediction.Prediction{
			prediction.New("boletus_edulis", 0.8),
			prediction.New("amanita_muscaria", 0.2),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, "history", "--journal", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "boletus_edulis") || !strings.Contains(stdout, "0.800") {
		t.Errorf("history output: %q", stdout)
	}
	if !strings.Contains(stdout, "abababababab") {
		t.Errorf("expected shortened digest: %q", stdout)
	}
}
