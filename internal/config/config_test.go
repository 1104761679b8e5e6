package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8000},
		Model: ModelConfig{
			Path:         "models/mushi_identifier_v1.onnx",
			LabelsPath:   "models/classes_mushi_identifier_v1.csv",
			MetadataPath: "models/model_metadata.json",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingModelPaths(t *testing.T) {
	tests := map[string]func(*Config){
		"model":    func(c *Config) { c.Model.Path = "" },
		"labels":   func(c *Config) { c.Model.LabelsPath = "" },
		"metadata": func(c *Config) { c.Model.MetadataPath = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error when %s path is missing", name)
			}
		})
	}
}

func TestValidate_ArtifactsWithoutBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Artifacts.Endpoint = "localhost:9000"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing artifacts.bucket")
	}
	expected := "artifacts.bucket is required when artifacts.endpoint is set"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_NegativeValues(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.PredictRPS = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative predict_rps")
	}

	cfg = validConfig()
	cfg.Prediction.CacheSize = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative cache_size")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{PredictRPS: 4},
		Artifacts: ArtifactsConfig{Endpoint: "localhost:9000"},
		Logging:   LoggingConfig{File: "mushi.log"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.HTTP.MaxUploadBytes != 10<<20 {
		t.Errorf("expected MaxUploadBytes=10MiB, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.HTTP.PredictBurst != 4 {
		t.Errorf("expected PredictBurst to follow PredictRPS, got %d", cfg.HTTP.PredictBurst)
	}
	if cfg.Prediction.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Prediction.TopK)
	}
	if cfg.Artifacts.CacheDir == "" {
		t.Error("expected artifacts cache dir default")
	}
	if cfg.Logging.MaxSizeMB != 100 || cfg.Logging.MaxBackups != 3 || cfg.Logging.MaxAgeDays != 28 {
		t.Errorf("unexpected log rotation defaults: %+v", cfg.Logging)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{ReadTimeoutSec: 5, MaxUploadBytes: 1024},
		Prediction: PredictionConfig{TopK: 3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("expected ReadTimeoutSec=5 (no override), got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxUploadBytes != 1024 {
		t.Errorf("expected MaxUploadBytes=1024 (no override), got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.Prediction.TopK != 3 {
		t.Errorf("expected TopK=3 (no override), got %d", cfg.Prediction.TopK)
	}
	if cfg.Artifacts.CacheDir != "" {
		t.Errorf("expected no cache dir when artifacts disabled, got %q", cfg.Artifacts.CacheDir)
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("MUSHI_TEST_PORT", "9100")

	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
http:
  port: ${MUSHI_TEST_PORT}
model:
  path: ${MUSHI_TEST_MODEL:-models/m.onnx}
  labels_path: models/classes.csv
  metadata_path: models/meta.json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.HTTP.Port)
	}
	if cfg.Model.Path != "models/m.onnx" {
		t.Errorf("expected default model path, got %q", cfg.Model.Path)
	}
	if cfg.Prediction.TopK != 5 {
		t.Errorf("expected defaults applied, got top_k=%d", cfg.Prediction.TopK)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestLoad_BundledEnvironments(t *testing.T) {
	for _, env := range []string{"local", "prod"} {
		t.Run(env, func(t *testing.T) {
			cfg, err := Load(env)
			if err != nil {
				t.Fatalf("load %s: %v", env, err)
			}
			if cfg.Prediction.TopK != 5 {
				t.Errorf("top_k: got %d, want 5", cfg.Prediction.TopK)
			}
			if cfg.Model.Path == "" {
				t.Error("model path should have a default")
			}
		})
	}
}
