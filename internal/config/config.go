package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the mushi configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Model      ModelConfig      `yaml:"model"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Prediction PredictionConfig `yaml:"prediction"`
	Journal    JournalConfig    `yaml:"journal"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File       string `yaml:"file"`  // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
	PredictRPS      int   `yaml:"predict_rps"` // 0 = unlimited
	PredictBurst    int   `yaml:"predict_burst"`
}

// ModelConfig locates the classifier artifacts.
type ModelConfig struct {
	Path           string `yaml:"path"`
	LabelsPath     string `yaml:"labels_path"`
	MetadataPath   string `yaml:"metadata_path"`
	RuntimeLibrary string `yaml:"runtime_library"` // onnxruntime shared library, optional
}

// ArtifactsConfig points at an S3-compatible bucket holding the model artifacts.
// Disabled when Endpoint is empty.
type ArtifactsConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	CacheDir  string `yaml:"cache_dir"`
}

// Enabled reports whether artifacts are fetched from object storage.
func (a ArtifactsConfig) Enabled() bool { return a.Endpoint != "" }

// PredictionConfig holds ranking and caching settings.
type PredictionConfig struct {
	TopK      int `yaml:"top_k"`
	CacheSize int `yaml:"cache_size"` // 0 disables the score cache
}

// JournalConfig holds the prediction journal settings.
type JournalConfig struct {
	Path string `yaml:"path"` // SQLite file, empty disables
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 10 << 20
	}
	if c.HTTP.PredictRPS > 0 && c.HTTP.PredictBurst <= 0 {
		c.HTTP.PredictBurst = c.HTTP.PredictRPS
	}
	if c.Prediction.TopK <= 0 {
		c.Prediction.TopK = 5
	}
	if c.Artifacts.Enabled() && c.Artifacts.CacheDir == "" {
		c.Artifacts.CacheDir = filepath.Join(os.TempDir(), "mushi-artifacts")
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 100
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 3
		}
		if c.Logging.MaxAgeDays <= 0 {
			c.Logging.MaxAgeDays = 28
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.PredictRPS < 0 {
		return fmt.Errorf("http.predict_rps must not be negative, got %d", c.HTTP.PredictRPS)
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Model.LabelsPath == "" {
		return fmt.Errorf("model.labels_path is required")
	}
	if c.Model.MetadataPath == "" {
		return fmt.Errorf("model.metadata_path is required")
	}
	if c.Artifacts.Enabled() && c.Artifacts.Bucket == "" {
		return fmt.Errorf("artifacts.bucket is required when artifacts.endpoint is set")
	}
	if c.Prediction.CacheSize < 0 {
		return fmt.Errorf("prediction.cache_size must not be negative, got %d", c.Prediction.CacheSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
