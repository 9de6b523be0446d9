package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/curlgrab/internal/config"
	"github.com/rohmanhakim/curlgrab/pkg/hashutil"
)

func writeConfigFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestWithDefault(t *testing.T) {
	cfg := config.WithDefault()
	if cfg == nil {
		t.Fatal("WithDefault() returned nil")
	}

	builtCfg, err := cfg.Build()
	if err != nil {
		t.Fatalf("should not have any error, got %v", err)
	}

	if builtCfg.Timeout() != 0 {
		t.Errorf("expected Timeout 0, got %v", builtCfg.Timeout())
	}
	if builtCfg.StallTimeout() != 30*time.Second {
		t.Errorf("expected StallTimeout 30s, got %v", builtCfg.StallTimeout())
	}
	if builtCfg.BufferSize() != 32*1024 {
		t.Errorf("expected BufferSize 32768, got %d", builtCfg.BufferSize())
	}
	if builtCfg.MaxAttempt() != 1 {
		t.Errorf("expected MaxAttempt 1, got %d", builtCfg.MaxAttempt())
	}
	if builtCfg.BackoffMultiplier() != 2.0 {
		t.Errorf("expected BackoffMultiplier 2.0, got %v", builtCfg.BackoffMultiplier())
	}
	if builtCfg.OutputDir() != "." {
		t.Errorf("expected OutputDir '.', got '%s'", builtCfg.OutputDir())
	}
	if builtCfg.HashAlgo() != hashutil.HashAlgoBLAKE3 {
		t.Errorf("expected HashAlgo blake3, got '%s'", builtCfg.HashAlgo())
	}
	if builtCfg.LogLevel() != "info" {
		t.Errorf("expected LogLevel info, got '%s'", builtCfg.LogLevel())
	}
	if builtCfg.LogFormat() != "console" {
		t.Errorf("expected LogFormat console, got '%s'", builtCfg.LogFormat())
	}
}

func TestBuilder_Overrides(t *testing.T) {
	cfg, err := config.WithDefault().
		WithTimeout(2 * time.Minute).
		WithStallTimeout(0).
		WithMaxAttempt(4).
		WithRandomSeed(7).
		WithOutputDir("/tmp/downloads").
		WithHashAlgo(hashutil.HashAlgoSHA256).
		WithLogFormat("json").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timeout() != 2*time.Minute {
		t.Errorf("expected Timeout 2m, got %v", cfg.Timeout())
	}
	if cfg.StallTimeout() != 0 {
		t.Errorf("expected StallTimeout disabled, got %v", cfg.StallTimeout())
	}
	if cfg.MaxAttempt() != 4 {
		t.Errorf("expected MaxAttempt 4, got %d", cfg.MaxAttempt())
	}
	if cfg.RandomSeed() != 7 {
		t.Errorf("expected RandomSeed 7, got %d", cfg.RandomSeed())
	}
	if cfg.OutputDir() != "/tmp/downloads" {
		t.Errorf("expected OutputDir '/tmp/downloads', got '%s'", cfg.OutputDir())
	}
	if cfg.HashAlgo() != hashutil.HashAlgoSHA256 {
		t.Errorf("expected sha256, got '%s'", cfg.HashAlgo())
	}
	if cfg.LogFormat() != "json" {
		t.Errorf("expected json, got '%s'", cfg.LogFormat())
	}
}

func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{name: "negative timeout", cfg: config.WithDefault().WithTimeout(-time.Second)},
		{name: "negative stall timeout", cfg: config.WithDefault().WithStallTimeout(-time.Second)},
		{name: "zero buffer", cfg: config.WithDefault().WithBufferSize(0)},
		{name: "zero attempts", cfg: config.WithDefault().WithMaxAttempt(0)},
		{name: "shrinking backoff", cfg: config.WithDefault().WithBackoffMultiplier(0.5)},
		{name: "negative jitter", cfg: config.WithDefault().WithJitter(-time.Millisecond)},
		{name: "unknown hash", cfg: config.WithDefault().WithHashAlgo("md5")},
		{name: "unknown log level", cfg: config.WithDefault().WithLogLevel("loud")},
		{name: "unknown log format", cfg: config.WithDefault().WithLogFormat("xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Build()
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestBuild_EmptyOutputDirFallsBackToWorkingDir(t *testing.T) {
	cfg, err := config.WithDefault().WithOutputDir("").Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir() != "." {
		t.Errorf("expected '.', got '%s'", cfg.OutputDir())
	}
}

func TestWithConfigFile_Formats(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{
			name:     "json",
			fileName: "config.json",
			content: `{
  "timeout": "5m",
  "stallTimeout": "10s",
  "maxAttempt": 3,
  "outputDir": "/data/audio",
  "hashAlgo": "sha256",
  "logLevel": "debug"
}`,
		},
		{
			name:     "toml",
			fileName: "config.toml",
			content: `timeout = "5m"
stallTimeout = "10s"
maxAttempt = 3
outputDir = "/data/audio"
hashAlgo = "sha256"
logLevel = "debug"
`,
		},
		{
			name:     "yaml",
			fileName: "config.yaml",
			content: `timeout: 5m
stallTimeout: 10s
maxAttempt: 3
outputDir: /data/audio
hashAlgo: sha256
logLevel: debug
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.fileName, tt.content)

			cfg, err := config.WithConfigFile(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.Timeout() != 5*time.Minute {
				t.Errorf("expected Timeout 5m, got %v", cfg.Timeout())
			}
			if cfg.StallTimeout() != 10*time.Second {
				t.Errorf("expected StallTimeout 10s, got %v", cfg.StallTimeout())
			}
			if cfg.MaxAttempt() != 3 {
				t.Errorf("expected MaxAttempt 3, got %d", cfg.MaxAttempt())
			}
			if cfg.OutputDir() != "/data/audio" {
				t.Errorf("expected OutputDir '/data/audio', got '%s'", cfg.OutputDir())
			}
			if cfg.HashAlgo() != hashutil.HashAlgoSHA256 {
				t.Errorf("expected sha256, got '%s'", cfg.HashAlgo())
			}
			if cfg.LogLevel() != "debug" {
				t.Errorf("expected debug, got '%s'", cfg.LogLevel())
			}
			// untouched keys keep their defaults
			if cfg.BufferSize() != 32*1024 {
				t.Errorf("expected default BufferSize, got %d", cfg.BufferSize())
			}
			if cfg.BackoffMultiplier() != 2.0 {
				t.Errorf("expected default BackoffMultiplier, got %v", cfg.BackoffMultiplier())
			}
		})
	}
}

func TestWithConfigFile_ZeroDisablesStallTimeout(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{"stallTimeout": "0s"}`)

	cfg, err := config.WithConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StallTimeout() != 0 {
		t.Errorf("expected StallTimeout 0, got %v", cfg.StallTimeout())
	}
}

func TestWithConfigFile_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{"maxAttempt": 3, "hashAlgo": "sha256"}`)
	t.Setenv("CURLGRAB_MAX_ATTEMPT", "5")
	t.Setenv("CURLGRAB_STALL_TIMEOUT", "45s")

	cfg, err := config.WithConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxAttempt() != 5 {
		t.Errorf("expected MaxAttempt 5 from env, got %d", cfg.MaxAttempt())
	}
	if cfg.StallTimeout() != 45*time.Second {
		t.Errorf("expected StallTimeout 45s from env, got %v", cfg.StallTimeout())
	}
	if cfg.HashAlgo() != hashutil.HashAlgoSHA256 {
		t.Errorf("expected sha256 from file, got '%s'", cfg.HashAlgo())
	}
}

func TestFromEnvironment(t *testing.T) {
	t.Setenv("CURLGRAB_OUTPUT_DIR", "/srv/out")
	t.Setenv("CURLGRAB_HASH_ALGO", "none")
	t.Setenv("CURLGRAB_LOG_FORMAT", "json")

	cfg, err := config.FromEnvironment()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir() != "/srv/out" {
		t.Errorf("expected '/srv/out', got '%s'", cfg.OutputDir())
	}
	if cfg.HashAlgo() != hashutil.HashAlgoNone {
		t.Errorf("expected none, got '%s'", cfg.HashAlgo())
	}
	if cfg.LogFormat() != "json" {
		t.Errorf("expected json, got '%s'", cfg.LogFormat())
	}
	if cfg.StallTimeout() != 30*time.Second {
		t.Errorf("expected default StallTimeout, got %v", cfg.StallTimeout())
	}
}

func TestWithConfigFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.WithConfigFile(filepath.Join(t.TempDir(), "absent.json"))
		if !errors.Is(err, config.ErrFileDoesNotExist) {
			t.Errorf("expected ErrFileDoesNotExist, got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeConfigFile(t, "config.json", `{"timeout": `)
		_, err := config.WithConfigFile(path)
		if !errors.Is(err, config.ErrReadConfigFail) {
			t.Errorf("expected ErrReadConfigFail, got %v", err)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		path := writeConfigFile(t, "config.json", `{"timeout": "soon"}`)
		_, err := config.WithConfigFile(path)
		if !errors.Is(err, config.ErrConfigParsingFail) {
			t.Errorf("expected ErrConfigParsingFail, got %v", err)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		path := writeConfigFile(t, "config.json", `{"maxAttempt": 0}`)
		_, err := config.WithConfigFile(path)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("unknown hash algorithm", func(t *testing.T) {
		path := writeConfigFile(t, "config.json", `{"hashAlgo": "md5"}`)
		_, err := config.WithConfigFile(path)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
