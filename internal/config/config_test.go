package config

import (
  "os"
  "path/filepath"
  "testing"
  "time"
  "github.com/airwave/airwave-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger: %v", err)
  }
  return log
}

func TestLoadDefaults(t *testing.T) {
  t.Setenv(configPathEnv, "")
  t.Setenv("RENDER_MAX_CONCURRENT", "")
  t.Setenv("RENDER_MAX_ATTEMPTS", "")

  cfg := Load(testLogger(t))
  if cfg.Render.MaxConcurrent != 3 {
    t.Fatalf("maxConcurrent = %d, want 3", cfg.Render.MaxConcurrent)
  }
  if cfg.Render.MaxAttempts != 3 {
    t.Fatalf("maxAttempts = %d, want 3", cfg.Render.MaxAttempts)
  }
  if cfg.Render.MaxCombinations != 100 {
    t.Fatalf("maxCombinations = %d, want 100", cfg.Render.MaxCombinations)
  }
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
  dir := t.TempDir()
  path := filepath.Join(dir, "airwave.yaml")
  body := []byte("render:\n  maxConcurrent: 7\n  pollInterval: 5s\n")
  if err := os.WriteFile(path, body, 0o600); err != nil {
    t.Fatalf("write config: %v", err)
  }

  t.Setenv(configPathEnv, path)
  t.Setenv("RENDER_MAX_CONCURRENT", "9")

  cfg := Load(testLogger(t))
  if cfg.Render.MaxConcurrent != 9 {
    t.Fatalf("maxConcurrent = %d, want env override 9", cfg.Render.MaxConcurrent)
  }
  if cfg.Render.PollInterval != 5*time.Second {
    t.Fatalf("pollInterval = %s, want 5s from file", cfg.Render.PollInterval)
  }
}

func TestLoadRevertsInvalidConfig(t *testing.T) {
  dir := t.TempDir()
  path := filepath.Join(dir, "airwave.yaml")
  body := []byte("render:\n  staleRenderTimeout: 1s\n")
  if err := os.WriteFile(path, body, 0o600); err != nil {
    t.Fatalf("write config: %v", err)
  }
  t.Setenv(configPathEnv, path)
  t.Setenv("RENDER_MAX_CONCURRENT", "")

  cfg := Load(testLogger(t))
  if cfg.Render.StaleRenderTimeout != 10*time.Minute {
    t.Fatalf("staleRenderTimeout = %s, want default after invalid config", cfg.Render.StaleRenderTimeout)
  }
}

func TestValidate(t *testing.T) {
  cases := []struct {
    name    string
    mutate  func(*Config)
    wantErr bool
  }{
    {name: "defaults_valid", mutate: func(c *Config) {}, wantErr: false},
    {name: "zero_concurrency", mutate: func(c *Config) { c.Render.MaxConcurrent = 0 }, wantErr: true},
    {name: "zero_attempts", mutate: func(c *Config) { c.Render.MaxAttempts = 0 }, wantErr: true},
    {name: "tiny_stale_timeout", mutate: func(c *Config) { c.Render.StaleRenderTimeout = time.Second }, wantErr: true},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      cfg := defaultConfig()
      tc.mutate(&cfg)
      err := cfg.Validate()
      if (err != nil) != tc.wantErr {
        t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
      }
    })
  }
}
