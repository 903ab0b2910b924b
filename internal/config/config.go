package config

import (
  "fmt"
  "os"
  "time"

  "gopkg.in/yaml.v3"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/utils"
)

const configPathEnv = "AIRWAVE_CONFIG"

// RenderConfig holds the queue/worker policy knobs. Values are read from an
// optional YAML file first, then overridden by environment variables.
type RenderConfig struct {
  MaxConcurrent      int           `yaml:"maxConcurrent"`
  MaxAttempts        int           `yaml:"maxAttempts"`
  RetryDelay         time.Duration `yaml:"retryDelay"`
  StaleRenderTimeout time.Duration `yaml:"staleRenderTimeout"`
  PollInterval       time.Duration `yaml:"pollInterval"`
  DrainInterval      time.Duration `yaml:"drainInterval"`
  MaxCombinations    int           `yaml:"maxCombinations"`
}

type Config struct {
  Render RenderConfig `yaml:"render"`
}

func Load(log *logger.Logger) Config {
  cfg := defaultConfig()

  if path := os.Getenv(configPathEnv); path != "" {
    raw, err := os.ReadFile(path)
    if err != nil {
      log.Warn("Cannot read config file, using defaults", "path", path, "error", err)
    } else {
      var fileCfg Config
      if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
        log.Warn("Cannot parse config file, using defaults", "path", path, "error", err)
      } else {
        cfg = mergeConfig(cfg, fileCfg)
      }
    }
  }

  cfg.applyEnvOverrides(log)
  if err := cfg.Validate(); err != nil {
    log.Warn("Invalid config, reverting to defaults", "error", err)
    cfg = defaultConfig()
  }
  return cfg
}

func (c *Config) applyEnvOverrides(log *logger.Logger) {
  if v := utils.GetEnvAsInt("RENDER_MAX_CONCURRENT", 0, log); v > 0 {
    c.Render.MaxConcurrent = v
  }
  if v := utils.GetEnvAsInt("RENDER_MAX_ATTEMPTS", 0, log); v > 0 {
    c.Render.MaxAttempts = v
  }
  if v := utils.GetEnvAsInt("RENDER_RETRY_DELAY_SECONDS", 0, log); v > 0 {
    c.Render.RetryDelay = time.Duration(v) * time.Second
  }
  if v := utils.GetEnvAsInt("RENDER_STALE_TIMEOUT_SECONDS", 0, log); v > 0 {
    c.Render.StaleRenderTimeout = time.Duration(v) * time.Second
  }
  if v := utils.GetEnvAsInt("RENDER_POLL_INTERVAL_SECONDS", 0, log); v > 0 {
    c.Render.PollInterval = time.Duration(v) * time.Second
  }
  if v := utils.GetEnvAsInt("MATRIX_MAX_COMBINATIONS", 0, log); v > 0 {
    c.Render.MaxCombinations = v
  }
}

func (c Config) Validate() error {
  if c.Render.MaxConcurrent < 1 {
    return fmt.Errorf("render.maxConcurrent must be >= 1, got %d", c.Render.MaxConcurrent)
  }
  if c.Render.MaxAttempts < 1 {
    return fmt.Errorf("render.maxAttempts must be >= 1, got %d", c.Render.MaxAttempts)
  }
  if c.Render.MaxCombinations < 1 {
    return fmt.Errorf("render.maxCombinations must be >= 1, got %d", c.Render.MaxCombinations)
  }
  if c.Render.StaleRenderTimeout < time.Minute {
    return fmt.Errorf("render.staleRenderTimeout must be >= 1m, got %s", c.Render.StaleRenderTimeout)
  }
  return nil
}

func mergeConfig(base, override Config) Config {
  if override.Render.MaxConcurrent > 0 {
    base.Render.MaxConcurrent = override.Render.MaxConcurrent
  }
  if override.Render.MaxAttempts > 0 {
    base.Render.MaxAttempts = override.Render.MaxAttempts
  }
  if override.Render.RetryDelay > 0 {
    base.Render.RetryDelay = override.Render.RetryDelay
  }
  if override.Render.StaleRenderTimeout > 0 {
    base.Render.StaleRenderTimeout = override.Render.StaleRenderTimeout
  }
  if override.Render.PollInterval > 0 {
    base.Render.PollInterval = override.Render.PollInterval
  }
  if override.Render.DrainInterval > 0 {
    base.Render.DrainInterval = override.Render.DrainInterval
  }
  if override.Render.MaxCombinations > 0 {
    base.Render.MaxCombinations = override.Render.MaxCombinations
  }
  return base
}

func defaultConfig() Config {
  return Config{
    Render: RenderConfig{
      MaxConcurrent:      3,
      MaxAttempts:        3,
      RetryDelay:         30 * time.Second,
      StaleRenderTimeout: 10 * time.Minute,
      PollInterval:       15 * time.Second,
      DrainInterval:      1 * time.Second,
      MaxCombinations:    100,
    },
  }
}
