// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ClaudeBin         string
	DatabasePath      string
	ArchiveDir        string
	CollectInterval   time.Duration
	CollectTimeout    time.Duration
	PredictionSamples int
	ListenAddr        string
	LogPath           string
	AlertLeadTime     time.Duration
	RetentionDays     int
}

// yamlConfig mirrors Config for the file format. Durations are strings so
// "5m" works; zero values mean "not set".
type yamlConfig struct {
	ClaudeBin         string `yaml:"claude_bin"`
	DatabasePath      string `yaml:"database_path"`
	ArchiveDir        string `yaml:"archive_dir"`
	CollectInterval   string `yaml:"collect_interval"`
	CollectTimeout    string `yaml:"collect_timeout"`
	PredictionSamples int    `yaml:"prediction_samples"`
	ListenAddr        string `yaml:"listen_addr"`
	LogPath           string `yaml:"log_path"`
	AlertLeadTime     string `yaml:"alert_lead_time"`
	RetentionDays     int    `yaml:"retention_days"`
}

// Default values
const (
	defaultCollectInterval   = 5 * time.Minute
	defaultCollectTimeout    = 30 * time.Second
	defaultPredictionSamples = 6
	defaultListenAddr        = "127.0.0.1:8090"
	defaultAlertLeadTime     = time.Hour
	defaultRetentionDays     = 90
)

// Load reads configuration from an optional YAML file, .env files and
// environment variables. Environment variables take precedence over the
// YAML file, which takes precedence over defaults.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		ClaudeBin:         "claude",
		DatabasePath:      getDefaultDatabasePath(),
		ArchiveDir:        getDefaultArchiveDir(),
		CollectInterval:   defaultCollectInterval,
		CollectTimeout:    defaultCollectTimeout,
		PredictionSamples: defaultPredictionSamples,
		ListenAddr:        defaultListenAddr,
		AlertLeadTime:     defaultAlertLeadTime,
		RetentionDays:     defaultRetentionDays,
	}

	if err := loadYAML(cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if cfg.ClaudeBin == "" {
		return nil, fmt.Errorf("CLAUDE_BIN must not be empty")
	}
	if cfg.CollectInterval <= 0 {
		return nil, fmt.Errorf("collect interval must be positive, got %s", cfg.CollectInterval)
	}
	if cfg.PredictionSamples < 2 {
		return nil, fmt.Errorf("prediction samples must be at least 2, got %d", cfg.PredictionSamples)
	}

	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}
	if err := ensureDir(cfg.ArchiveDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML merges an optional cmeter.yaml into cfg.
func loadYAML(cfg *Config) error {
	path := configFilePath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if yc.ClaudeBin != "" {
		cfg.ClaudeBin = yc.ClaudeBin
	}
	if yc.DatabasePath != "" {
		cfg.DatabasePath = yc.DatabasePath
	}
	if yc.ArchiveDir != "" {
		cfg.ArchiveDir = yc.ArchiveDir
	}
	if yc.ListenAddr != "" {
		cfg.ListenAddr = yc.ListenAddr
	}
	if yc.LogPath != "" {
		cfg.LogPath = yc.LogPath
	}
	if yc.PredictionSamples != 0 {
		cfg.PredictionSamples = yc.PredictionSamples
	}
	if yc.RetentionDays != 0 {
		cfg.RetentionDays = yc.RetentionDays
	}

	for _, d := range []struct {
		value  string
		target *time.Duration
	}{
		{yc.CollectInterval, &cfg.CollectInterval},
		{yc.CollectTimeout, &cfg.CollectTimeout},
		{yc.AlertLeadTime, &cfg.AlertLeadTime},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid duration %q in config file %s: %w", d.value, path, err)
		}
		*d.target = parsed
	}

	return nil
}

// configFilePath returns the first existing cmeter.yaml location, or the
// CMETER_CONFIG override.
func configFilePath() string {
	if p := os.Getenv("CMETER_CONFIG"); p != "" {
		return p
	}
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "cmeter.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "cmeter", "cmeter.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func applyEnv(cfg *Config) {
	cfg.ClaudeBin = getEnvString("CLAUDE_BIN", cfg.ClaudeBin)
	cfg.DatabasePath = getEnvString("DATABASE_PATH", cfg.DatabasePath)
	cfg.ArchiveDir = getEnvString("ARCHIVE_DIR", cfg.ArchiveDir)
	cfg.CollectInterval = getEnvDuration("COLLECT_INTERVAL", cfg.CollectInterval)
	cfg.CollectTimeout = getEnvDuration("COLLECT_TIMEOUT", cfg.CollectTimeout)
	cfg.PredictionSamples = getEnvInt("PREDICTION_SAMPLES", cfg.PredictionSamples)
	cfg.ListenAddr = getEnvString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogPath = getEnvString("LOG_PATH", cfg.LogPath)
	cfg.AlertLeadTime = getEnvDuration("ALERT_LEAD_TIME", cfg.AlertLeadTime)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", cfg.RetentionDays)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "cmeter", ".env"),
			filepath.Join(home, ".cmeter", ".env"),
		)
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "usage.db"
	}
	return filepath.Join(home, ".config", "cmeter", "usage.db")
}

// getDefaultArchiveDir returns the default directory for raw snapshot files.
func getDefaultArchiveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "archive"
	}
	return filepath.Join(home, ".config", "cmeter", "archive")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
