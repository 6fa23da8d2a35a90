package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"cueloop.dev/internal/retry"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// RetryConfig is the JSON shape of the retry policy. Delays are plain
// millisecond integers so hand-edited config files stay readable.
type RetryConfig struct {
	Enabled            bool     `json:"enabled"`
	MaxRetries         int      `json:"max_retries"`
	BaseDelayMs        int      `json:"base_delay_ms"`
	ExponentialBackoff bool     `json:"exponential_backoff"`
	FallbackURLs       []string `json:"fallback_urls,omitempty"`
	TimeoutMs          int      `json:"timeout_ms"`
	SkipOnFailure      bool     `json:"skip_on_failure"`
}

// Policy converts the JSON shape to the retry manager's config
func (rc *RetryConfig) Policy() retry.Config {
	return retry.Config{
		Enabled:            rc.Enabled,
		MaxRetries:         rc.MaxRetries,
		BaseDelay:          time.Duration(rc.BaseDelayMs) * time.Millisecond,
		ExponentialBackoff: rc.ExponentialBackoff,
		FallbackURLs:       append([]string(nil), rc.FallbackURLs...),
		Timeout:            time.Duration(rc.TimeoutMs) * time.Millisecond,
		SkipOnFailure:      rc.SkipOnFailure,
	}
}

// Config represents cueloop configuration
type Config struct {
	Volume             float64            `json:"volume"`                 // Default channel volume (0.0 to 1.0)
	MaxQueueSize       int                `json:"max_queue_size"`         // Per-channel queue cap (0 = unbounded)
	DropOldestWhenFull bool               `json:"drop_oldest_when_full"`  // Evict oldest pending instead of rejecting
	Element            string             `json:"element"`                // Element kind (auto, malgo, null)
	Enabled            bool               `json:"enabled"`                // Whether cueloop is enabled
	LogLevel           string             `json:"log_level"`              // Log level (debug, info, warn, error)
	FileLogging        *FileLoggingConfig `json:"file_logging,omitempty"` // File logging configuration
	Retry              *RetryConfig       `json:"retry,omitempty"`        // Retry policy
}

// Manager handles loading, saving, and validating configuration
type Manager struct {
	fs  afero.Fs
	xdg XDGInterface
}

// NewManager creates a configuration manager backed by the OS filesystem
func NewManager() *Manager {
	return NewManagerWithFs(afero.NewOsFs())
}

// NewManagerWithFs creates a configuration manager on the given filesystem
func NewManagerWithFs(fs afero.Fs) *Manager {
	slog.Debug("creating new config manager")
	return &Manager{
		fs:  fs,
		xdg: NewXDGDirs(),
	}
}

// DefaultConfig returns the default configuration
func (m *Manager) DefaultConfig() *Config {
	defaults := retry.DefaultConfig()

	cfg := &Config{
		Volume:             1.0,
		MaxQueueSize:       100,
		DropOldestWhenFull: false,
		Element:            "auto",
		Enabled:            true,
		LogLevel:           "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "", // Empty = XDG cache path
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Retry: &RetryConfig{
			Enabled:            defaults.Enabled,
			MaxRetries:         defaults.MaxRetries,
			BaseDelayMs:        int(defaults.BaseDelay / time.Millisecond),
			ExponentialBackoff: defaults.ExponentialBackoff,
			TimeoutMs:          int(defaults.Timeout / time.Millisecond),
			SkipOnFailure:      defaults.SkipOnFailure,
		},
	}

	slog.Debug("generated default config",
		"volume", cfg.Volume,
		"max_queue_size", cfg.MaxQueueSize,
		"element", cfg.Element,
		"log_level", cfg.LogLevel)

	return cfg
}

// LoadFromFile loads configuration from a specific file
func (m *Manager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(m.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := m.Validate(&cfg); err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"volume", cfg.Volume,
		"element", cfg.Element,
		"enabled", cfg.Enabled)

	return &cfg, nil
}

// SaveToFile saves configuration to a specific file
func (m *Manager) SaveToFile(cfg *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	if err := m.Validate(cfg); err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal with indentation for readability
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		slog.Error("failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(m.fs, filePath, data, 0644); err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery
func (m *Manager) LoadConfig() (*Config, error) {
	slog.Debug("loading config using XDG path discovery")

	configPaths := m.xdg.GetConfigPaths("config.json")

	for i, configPath := range configPaths {
		slog.Debug("checking config path", "path_index", i, "path", configPath)

		if _, err := m.fs.Stat(configPath); err == nil {
			slog.Debug("found config file", "path", configPath)
			return m.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults")
	return m.DefaultConfig(), nil
}

// Validate validates configuration values, accumulating every problem
func (m *Manager) Validate(cfg *Config) error {
	var errs []string

	if cfg.Volume < 0.0 || cfg.Volume > 1.0 {
		errs = append(errs, fmt.Sprintf("volume must be between 0.0 and 1.0, got %f", cfg.Volume))
	}

	if cfg.MaxQueueSize < 0 {
		errs = append(errs, fmt.Sprintf("max_queue_size must be >= 0, got %d", cfg.MaxQueueSize))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if cfg.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if cfg.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, fmt.Sprintf("invalid log level '%s', must be one of: %s",
				cfg.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if !m.IsValidElementKind(cfg.Element) {
		errs = append(errs, fmt.Sprintf("invalid element kind '%s', must be one of: %s",
			cfg.Element, strings.Join(m.SupportedElementKinds(), ", ")))
	}

	if cfg.FileLogging != nil {
		fl := cfg.FileLogging
		if fl.MaxSizeMB < 0 {
			errs = append(errs, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fl.MaxSizeMB))
		}
		if fl.MaxBackups < 0 {
			errs = append(errs, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fl.MaxBackups))
		}
		if fl.MaxAgeDays < 0 {
			errs = append(errs, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fl.MaxAgeDays))
		}
	}

	if cfg.Retry != nil {
		r := cfg.Retry
		if r.MaxRetries < 0 {
			errs = append(errs, fmt.Sprintf("retry max_retries must be >= 0, got %d", r.MaxRetries))
		}
		if r.BaseDelayMs < 0 {
			errs = append(errs, fmt.Sprintf("retry base_delay_ms must be >= 0, got %d", r.BaseDelayMs))
		}
		if r.TimeoutMs < 0 {
			errs = append(errs, fmt.Sprintf("retry timeout_ms must be >= 0, got %d", r.TimeoutMs))
		}
	}

	if len(errs) > 0 {
		msg := strings.Join(errs, "; ")
		slog.Error("config validation failed", "errors", msg)
		return fmt.Errorf("config validation failed: %s", msg)
	}

	slog.Debug("config validation passed")
	return nil
}

// MergeConfigs merges two configurations, with override taking precedence
// for every non-zero field
func (m *Manager) MergeConfigs(base, override *Config) *Config {
	merged := *base

	if override.Volume != 0.0 {
		merged.Volume = override.Volume
	}
	if override.MaxQueueSize != 0 {
		merged.MaxQueueSize = override.MaxQueueSize
	}
	if override.Element != "" {
		merged.Element = override.Element
	}
	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}
	if override.FileLogging != nil {
		merged.FileLogging = override.FileLogging
	}
	if override.Retry != nil {
		merged.Retry = override.Retry
	}

	slog.Debug("configurations merged")
	return &merged
}

// ApplyEnvironmentOverrides applies CUELOOP_* environment variable overrides
func (m *Manager) ApplyEnvironmentOverrides(cfg *Config) *Config {
	result := *cfg

	if volStr := os.Getenv("CUELOOP_VOLUME"); volStr != "" {
		if vol, err := strconv.ParseFloat(volStr, 64); err == nil {
			result.Volume = vol
			slog.Debug("applied volume override from environment", "value", vol)
		} else {
			slog.Warn("invalid CUELOOP_VOLUME environment variable", "value", volStr, "error", err)
		}
	}

	if kind := os.Getenv("CUELOOP_ELEMENT"); kind != "" {
		if m.IsValidElementKind(kind) {
			result.Element = kind
			slog.Debug("applied element kind override from environment", "value", kind)
		} else {
			slog.Warn("invalid CUELOOP_ELEMENT environment variable", "value", kind)
		}
	}

	if enabledStr := os.Getenv("CUELOOP_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			result.Enabled = enabled
			slog.Debug("applied enabled override from environment", "value", enabled)
		} else {
			slog.Warn("invalid CUELOOP_ENABLED environment variable", "value", enabledStr, "error", err)
		}
	}

	if logLevel := os.Getenv("CUELOOP_LOG_LEVEL"); logLevel != "" {
		result.LogLevel = logLevel
		slog.Debug("applied log level override from environment", "value", logLevel)
	}

	if sizeStr := os.Getenv("CUELOOP_MAX_QUEUE"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size >= 0 {
			result.MaxQueueSize = size
			slog.Debug("applied queue size override from environment", "value", size)
		} else {
			slog.Warn("invalid CUELOOP_MAX_QUEUE environment variable", "value", sizeStr)
		}
	}

	return &result
}

// ApplyLogLevel configures slog with the specified log level
func (m *Manager) ApplyLogLevel(logLevel string) error {
	return m.ApplyLogLevelWithWriter(logLevel, os.Stderr)
}

// ApplyLogLevelWithWriter configures slog with the specified log level and
// custom writer (for testing)
func (m *Manager) ApplyLogLevelWithWriter(logLevel string, writer io.Writer) error {
	if logLevel == "" {
		slog.Debug("no log level specified, keeping current slog configuration")
		return nil
	}

	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		err := fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", logLevel)
		slog.Error("invalid log level for slog configuration", "log_level", logLevel, "error", err)
		return err
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	slog.Debug("slog configured", "log_level", logLevel, "slog_level", level)
	return nil
}

// ResolveLogFilePath resolves the log file path, using the XDG cache
// directory when filename is empty
func (m *Manager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(m.xdg.GetCachePath("logs"), "cueloop.log")
}

// SupportedElementKinds returns the list of valid element kinds
func (m *Manager) SupportedElementKinds() []string {
	return []string{"auto", "malgo", "null"}
}

// IsValidElementKind checks whether an element kind is supported.
// Empty string is valid and defaults to auto.
func (m *Manager) IsValidElementKind(kind string) bool {
	if kind == "" {
		return true
	}
	for _, supported := range m.SupportedElementKinds() {
		if kind == supported {
			return true
		}
	}
	return false
}
