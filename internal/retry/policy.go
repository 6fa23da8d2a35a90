package retry

import (
	"log/slog"
	"sync"
	"time"
)

// Config is the process-wide retry policy. It is replaced wholesale by
// SetConfig; no partial mutation is ever visible.
type Config struct {
	Enabled            bool          `json:"enabled"`
	MaxRetries         int           `json:"max_retries"`
	BaseDelay          time.Duration `json:"base_delay"`
	ExponentialBackoff bool          `json:"exponential_backoff"`
	FallbackURLs       []string      `json:"fallback_urls"`
	Timeout            time.Duration `json:"timeout"` // Bounds the Loading state; 0 disables
	SkipOnFailure      bool          `json:"skip_on_failure"`
}

// DefaultConfig returns the default retry policy
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		MaxRetries:         3,
		BaseDelay:          100 * time.Millisecond,
		ExponentialBackoff: true,
		Timeout:            10 * time.Second,
		SkipOnFailure:      false,
	}
}

// Action tells the playback controller how to handle a failure
type Action int

const (
	// ActionFallback retries immediately with Decision.Source; does not
	// count against the retry budget
	ActionFallback Action = iota
	// ActionRetry re-attempts the same source after Decision.Delay
	ActionRetry
	// ActionTerminal gives up; the caller emits the terminal error and
	// either advances (skip-on-failure) or halts the channel
	ActionTerminal
)

// String returns the action name for logging
func (a Action) String() string {
	switch a {
	case ActionFallback:
		return "fallback"
	case ActionRetry:
		return "retry"
	case ActionTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Decision is the manager's verdict on one failure
type Decision struct {
	Action Action
	Source string        // Fallback URL when Action is ActionFallback
	Delay  time.Duration // Wait before re-attempt when Action is ActionRetry
	Kind   Kind          // Failure classification
	Skip   bool          // On ActionTerminal: advance past the entry
}

// Manager evaluates the retry policy on playback failures
type Manager struct {
	mu  sync.RWMutex
	cfg Config
}

// NewManager creates a manager with the given initial policy
func NewManager(cfg Config) *Manager {
	slog.Debug("creating retry manager",
		"enabled", cfg.Enabled,
		"max_retries", cfg.MaxRetries,
		"base_delay", cfg.BaseDelay,
		"exponential", cfg.ExponentialBackoff,
		"fallbacks", len(cfg.FallbackURLs))
	return &Manager{cfg: cfg}
}

// Config returns a copy of the current policy
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := m.cfg
	cfg.FallbackURLs = append([]string(nil), m.cfg.FallbackURLs...)
	return cfg
}

// SetConfig replaces the policy wholesale
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.cfg.FallbackURLs = append([]string(nil), cfg.FallbackURLs...)
	m.mu.Unlock()

	slog.Info("retry policy replaced",
		"enabled", cfg.Enabled,
		"max_retries", cfg.MaxRetries,
		"base_delay", cfg.BaseDelay,
		"skip_on_failure", cfg.SkipOnFailure)
}

// Evaluate applies the policy to one failure, in order: fallback URLs first
// (free of the retry budget), then budgeted retries with backoff, then the
// terminal verdict.
func (m *Manager) Evaluate(attempts, fallbacksTried int, err error) Decision {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	kind := Classify(err)

	if fallbacksTried < len(cfg.FallbackURLs) {
		source := cfg.FallbackURLs[fallbacksTried]
		slog.Info("failure verdict: try fallback",
			"kind", kind,
			"fallback_index", fallbacksTried,
			"fallback", source)
		return Decision{Action: ActionFallback, Source: source, Kind: kind}
	}

	if cfg.Enabled && attempts < cfg.MaxRetries {
		delay := m.delayFor(cfg, attempts)
		slog.Info("failure verdict: retry",
			"kind", kind,
			"attempt", attempts+1,
			"max_retries", cfg.MaxRetries,
			"delay", delay)
		return Decision{Action: ActionRetry, Delay: delay, Kind: kind}
	}

	slog.Warn("failure verdict: terminal",
		"kind", kind,
		"attempts", attempts,
		"skip_on_failure", cfg.SkipOnFailure,
		"error", err)
	return Decision{Action: ActionTerminal, Kind: kind, Skip: cfg.SkipOnFailure}
}

// delayFor computes the backoff delay for the given zero-based attempt
func (m *Manager) delayFor(cfg Config, attempt int) time.Duration {
	if !cfg.ExponentialBackoff {
		return cfg.BaseDelay
	}
	if attempt > 30 {
		attempt = 30 // keep the shift sane
	}
	return cfg.BaseDelay << uint(attempt)
}

// Delay exposes the backoff schedule for the current policy
func (m *Manager) Delay(attempt int) time.Duration {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	return m.delayFor(cfg, attempt)
}

// Timeout returns the configured load timeout
func (m *Manager) Timeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Timeout
}
