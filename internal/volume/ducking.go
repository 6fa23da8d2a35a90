package volume

import (
	"log/slog"
	"sync"
	"time"
)

// DuckingConfig is the process-wide ducking policy. While the priority
// channel has active playback, every other channel's effective volume is
// driven toward DuckingVolume; when it goes idle, volumes are driven back
// to their baselines.
type DuckingConfig struct {
	PriorityChannel   int           `json:"priority_channel"`
	PriorityVolume    float64       `json:"priority_volume"`
	DuckingVolume     float64       `json:"ducking_volume"`
	DuckTransition    time.Duration `json:"duck_transition"`
	RestoreTransition time.Duration `json:"restore_transition"`
	Easing            Easing        `json:"easing"`
}

// Manager owns per-channel baseline volumes and the global ducking policy.
// Effective volume is the duck override when one is active, otherwise the
// baseline. Levels are pushed to elements through the apply function.
type Manager struct {
	mu          sync.Mutex
	apply       func(channel int, level float64)
	baselines   map[int]float64
	current     map[int]float64 // last level pushed to the element
	ducked      map[int]float64 // active duck override targets
	active      map[int]bool    // channels with active playback
	transitions map[int]*transition
	cfg         *DuckingConfig
}

// NewManager creates a manager pushing levels through apply
func NewManager(apply func(channel int, level float64)) *Manager {
	slog.Debug("creating volume manager")
	return &Manager{
		apply:       apply,
		baselines:   make(map[int]float64),
		current:     make(map[int]float64),
		ducked:      make(map[int]float64),
		active:      make(map[int]bool),
		transitions: make(map[int]*transition),
	}
}

// Clamp bounds a volume level to [0,1]
func Clamp(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

// EnsureChannel registers a channel with the default baseline
func (m *Manager) EnsureChannel(channel int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(channel)
}

func (m *Manager) ensureLocked(channel int) {
	if _, ok := m.baselines[channel]; !ok {
		m.baselines[channel] = 1.0
		m.current[channel] = 1.0
	}
}

// RemoveChannel forgets a channel and cancels its in-flight transition
func (m *Manager) RemoveChannel(channel int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTransitionLocked(channel)
	delete(m.baselines, channel)
	delete(m.current, channel)
	delete(m.ducked, channel)
	delete(m.active, channel)

	slog.Debug("volume state removed", "channel", channel)
}

// SetBaseline stores the channel's user-set volume, clamped to [0,1].
// When the channel is not ducked the new level applies immediately.
// Returns the clamped value.
func (m *Manager) SetBaseline(channel int, level float64) float64 {
	level = Clamp(level)

	m.mu.Lock()
	m.ensureLocked(channel)
	m.baselines[channel] = level

	_, isDucked := m.ducked[channel]
	if !isDucked {
		m.stopTransitionLocked(channel)
		m.current[channel] = level
		apply := m.apply
		m.mu.Unlock()

		apply(channel, level)
		slog.Debug("baseline volume applied", "channel", channel, "volume", level)
		return level
	}
	m.mu.Unlock()

	slog.Debug("baseline volume stored while ducked", "channel", channel, "volume", level)
	return level
}

// Baseline returns the channel's user-set volume (1.0 when unknown)
func (m *Manager) Baseline(channel int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level, ok := m.baselines[channel]; ok {
		return level
	}
	return 1.0
}

// Effective returns the level currently intended for the channel:
// the duck override when one is active, otherwise the baseline
func (m *Manager) Effective(channel int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level, ok := m.ducked[channel]; ok {
		return level
	}
	if level, ok := m.baselines[channel]; ok {
		return level
	}
	return 1.0
}

// SetDucking installs the policy and immediately re-evaluates every channel
func (m *Manager) SetDucking(cfg DuckingConfig) {
	m.mu.Lock()
	copied := cfg
	m.cfg = &copied

	slog.Info("ducking policy installed",
		"priority_channel", cfg.PriorityChannel,
		"ducking_volume", cfg.DuckingVolume,
		"duck_transition", cfg.DuckTransition,
		"restore_transition", cfg.RestoreTransition,
		"easing", cfg.Easing)

	m.reevaluateLocked()
	m.mu.Unlock()
}

// ClearDucking removes the policy and restores every channel to baseline
func (m *Manager) ClearDucking() {
	m.mu.Lock()
	m.cfg = nil

	restored := make(map[int]float64)
	for channel := range m.ducked {
		delete(m.ducked, channel)
		m.stopTransitionLocked(channel)
		level := m.baselines[channel]
		m.current[channel] = level
		restored[channel] = level
	}
	apply := m.apply
	m.mu.Unlock()

	for channel, level := range restored {
		apply(channel, level)
	}

	slog.Info("ducking policy cleared", "restored_channels", len(restored))
}

// Ducking returns a copy of the current policy, or nil when none is set
func (m *Manager) Ducking() *DuckingConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg == nil {
		return nil
	}
	copied := *m.cfg
	return &copied
}

// SetChannelActive records a channel's playing state and re-evaluates the
// policy. Ducking is level-triggered: every activity edge of the priority
// channel re-applies ducked or restored volumes to all other channels.
func (m *Manager) SetChannelActive(channel int, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active[channel] == active {
		return
	}
	m.active[channel] = active
	m.ensureLocked(channel)

	slog.Debug("channel activity changed", "channel", channel, "active", active)

	if m.cfg != nil && channel == m.cfg.PriorityChannel {
		m.reevaluateLocked()
	}
}

// reevaluateLocked drives every channel toward its policy target.
// Caller holds m.mu.
func (m *Manager) reevaluateLocked() {
	if m.cfg == nil {
		return
	}

	cfg := *m.cfg
	priorityActive := m.active[cfg.PriorityChannel]

	for channel := range m.baselines {
		var target float64
		var duration time.Duration

		switch {
		case channel == cfg.PriorityChannel:
			if priorityActive {
				target = Clamp(cfg.PriorityVolume)
				duration = cfg.DuckTransition
			} else {
				target = m.baselines[channel]
				duration = cfg.RestoreTransition
			}
			delete(m.ducked, channel)
		case priorityActive:
			target = Clamp(cfg.DuckingVolume)
			duration = cfg.DuckTransition
			m.ducked[channel] = target
		default:
			target = m.baselines[channel]
			duration = cfg.RestoreTransition
			delete(m.ducked, channel)
		}

		m.startTransitionLocked(channel, target, duration, cfg.Easing)
	}
}
