package volume

import (
	"log/slog"
	"time"

	"github.com/tanema/gween"
)

// transitionStep is how often an in-flight transition updates the element
const transitionStep = 20 * time.Millisecond

// transition is one in-flight volume ramp on a channel. A newer request on
// the same channel supersedes it; there is no transition backlog.
type transition struct {
	stop   chan struct{}
	target float64
}

// startTransitionLocked begins ramping a channel from its current level to
// target over duration. An in-flight transition toward the same target is
// left alone; toward a different target it is cancelled and replaced.
// Caller holds m.mu.
func (m *Manager) startTransitionLocked(channel int, target float64, duration time.Duration, easing Easing) {
	if existing, ok := m.transitions[channel]; ok {
		if existing.target == target {
			return
		}
		close(existing.stop)
		delete(m.transitions, channel)
	}

	from := m.current[channel]
	if from == target {
		return
	}

	if duration <= 0 {
		m.current[channel] = target
		// Element volume setters are safe to call under the manager lock
		m.apply(channel, target)
		slog.Debug("volume snapped", "channel", channel, "volume", target)
		return
	}

	tr := &transition{
		stop:   make(chan struct{}),
		target: target,
	}
	m.transitions[channel] = tr

	tween := gween.New(float32(from), float32(target), float32(duration.Seconds()), easingFunc(easing))

	slog.Debug("volume transition started",
		"channel", channel,
		"from", from,
		"to", target,
		"duration", duration,
		"easing", easing)

	go m.runTransition(channel, tr, tween)
}

// stopTransitionLocked cancels the channel's in-flight transition, if any.
// Caller holds m.mu.
func (m *Manager) stopTransitionLocked(channel int) {
	if tr, ok := m.transitions[channel]; ok {
		close(tr.stop)
		delete(m.transitions, channel)
	}
}

// runTransition steps the tween until it finishes or is superseded.
// The final step snaps exactly to the target to avoid floating-point drift.
func (m *Manager) runTransition(channel int, tr *transition, tween *gween.Tween) {
	ticker := time.NewTicker(transitionStep)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-tr.stop:
			return
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now

			value, finished := tween.Update(dt)

			m.mu.Lock()
			if m.transitions[channel] != tr {
				// Superseded between ticks
				m.mu.Unlock()
				return
			}

			level := float64(value)
			if finished {
				level = tr.target
				delete(m.transitions, channel)
			}
			m.current[channel] = level
			apply := m.apply
			m.mu.Unlock()

			apply(channel, level)

			if finished {
				slog.Debug("volume transition finished", "channel", channel, "volume", level)
				return
			}
		}
	}
}
