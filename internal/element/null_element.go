package element

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// defaultNullDuration is the synthetic length of any source loaded into a
// NullElement when none is configured
const defaultNullDuration = 250 * time.Millisecond

// NullElement is a silent Element implementation. It reports readiness
// immediately and simulates playback timing without touching any audio
// device. Used for silent mode and environments without audio hardware.
type NullElement struct {
	mu       sync.Mutex
	handler  Handler
	source   string
	duration time.Duration
	position time.Duration
	volume   float64
	loop     bool
	playing  bool
	closed   bool
	done     chan struct{}
}

// NewNullElement creates a silent element whose sources all appear to have
// the given duration (0 uses a small default)
func NewNullElement(duration time.Duration) *NullElement {
	if duration <= 0 {
		duration = defaultNullDuration
	}
	slog.Debug("creating null element", "synthetic_duration", duration)
	return &NullElement{
		duration: duration,
		volume:   1.0,
	}
}

// SetHandler attaches the notification handler
func (n *NullElement) SetHandler(h Handler) {
	n.mu.Lock()
	n.handler = h
	n.mu.Unlock()
}

// Load accepts any source and reports readiness asynchronously
func (n *NullElement) Load(source string) {
	n.mu.Lock()
	if n.closed {
		handler := n.handler
		n.mu.Unlock()
		if handler != nil {
			handler.OnError(ErrElementClosed)
		}
		return
	}

	n.stopLocked()
	n.source = source
	n.position = 0
	handler := n.handler
	n.mu.Unlock()

	slog.Debug("null element loaded source", "source", source)

	if handler != nil {
		go handler.OnCanPlay()
	}
}

// Play starts the synthetic playback clock
func (n *NullElement) Play() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrElementClosed
	}
	if n.source == "" {
		n.mu.Unlock()
		return ErrNoSource
	}
	if n.playing {
		n.mu.Unlock()
		return nil
	}

	n.playing = true
	n.done = make(chan struct{})
	go n.tick(n.done)
	n.mu.Unlock()

	slog.Debug("null element playing", "source", n.source)
	return nil
}

// tick advances the synthetic position until the done channel closes
func (n *NullElement) tick(done chan struct{}) {
	const step = 50 * time.Millisecond
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n.mu.Lock()
			if !n.playing {
				n.mu.Unlock()
				return
			}
			n.position += step
			ended := n.position >= n.duration
			if ended && n.loop {
				n.position = 0
				ended = false
			}
			if ended {
				n.playing = false
				n.stopLocked()
			}
			handler := n.handler
			pos, dur := n.position, n.duration
			n.mu.Unlock()

			if handler == nil {
				continue
			}
			if ended {
				handler.OnEnded()
				return
			}
			handler.OnTimeUpdate(pos, dur)
		}
	}
}

// Pause halts the synthetic clock, retaining position
func (n *NullElement) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrElementClosed
	}
	n.playing = false
	n.stopLocked()
	return nil
}

// Seek moves the synthetic position
func (n *NullElement) Seek(position time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrElementClosed
	}
	if position < 0 {
		position = 0
	}
	if position > n.duration {
		position = n.duration
	}
	n.position = position
	return nil
}

// Stop halts playback and resets position
func (n *NullElement) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrElementClosed
	}
	n.playing = false
	n.position = 0
	n.stopLocked()
	return nil
}

// stopLocked closes the ticker channel. Caller holds n.mu.
func (n *NullElement) stopLocked() {
	if n.done != nil {
		close(n.done)
		n.done = nil
	}
}

// SetVolume stores the volume, clamped to [0,1]
func (n *NullElement) SetVolume(level float64) error {
	if math.IsNaN(level) {
		return ErrInvalidVolume
	}
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	n.mu.Lock()
	n.volume = level
	n.mu.Unlock()
	return nil
}

// Volume returns the stored volume
func (n *NullElement) Volume() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume
}

// SetLoop toggles synthetic looping
func (n *NullElement) SetLoop(loop bool) {
	n.mu.Lock()
	n.loop = loop
	n.mu.Unlock()
}

// Position reports the synthetic position and duration
func (n *NullElement) Position() (time.Duration, time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.position, n.duration
}

// Close releases the element
func (n *NullElement) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.playing = false
	n.stopLocked()
	return nil
}
