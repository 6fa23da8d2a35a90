// Package cueloop is a multi-channel audio queue engine. Each channel is an
// independent playback lane with its own FIFO queue, volume, and pause state;
// a process-wide ducking policy can lower every other channel while a
// designated priority channel is audible. Playback outcomes are delivered
// through per-channel event subscriptions.
package cueloop

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cueloop.dev/internal/element"
	"cueloop.dev/internal/events"
	"cueloop.dev/internal/playback"
	"cueloop.dev/internal/queue"
	"cueloop.dev/internal/retry"
	"cueloop.dev/internal/volume"
)

// Engine is the public facade over the per-channel playback machinery.
// Channels are created lazily on first use and destroyed explicitly.
// All methods are safe for concurrent use.
type Engine struct {
	cfg        Config
	factory    element.Factory
	dispatcher *events.Dispatcher
	volumes    *volume.Manager
	retry      *retry.Manager

	mu       sync.Mutex
	channels map[int]*channelHandle
	closed   bool

	// elements is guarded by its own leaf lock so the volume manager can
	// resolve a channel's element from inside a transition without touching
	// the engine lock
	elemMu   sync.RWMutex
	elements map[int]element.Element
}

type channelHandle struct {
	controller *playback.Controller
	element    element.Element
}

// New creates an engine. Zero-value Config gives a malgo-backed engine with
// unbounded queues, full default volume, and the default retry policy.
func New(cfg Config) *Engine {
	if cfg.DefaultVolume <= 0 {
		cfg.DefaultVolume = 1.0
	}
	cfg.DefaultVolume = volume.Clamp(cfg.DefaultVolume)

	factory := cfg.Factory
	if factory == nil {
		factory = element.NewFactory()
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	e := &Engine{
		cfg:        cfg,
		factory:    factory,
		dispatcher: events.NewDispatcher(),
		retry:      retry.NewManager(retryCfg),
		channels:   make(map[int]*channelHandle),
		elements:   make(map[int]element.Element),
	}
	e.volumes = volume.NewManager(e.applyVolume)

	slog.Info("engine created",
		"default_volume", cfg.DefaultVolume,
		"max_queue_size", cfg.MaxQueueSize,
		"drop_oldest", cfg.DropOldestWhenFull,
		"element_kind", cfg.ElementKind)

	return e
}

// applyVolume pushes an effective level to a channel's element. Called by
// the volume manager, possibly from a transition goroutine.
func (e *Engine) applyVolume(channel int, level float64) {
	e.elemMu.RLock()
	el := e.elements[channel]
	e.elemMu.RUnlock()

	if el == nil {
		return
	}
	if err := el.SetVolume(level); err != nil {
		slog.Debug("volume apply skipped", "channel", channel, "level", level, "error", err)
	}
}

// handle returns the channel's handle, creating it when create is set
func (e *Engine) handle(channel int, create bool) (*channelHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if channel < 0 {
		return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, channel)
	}

	if h, ok := e.channels[channel]; ok {
		return h, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, channel)
	}

	el, err := e.factory.CreateElement(e.cfg.ElementKind)
	if err != nil {
		return nil, fmt.Errorf("failed to create element for channel %d: %w", channel, err)
	}

	q := queue.New(e.cfg.MaxQueueSize, e.cfg.DropOldestWhenFull)

	ch := channel
	controller := playback.NewController(playback.Config{
		Channel: ch,
		Element: el,
		Queue:   q,
		Retry:   e.retry,
		Emit: func(kind events.Kind, payload any) {
			e.dispatcher.Emit(ch, kind, payload)
		},
		OnActive: func(active bool) {
			e.volumes.SetChannelActive(ch, active)
		},
		Volume: func() float64 {
			return e.volumes.Effective(ch)
		},
	})

	h := &channelHandle{controller: controller, element: el}
	e.channels[channel] = h

	e.elemMu.Lock()
	e.elements[channel] = el
	e.elemMu.Unlock()

	e.volumes.EnsureChannel(channel)
	if e.cfg.DefaultVolume != 1.0 {
		e.volumes.SetBaseline(channel, e.cfg.DefaultVolume)
	}

	slog.Info("channel created", "channel", channel)
	return h, nil
}

// Enqueue appends an item to the channel's queue, creating the channel on
// first use. Playback starts immediately when the channel is idle.
// Structural failures (full queue) are returned synchronously; playback
// failures surface asynchronously through error events.
func (e *Engine) Enqueue(source string, channel int, opts *AudioOptions) error {
	return e.enqueue(source, channel, opts, false)
}

// EnqueuePriority inserts an item right behind the in-flight one, ahead of
// everything previously queued. It never replaces the in-flight item.
func (e *Engine) EnqueuePriority(source string, channel int, opts *AudioOptions) error {
	return e.enqueue(source, channel, opts, true)
}

func (e *Engine) enqueue(source string, channel int, opts *AudioOptions, front bool) error {
	h, err := e.handle(channel, true)
	if err != nil {
		return err
	}

	entry := &queue.Entry{
		Source:   source,
		Enqueued: time.Now(),
	}
	if opts != nil {
		entry.Loop = opts.Loop
		if opts.Volume != nil {
			clamped := volume.Clamp(*opts.Volume)
			entry.Volume = &clamped
		}
		if opts.MaxQueueSize != nil {
			h.controller.SetMaxQueueSize(*opts.MaxQueueSize)
		}
		if opts.AddToFront {
			front = true
		}
	}

	slog.Debug("enqueueing item",
		"channel", channel,
		"source", source,
		"front", front,
		"loop", entry.Loop)

	return h.controller.Enqueue(entry, front)
}

// StopCurrent interrupts the channel's in-flight item and advances to the
// next queued one
func (e *Engine) StopCurrent(channel int) error {
	h, err := e.handle(channel, false)
	if err != nil {
		return err
	}
	h.controller.StopCurrent()
	return nil
}

// StopAll clears the channel's pending queue and interrupts the in-flight
// item
func (e *Engine) StopAll(channel int) error {
	h, err := e.handle(channel, false)
	if err != nil {
		return err
	}
	h.controller.StopAll()
	return nil
}

// StopEverything stops every channel; queues empty, channels stay usable
func (e *Engine) StopEverything() {
	for _, h := range e.handles() {
		h.controller.StopAll()
	}
}

// DestroyChannel stops playback, clears the queue, removes every subscriber
// for the channel, and releases its element. A later Enqueue on the same
// channel number starts fresh.
func (e *Engine) DestroyChannel(channel int) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	h, ok := e.channels[channel]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrChannelNotFound, channel)
	}
	delete(e.channels, channel)
	e.mu.Unlock()

	e.destroyHandle(channel, h)
	return nil
}

// DestroyAll destroys every channel
func (e *Engine) DestroyAll() {
	e.destroyAll()
}

func (e *Engine) destroyAll() {
	e.mu.Lock()
	doomed := e.channels
	e.channels = make(map[int]*channelHandle)
	e.mu.Unlock()

	for channel, h := range doomed {
		e.destroyHandle(channel, h)
	}
}

func (e *Engine) destroyHandle(channel int, h *channelHandle) {
	h.controller.Destroy()

	e.elemMu.Lock()
	delete(e.elements, channel)
	e.elemMu.Unlock()

	e.volumes.RemoveChannel(channel)
	e.dispatcher.RemoveChannel(channel)

	if err := h.element.Close(); err != nil {
		slog.Warn("failed to close element", "channel", channel, "error", err)
	}

	slog.Info("channel destroyed", "channel", channel)
}

// Close destroys every channel and renders the engine unusable
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.closed = true
	e.mu.Unlock()

	e.destroyAll()
	slog.Info("engine closed")
	return nil
}

// SetVolume stores the channel's baseline volume, clamped to [0,1], and
// applies it immediately unless a duck override is active. Returns the
// clamped value. The channel is created if needed.
func (e *Engine) SetVolume(channel int, level float64) float64 {
	if _, err := e.handle(channel, true); err != nil {
		return volume.Clamp(level)
	}
	return e.volumes.SetBaseline(channel, level)
}

// GetVolume returns the channel's baseline volume (1.0 when unknown)
func (e *Engine) GetVolume(channel int) float64 {
	return e.volumes.Baseline(channel)
}

// SetAllVolumes sets the baseline of every existing channel
func (e *Engine) SetAllVolumes(level float64) {
	e.mu.Lock()
	numbers := make([]int, 0, len(e.channels))
	for ch := range e.channels {
		numbers = append(numbers, ch)
	}
	e.mu.Unlock()

	for _, ch := range numbers {
		e.volumes.SetBaseline(ch, level)
	}
}

// SetDucking installs the process-wide ducking policy, replacing any
// previous one, and re-evaluates every channel immediately
func (e *Engine) SetDucking(cfg DuckingConfig) {
	e.volumes.SetDucking(cfg)
}

// ClearDucking removes the ducking policy and restores every channel to
// its baseline immediately
func (e *Engine) ClearDucking() {
	e.volumes.ClearDucking()
}

// GetDucking returns a copy of the active ducking policy, or nil
func (e *Engine) GetDucking() *DuckingConfig {
	return e.volumes.Ducking()
}

// Pause suspends the channel's playback; pausing an idle channel makes the
// next item start paused
func (e *Engine) Pause(channel int) {
	if h, err := e.handle(channel, true); err == nil {
		h.controller.Pause()
	}
}

// Resume reverses Pause
func (e *Engine) Resume(channel int) {
	if h, err := e.handle(channel, false); err == nil {
		h.controller.Resume()
	}
}

// TogglePause flips the channel between paused and resumed
func (e *Engine) TogglePause(channel int) {
	if h, err := e.handle(channel, true); err == nil {
		h.controller.TogglePause()
	}
}

// IsPaused reports the channel's pause flag
func (e *Engine) IsPaused(channel int) bool {
	h, err := e.handle(channel, false)
	if err != nil {
		return false
	}
	return h.controller.IsPaused()
}

// PauseAll pauses every existing channel
func (e *Engine) PauseAll() {
	for _, h := range e.handles() {
		h.controller.Pause()
	}
}

// ResumeAll resumes every existing channel
func (e *Engine) ResumeAll() {
	for _, h := range e.handles() {
		h.controller.Resume()
	}
}

// CurrentInfo describes the channel's in-flight item, or nil when idle or
// unknown
func (e *Engine) CurrentInfo(channel int) *AudioInfo {
	h, err := e.handle(channel, false)
	if err != nil {
		return nil
	}
	return h.controller.CurrentInfo()
}

// Snapshot returns an immutable copy of the channel's queue, or nil for an
// unknown channel
func (e *Engine) Snapshot(channel int) *QueueSnapshot {
	h, err := e.handle(channel, false)
	if err != nil {
		return nil
	}
	snap := h.controller.Snapshot()
	return &snap
}

// QueueLength returns the channel's total item count, including the
// in-flight one (0 for unknown channels)
func (e *Engine) QueueLength(channel int) int {
	h, err := e.handle(channel, false)
	if err != nil {
		return 0
	}
	return h.controller.QueueLength()
}

// RemoveQueuedItem removes the pending item at the given index. Index 0 is
// the in-flight item and is rejected with ErrInvalidIndex; use StopCurrent.
func (e *Engine) RemoveQueuedItem(channel, index int) error {
	h, err := e.handle(channel, false)
	if err != nil {
		return err
	}
	return h.controller.Remove(index)
}

// Reorder moves a pending item from one index to another; both must be >= 1
func (e *Engine) Reorder(channel, from, to int) error {
	h, err := e.handle(channel, false)
	if err != nil {
		return err
	}
	return h.controller.Reorder(from, to)
}

// Swap exchanges two pending items; both indices must be >= 1
func (e *Engine) Swap(channel, a, b int) error {
	h, err := e.handle(channel, false)
	if err != nil {
		return err
	}
	return h.controller.Swap(a, b)
}

// ClearAfterCurrent truncates the channel's queue to just the in-flight
// item, or empties it entirely when nothing is playing
func (e *Engine) ClearAfterCurrent(channel int) error {
	h, err := e.handle(channel, false)
	if err != nil {
		return err
	}
	h.controller.ClearPending()
	return nil
}

// On subscribes to one event kind on one channel. Callbacks fire
// synchronously in registration order; the returned disposer removes the
// subscription.
func (e *Engine) On(channel int, kind EventKind, cb Callback) Disposer {
	return e.dispatcher.On(channel, kind, cb)
}

// Off removes every callback of the given kind on the channel
func (e *Engine) Off(channel int, kind EventKind) {
	e.dispatcher.Off(channel, kind)
}

// SetRetryConfig replaces the process-wide retry policy wholesale; it
// applies to the next failure evaluation
func (e *Engine) SetRetryConfig(cfg RetryConfig) {
	e.retry.SetConfig(cfg)
}

// GetRetryConfig returns a copy of the process-wide retry policy
func (e *Engine) GetRetryConfig() RetryConfig {
	return e.retry.Config()
}

// RetryFailed re-attempts a channel stalled at a failed entry. It reports
// whether a re-attempt started; the outcome arrives asynchronously through
// start or error events.
func (e *Engine) RetryFailed(channel int) bool {
	h, err := e.handle(channel, false)
	if err != nil {
		return false
	}
	return h.controller.RetryFailed()
}

// handles returns the current channel handles without holding the lock
// during per-channel work
func (e *Engine) handles() []*channelHandle {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*channelHandle, 0, len(e.channels))
	for _, h := range e.channels {
		out = append(out, h)
	}
	return out
}
