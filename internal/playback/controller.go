package playback

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"cueloop.dev/internal/element"
	"cueloop.dev/internal/events"
	"cueloop.dev/internal/queue"
	"cueloop.dev/internal/retry"
)

// Defaults for tunables left zero in Config
const (
	DefaultProgressInterval    = 75 * time.Millisecond
	defaultCompletingThreshold = 0.9
)

// Config wires one controller to its channel's collaborators
type Config struct {
	Channel int
	Element element.Element
	Queue   *queue.Queue
	Retry   *retry.Manager

	// Emit publishes an event for this channel
	Emit func(kind events.Kind, payload any)

	// OnActive reports audible-activity edges, feeding the ducking manager
	OnActive func(active bool)

	// Volume returns the channel's current effective volume, applied to
	// entries without a per-item override
	Volume func() float64

	// ProgressInterval is the minimum gap between progress events
	ProgressInterval time.Duration

	// CompletingThreshold is the progress fraction that enters Completing
	CompletingThreshold float64
}

// Controller drives one channel's queue through the playback state machine.
// It owns the channel's queue: all queue access goes through the controller
// so that queue mutations and state transitions stay atomic with respect to
// each other.
type Controller struct {
	cfg Config

	mu           sync.Mutex
	state        State
	paused       bool
	halted       bool // Stalled at a failed entry awaiting manual retry
	destroyed    bool
	gen          int // Load generation; stale timers and callbacks are dropped
	loadSource   string
	lastProgress time.Time
	loadTimer    *time.Timer
	retryTimer   *time.Timer
}

// NewController creates a controller and attaches itself as the element's
// notification handler
func NewController(cfg Config) *Controller {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.CompletingThreshold <= 0 {
		cfg.CompletingThreshold = defaultCompletingThreshold
	}
	if cfg.Emit == nil {
		cfg.Emit = func(events.Kind, any) {}
	}
	if cfg.OnActive == nil {
		cfg.OnActive = func(bool) {}
	}
	if cfg.Volume == nil {
		cfg.Volume = func() float64 { return 1.0 }
	}

	c := &Controller{cfg: cfg}
	cfg.Element.SetHandler(c)

	slog.Debug("playback controller created", "channel", cfg.Channel)
	return c
}

// State returns the current machine state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsHalted reports whether the channel stalled at a failed entry
func (c *Controller) IsHalted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Enqueue adds an entry to the channel's queue (at the front of the pending
// list when front is set) and starts playback if the channel is idle
func (c *Controller) Enqueue(entry *queue.Entry, front bool) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return element.ErrElementClosed
	}

	var err error
	if front {
		err = c.cfg.Queue.PushFront(entry)
	} else {
		err = c.cfg.Queue.Push(entry)
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}

	snap := c.cfg.Queue.Snapshot()
	start := c.state == Idle && !c.halted
	var source string
	if start {
		next := c.cfg.Queue.Advance()
		source = c.beginLoadLocked(next)
	}
	c.mu.Unlock()

	c.emitQueueChange(snap)
	if start {
		c.load(source)
	}
	return nil
}

// beginLoadLocked transitions to Loading for the given current entry and
// returns the source to hand to the element. Caller holds c.mu and must
// call c.load(source) after unlocking.
func (c *Controller) beginLoadLocked(entry *queue.Entry) string {
	c.state = Loading
	c.gen++
	c.halted = false
	c.loadSource = entry.Source

	slog.Debug("loading queue entry",
		"channel", c.cfg.Channel,
		"source", entry.Source,
		"attempt", entry.Attempts)

	return c.loadSource
}

// load hands a source to the element and arms the load timeout.
// Must be called without holding c.mu.
func (c *Controller) load(source string) {
	c.armLoadTimeout()
	c.cfg.Element.Load(source)
}

// armLoadTimeout bounds how long Loading may persist
func (c *Controller) armLoadTimeout() {
	timeout := c.cfg.Retry.Timeout()
	if timeout <= 0 {
		return
	}

	c.mu.Lock()
	gen := c.gen
	if c.loadTimer != nil {
		c.loadTimer.Stop()
	}
	c.loadTimer = time.AfterFunc(timeout, func() {
		c.onLoadTimeout(gen)
	})
	c.mu.Unlock()
}

// onLoadTimeout fires when the ready signal never arrived in time
func (c *Controller) onLoadTimeout(gen int) {
	c.mu.Lock()
	if c.destroyed || gen != c.gen || c.state != Loading {
		c.mu.Unlock()
		return
	}
	source := c.loadSource
	c.mu.Unlock()

	slog.Warn("load timed out", "channel", c.cfg.Channel, "source", source)
	c.handleFailure(retry.ErrLoadTimeout)
}

// OnCanPlay implements element.Handler: the loaded source is ready
func (c *Controller) OnCanPlay() {
	c.mu.Lock()
	if c.destroyed || c.state != Loading {
		c.mu.Unlock()
		return
	}

	cur := c.cfg.Queue.Current()
	if cur == nil {
		c.mu.Unlock()
		return
	}

	c.stopTimersLocked()

	_, duration := c.cfg.Element.Position()
	cur.Runtime.Duration = duration
	cur.Runtime.CurrentTime = 0
	cur.Runtime.IsPlaying = true
	cur.Runtime.IsPaused = c.paused

	level := c.cfg.Volume()
	if cur.Volume != nil {
		level = *cur.Volume
	}
	loop := cur.Loop
	startPaused := c.paused

	if startPaused {
		c.state = Paused
	} else {
		c.state = Playing
	}
	c.lastProgress = time.Time{}
	payload := c.payloadLocked(cur, false)
	c.mu.Unlock()

	c.cfg.Element.SetLoop(loop)
	if err := c.cfg.Element.SetVolume(level); err != nil {
		slog.Warn("failed to set element volume", "channel", c.cfg.Channel, "error", err)
	}

	if startPaused {
		slog.Debug("entry ready while channel paused", "channel", c.cfg.Channel, "source", cur.Source)
		return
	}

	if err := c.cfg.Element.Play(); err != nil {
		slog.Error("failed to start playback", "channel", c.cfg.Channel, "error", err)
		c.handleFailure(err)
		return
	}

	slog.Info("playback started",
		"channel", c.cfg.Channel,
		"source", payload.Source,
		"duration", payload.Duration)

	c.cfg.OnActive(true)
	c.cfg.Emit(events.KindStart, payload)
}

// OnTimeUpdate implements element.Handler: periodic playback progress
func (c *Controller) OnTimeUpdate(position, duration time.Duration) {
	c.mu.Lock()
	if c.destroyed || !c.state.IsAudible() {
		c.mu.Unlock()
		return
	}

	cur := c.cfg.Queue.Current()
	if cur == nil {
		c.mu.Unlock()
		return
	}

	cur.Runtime.CurrentTime = position
	if duration > 0 {
		cur.Runtime.Duration = duration
	}

	if c.state == Playing && cur.Runtime.Progress() > c.cfg.CompletingThreshold {
		c.state = Completing
		slog.Debug("entry nearing completion",
			"channel", c.cfg.Channel,
			"source", cur.Source,
			"progress", cur.Runtime.Progress())
	}

	// Bound the event rate; state is updated regardless
	now := time.Now()
	if now.Sub(c.lastProgress) < c.cfg.ProgressInterval {
		c.mu.Unlock()
		return
	}
	c.lastProgress = now
	payload := c.payloadLocked(cur, false)
	c.mu.Unlock()

	c.cfg.Emit(events.KindProgress, payload)
}

// OnEnded implements element.Handler: the entry reached its natural end
func (c *Controller) OnEnded() {
	c.finish(Completed, nil)
}

// OnError implements element.Handler: loading or playback failed
func (c *Controller) OnError(err error) {
	c.handleFailure(err)
}

// finish settles the current entry with a terminal disposition, advances
// the queue, and starts the next entry or goes idle. A halted channel is
// idle but still owns its failed entry, so stopping it discards that entry
// and unblocks the queue.
func (c *Controller) finish(disposition Disposition, cause error) {
	c.mu.Lock()
	if c.destroyed || (c.state == Idle && !c.halted) {
		c.mu.Unlock()
		return
	}

	cur := c.cfg.Queue.Current()
	if cur == nil {
		c.mu.Unlock()
		return
	}

	c.stopTimersLocked()

	cur.Runtime.IsPlaying = false
	payload := c.payloadLocked(cur, disposition == Interrupted)

	slog.Info("entry finished",
		"channel", c.cfg.Channel,
		"source", cur.Source,
		"disposition", disposition.String(),
		"error", cause)

	next := c.cfg.Queue.Advance()
	var source string
	if next != nil {
		source = c.beginLoadLocked(next)
	} else {
		c.state = Idle
		c.halted = false
	}
	snap := c.cfg.Queue.Snapshot()
	c.mu.Unlock()

	if disposition == Interrupted {
		if err := c.cfg.Element.Stop(); err != nil {
			slog.Warn("failed to stop element", "channel", c.cfg.Channel, "error", err)
		}
	}

	c.cfg.Emit(events.KindComplete, payload)
	c.emitQueueChange(snap)

	if next != nil {
		c.load(source)
		return
	}
	c.cfg.OnActive(false)
}

// handleFailure routes a failure through the retry policy and acts on the
// verdict: fallback, scheduled retry, or terminal disposition
func (c *Controller) handleFailure(cause error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}

	cur := c.cfg.Queue.Current()
	if cur == nil {
		c.mu.Unlock()
		return
	}

	c.stopTimersLocked()

	decision := c.cfg.Retry.Evaluate(cur.Attempts, cur.Fallback, cause)
	c.mu.Unlock()

	slog.Debug("failure evaluated",
		"channel", c.cfg.Channel,
		"action", decision.Action.String(),
		"kind", decision.Kind,
		"error", cause)

	switch decision.Action {
	case retry.ActionFallback:
		c.applyFallback(decision)
	case retry.ActionRetry:
		c.scheduleRetry(decision)
	case retry.ActionTerminal:
		c.settleTerminal(decision, cause)
	}
}

// applyFallback re-attempts immediately with the next fallback URL
func (c *Controller) applyFallback(decision retry.Decision) {
	c.mu.Lock()
	cur := c.cfg.Queue.Current()
	if c.destroyed || cur == nil {
		c.mu.Unlock()
		return
	}

	cur.Fallback++
	c.state = Loading
	c.gen++
	c.loadSource = decision.Source
	c.mu.Unlock()

	slog.Info("trying fallback source",
		"channel", c.cfg.Channel,
		"original", cur.Source,
		"fallback", decision.Source)

	c.load(decision.Source)
}

// scheduleRetry arms the backoff timer for another attempt at the same source
func (c *Controller) scheduleRetry(decision retry.Decision) {
	c.mu.Lock()
	cur := c.cfg.Queue.Current()
	if c.destroyed || cur == nil {
		c.mu.Unlock()
		return
	}

	cur.Attempts++
	c.state = Loading
	c.gen++
	gen := c.gen
	source := c.loadSource

	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(decision.Delay, func() {
		c.onRetryTimer(gen, source)
	})
	c.mu.Unlock()

	slog.Info("retry scheduled",
		"channel", c.cfg.Channel,
		"source", source,
		"attempt", cur.Attempts,
		"delay", decision.Delay)
}

// onRetryTimer re-attempts the load once the backoff elapsed
func (c *Controller) onRetryTimer(gen int, source string) {
	c.mu.Lock()
	if c.destroyed || gen != c.gen || c.state != Loading {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.load(source)
}

// settleTerminal emits the terminal error and either advances past the
// entry (skip-on-failure) or halts the channel awaiting manual intervention
func (c *Controller) settleTerminal(decision retry.Decision, cause error) {
	c.mu.Lock()
	cur := c.cfg.Queue.Current()
	if c.destroyed || cur == nil {
		c.mu.Unlock()
		return
	}

	cur.Runtime.IsPlaying = false
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	errPayload := events.ErrorPayload{
		Channel:   c.cfg.Channel,
		Source:    cur.Source,
		Filename:  filepath.Base(cur.Source),
		Kind:      string(decision.Kind),
		Message:   message,
		Attempts:  cur.Attempts,
		Remaining: c.cfg.Queue.PendingCount(),
		Terminal:  true,
		Timestamp: time.Now(),
	}

	var next *queue.Entry
	var source string
	var snap queue.Snapshot
	if decision.Skip {
		next = c.cfg.Queue.Advance()
		if next != nil {
			source = c.beginLoadLocked(next)
		} else {
			c.state = Idle
		}
		snap = c.cfg.Queue.Snapshot()
	} else {
		// Deliberately keep the failed entry at the head: content is not
		// silently lost. retryFailedAudio or removal resumes the channel.
		c.state = Idle
		c.halted = true
	}
	skipped := decision.Skip
	c.mu.Unlock()

	slog.Error("entry failed terminally",
		"channel", c.cfg.Channel,
		"source", errPayload.Source,
		"kind", errPayload.Kind,
		"attempts", errPayload.Attempts,
		"skipped", skipped)

	c.cfg.Emit(events.KindError, errPayload)

	if skipped {
		c.emitQueueChange(snap)
		if next != nil {
			c.load(source)
			return
		}
	}
	c.cfg.OnActive(false)
}

// RetryFailed re-attempts the halted entry at the head of the queue,
// outside the automatic policy. It reports whether a re-attempt started.
func (c *Controller) RetryFailed() bool {
	c.mu.Lock()
	cur := c.cfg.Queue.Current()
	if c.destroyed || !c.halted || cur == nil {
		c.mu.Unlock()
		return false
	}

	// Manual retry resets the budget so the automatic policy can run fresh
	cur.Attempts = 0
	cur.Fallback = 0
	source := c.beginLoadLocked(cur)
	c.mu.Unlock()

	slog.Info("manual retry of failed entry", "channel", c.cfg.Channel, "source", source)
	c.load(source)
	return true
}

// StopCurrent interrupts the in-flight entry and advances the queue
func (c *Controller) StopCurrent() {
	c.finish(Interrupted, nil)
}

// StopAll clears the pending entries and interrupts the current one
func (c *Controller) StopAll() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.cfg.Queue.ClearPending()
	snap := c.cfg.Queue.Snapshot()
	c.mu.Unlock()

	c.emitQueueChange(snap)
	c.finish(Interrupted, nil)
}

// Pause suspends playback. Pausing an idle or loading channel just sets the
// pause flag, honored once the next entry becomes ready.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.destroyed || c.paused {
		c.mu.Unlock()
		return
	}

	c.paused = true
	audible := c.state.CanPause()
	cur := c.cfg.Queue.Current()
	var payload events.Payload
	if cur != nil {
		cur.Runtime.IsPaused = true
		payload = c.payloadLocked(cur, false)
	} else {
		payload = c.emptyPayloadLocked()
	}
	if audible {
		c.state = Paused
	}
	c.mu.Unlock()

	if audible {
		if err := c.cfg.Element.Pause(); err != nil {
			slog.Warn("failed to pause element", "channel", c.cfg.Channel, "error", err)
		}
		c.cfg.OnActive(false)
	}

	slog.Debug("channel paused", "channel", c.cfg.Channel, "was_audible", audible)
	c.cfg.Emit(events.KindPause, payload)
}

// Resume reverses Pause
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.destroyed || !c.paused {
		c.mu.Unlock()
		return
	}

	c.paused = false
	resuming := c.state.CanResume()
	cur := c.cfg.Queue.Current()
	var payload events.Payload
	if cur != nil {
		cur.Runtime.IsPaused = false
		payload = c.payloadLocked(cur, false)
	} else {
		payload = c.emptyPayloadLocked()
	}
	if resuming {
		c.state = Playing
	}
	c.mu.Unlock()

	if resuming {
		if err := c.cfg.Element.Play(); err != nil {
			slog.Error("failed to resume element", "channel", c.cfg.Channel, "error", err)
			c.handleFailure(err)
			return
		}
		c.cfg.OnActive(true)
	}

	slog.Debug("channel resumed", "channel", c.cfg.Channel, "was_paused_playback", resuming)
	c.cfg.Emit(events.KindResume, payload)
}

// TogglePause flips between paused and resumed
func (c *Controller) TogglePause() {
	if c.IsPaused() {
		c.Resume()
	} else {
		c.Pause()
	}
}

// IsPaused reports the channel's pause flag
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Remove deletes the pending entry at the given public index
func (c *Controller) Remove(index int) error {
	return c.mutateQueue(func(q *queue.Queue) error {
		return q.Remove(index)
	})
}

// Reorder moves a pending entry between public indices
func (c *Controller) Reorder(from, to int) error {
	return c.mutateQueue(func(q *queue.Queue) error {
		return q.Reorder(from, to)
	})
}

// Swap exchanges two pending entries
func (c *Controller) Swap(a, b int) error {
	return c.mutateQueue(func(q *queue.Queue) error {
		return q.Swap(a, b)
	})
}

// ClearPending truncates the queue to just the in-flight entry
func (c *Controller) ClearPending() {
	_ = c.mutateQueue(func(q *queue.Queue) error {
		q.ClearPending()
		return nil
	})
}

// mutateQueue runs a queue mutation under the controller lock and emits a
// queueChange snapshot on success
func (c *Controller) mutateQueue(mutate func(q *queue.Queue) error) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return element.ErrElementClosed
	}

	if err := mutate(c.cfg.Queue); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.cfg.Queue.Snapshot()
	c.mu.Unlock()

	c.emitQueueChange(snap)
	return nil
}

// SetMaxQueueSize adjusts the queue cap (0 = unbounded)
func (c *Controller) SetMaxQueueSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Queue.SetMaxSize(size)
}

// QueueLength returns the total number of entries, including the current one
func (c *Controller) QueueLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Queue.Len()
}

// Snapshot captures the channel's queue
func (c *Controller) Snapshot() queue.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Queue.Snapshot()
}

// CurrentInfo returns the in-flight entry's payload view, or nil when idle
func (c *Controller) CurrentInfo() *events.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cfg.Queue.Current()
	if cur == nil {
		return nil
	}
	payload := c.payloadLocked(cur, false)
	return &payload
}

// Destroy stops playback, clears the queue, and renders the controller inert
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}

	c.destroyed = true
	c.gen++
	c.stopTimersLocked()
	c.cfg.Queue.Clear()
	wasActive := c.state.IsAudible()
	c.state = Idle
	c.mu.Unlock()

	if err := c.cfg.Element.Stop(); err != nil {
		slog.Debug("element stop during destroy", "channel", c.cfg.Channel, "error", err)
	}
	if wasActive {
		c.cfg.OnActive(false)
	}

	slog.Info("playback controller destroyed", "channel", c.cfg.Channel)
}

// stopTimersLocked cancels pending load and retry timers. Caller holds c.mu.
func (c *Controller) stopTimersLocked() {
	if c.loadTimer != nil {
		c.loadTimer.Stop()
		c.loadTimer = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// payloadLocked builds an event payload for the given entry. Caller holds c.mu.
func (c *Controller) payloadLocked(entry *queue.Entry, interrupted bool) events.Payload {
	return events.Payload{
		Channel:     c.cfg.Channel,
		Source:      entry.Source,
		Filename:    filepath.Base(entry.Source),
		Position:    entry.Runtime.CurrentTime,
		Duration:    entry.Runtime.Duration,
		Progress:    entry.Runtime.Progress(),
		Remaining:   c.cfg.Queue.PendingCount(),
		Interrupted: interrupted,
		Timestamp:   time.Now(),
	}
}

// emptyPayloadLocked builds a payload for an idle channel. Caller holds c.mu.
func (c *Controller) emptyPayloadLocked() events.Payload {
	return events.Payload{
		Channel:   c.cfg.Channel,
		Timestamp: time.Now(),
	}
}

// emitQueueChange publishes a queue snapshot
func (c *Controller) emitQueueChange(snap queue.Snapshot) {
	c.cfg.Emit(events.KindQueueChange, events.QueueChangePayload{
		Channel:   c.cfg.Channel,
		Snapshot:  snap,
		Timestamp: time.Now(),
	})
}
