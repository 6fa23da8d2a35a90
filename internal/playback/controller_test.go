package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cueloop.dev/internal/element"
	"cueloop.dev/internal/events"
	"cueloop.dev/internal/queue"
	"cueloop.dev/internal/retry"
)

type emitted struct {
	kind    events.Kind
	payload any
}

// harness wires a controller to a mock element and records everything it
// emits
type harness struct {
	el *element.MockElement
	q  *queue.Queue
	c  *Controller

	mu     sync.Mutex
	events []emitted
	active []bool
}

func newHarness(t *testing.T, retryCfg retry.Config) *harness {
	t.Helper()

	h := &harness{
		el: element.NewMockElement(),
		q:  queue.New(0, false),
	}
	h.c = NewController(Config{
		Channel: 0,
		Element: h.el,
		Queue:   h.q,
		Retry:   retry.NewManager(retryCfg),
		Emit: func(kind events.Kind, payload any) {
			h.mu.Lock()
			h.events = append(h.events, emitted{kind: kind, payload: payload})
			h.mu.Unlock()
		},
		OnActive: func(active bool) {
			h.mu.Lock()
			h.active = append(h.active, active)
			h.mu.Unlock()
		},
		Volume: func() float64 { return 0.8 },
	})
	return h
}

// noRetry disables retries and the load timeout
func noRetry() retry.Config {
	return retry.Config{}
}

func (h *harness) kinds() []events.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.Kind, len(h.events))
	for i, e := range h.events {
		out[i] = e.kind
	}
	return out
}

func (h *harness) countKind(kind events.Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (h *harness) lastOfKind(kind events.Kind) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].kind == kind {
			return h.events[i].payload, true
		}
	}
	return nil, false
}

func (h *harness) lastActive() (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.active) == 0 {
		return false, false
	}
	return h.active[len(h.active)-1], true
}

func (h *harness) enqueue(t *testing.T, source string) {
	t.Helper()
	require.NoError(t, h.c.Enqueue(&queue.Entry{Source: source, Enqueued: time.Now()}, false))
}

func TestEnqueueOnIdleStartsLoading(t *testing.T) {
	h := newHarness(t, noRetry())

	h.enqueue(t, "a.wav")

	assert.Equal(t, Loading, h.c.State())
	assert.Equal(t, "a.wav", h.el.LastLoaded())
	assert.Equal(t, 1, h.countKind(events.KindQueueChange))
}

func TestCanPlayStartsPlayback(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")

	h.el.FireCanPlay(2 * time.Second)

	assert.Equal(t, Playing, h.c.State())
	assert.Equal(t, 1, h.el.PlayCalls)
	assert.Equal(t, 0.8, h.el.Volume(), "channel volume applied to the element")

	payload, ok := h.lastOfKind(events.KindStart)
	require.True(t, ok, "start event emitted")
	info := payload.(events.Payload)
	assert.Equal(t, "a.wav", info.Source)
	assert.Equal(t, "a.wav", info.Filename)
	assert.Equal(t, 2*time.Second, info.Duration)

	active, ok := h.lastActive()
	require.True(t, ok)
	assert.True(t, active)
}

func TestPerItemVolumeOverride(t *testing.T) {
	h := newHarness(t, noRetry())

	override := 0.3
	require.NoError(t, h.c.Enqueue(&queue.Entry{Source: "a.wav", Volume: &override}, false))
	h.el.FireCanPlay(time.Second)

	assert.Equal(t, 0.3, h.el.Volume())
}

func TestLoopFlagReachesElement(t *testing.T) {
	h := newHarness(t, noRetry())

	require.NoError(t, h.c.Enqueue(&queue.Entry{Source: "a.wav", Loop: true}, false))
	h.el.FireCanPlay(time.Second)

	assert.True(t, h.el.Loop())
}

func TestEnqueueWhileBusyOnlyQueues(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	h.enqueue(t, "b.wav")

	assert.Len(t, h.el.LoadedSources, 1, "second entry must wait its turn")
	assert.Equal(t, 2, h.c.QueueLength())
}

func TestNaturalCompletionAdvancesInOrder(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	h.enqueue(t, "b.wav")
	h.enqueue(t, "c.wav")

	h.el.FireEnded()
	assert.Equal(t, "b.wav", h.el.LastLoaded())
	h.el.FireCanPlay(time.Second)

	h.el.FireEnded()
	assert.Equal(t, "c.wav", h.el.LastLoaded())
	h.el.FireCanPlay(time.Second)

	h.el.FireEnded()
	assert.Equal(t, Idle, h.c.State())
	assert.Equal(t, 3, h.countKind(events.KindComplete))

	active, ok := h.lastActive()
	require.True(t, ok)
	assert.False(t, active, "idle channel reports inactive")
}

func TestProgressEventsThrottled(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(10 * time.Second)

	h.el.FireProgress(100 * time.Millisecond)
	h.el.FireProgress(110 * time.Millisecond)
	h.el.FireProgress(120 * time.Millisecond)

	assert.Equal(t, 1, h.countKind(events.KindProgress),
		"back-to-back updates inside the throttle window emit once")

	info := h.c.CurrentInfo()
	require.NotNil(t, info)
	assert.Equal(t, 120*time.Millisecond, info.Position,
		"runtime state tracks every update even when the event is suppressed")
}

func TestCompletingNearTheEnd(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	h.el.FireProgress(950 * time.Millisecond)

	assert.Equal(t, Completing, h.c.State())
	assert.True(t, h.c.State().IsAudible())
}

func TestPauseAndResume(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	h.c.Pause()
	assert.Equal(t, Paused, h.c.State())
	assert.True(t, h.c.IsPaused())
	assert.Equal(t, 1, h.el.PauseCalls)
	assert.Equal(t, 1, h.countKind(events.KindPause))

	active, _ := h.lastActive()
	assert.False(t, active, "paused channel stops counting as audible")

	h.c.Resume()
	assert.Equal(t, Playing, h.c.State())
	assert.False(t, h.c.IsPaused())
	assert.Equal(t, 2, h.el.PlayCalls)
	assert.Equal(t, 1, h.countKind(events.KindResume))
}

func TestPauseIsIdempotent(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	h.c.Pause()
	h.c.Pause()

	assert.Equal(t, 1, h.el.PauseCalls)
	assert.Equal(t, 1, h.countKind(events.KindPause))
}

func TestTogglePause(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	h.c.TogglePause()
	assert.True(t, h.c.IsPaused())
	h.c.TogglePause()
	assert.False(t, h.c.IsPaused())
}

func TestPauseBeforeReadyDefersPlayback(t *testing.T) {
	h := newHarness(t, noRetry())

	h.c.Pause()
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	assert.Equal(t, Paused, h.c.State())
	assert.Zero(t, h.el.PlayCalls, "ready item must wait for resume")

	h.c.Resume()
	assert.Equal(t, Playing, h.c.State())
	assert.Equal(t, 1, h.el.PlayCalls)
}

func TestStopCurrentInterruptsAndAdvances(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	h.enqueue(t, "b.wav")

	h.c.StopCurrent()

	payload, ok := h.lastOfKind(events.KindComplete)
	require.True(t, ok)
	assert.True(t, payload.(events.Payload).Interrupted)
	assert.Equal(t, 1, h.el.StopCalls)
	assert.Equal(t, "b.wav", h.el.LastLoaded())
}

func TestStopAllClearsPendingAndInterrupts(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	h.enqueue(t, "b.wav")
	h.enqueue(t, "c.wav")

	h.c.StopAll()

	assert.Equal(t, Idle, h.c.State())
	assert.Equal(t, 0, h.c.QueueLength())
	assert.Equal(t, 1, h.countKind(events.KindComplete), "only the in-flight item completes")
}

func TestErrorSchedulesRetryWithBackoff(t *testing.T) {
	h := newHarness(t, retry.Config{
		Enabled:    true,
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
	})
	h.enqueue(t, "a.wav")

	h.el.FireError(errors.New("boom"))

	assert.Equal(t, Loading, h.c.State())
	assert.Eventually(t, func() bool {
		return len(h.el.LoadedSources) == 2
	}, time.Second, 5*time.Millisecond, "retry re-loads the same source after the delay")
	assert.Equal(t, "a.wav", h.el.LastLoaded())
}

func TestRetriesExhaustedHaltsChannel(t *testing.T) {
	h := newHarness(t, retry.Config{
		Enabled:    true,
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
	})
	h.enqueue(t, "a.wav")
	h.enqueue(t, "b.wav")

	h.el.FireError(errors.New("boom"))
	require.Eventually(t, func() bool {
		return len(h.el.LoadedSources) == 2
	}, time.Second, time.Millisecond)

	h.el.FireError(errors.New("boom"))

	assert.Equal(t, Idle, h.c.State())
	assert.True(t, h.c.IsHalted())
	assert.Len(t, h.el.LoadedSources, 2, "halted channel must not advance to b.wav")

	payload, ok := h.lastOfKind(events.KindError)
	require.True(t, ok)
	errInfo := payload.(events.ErrorPayload)
	assert.True(t, errInfo.Terminal)
	assert.Equal(t, "a.wav", errInfo.Source)
	assert.Equal(t, 1, errInfo.Attempts)
	assert.Equal(t, 1, errInfo.Remaining)
}

func TestSkipOnFailureAdvancesPastFailedEntry(t *testing.T) {
	h := newHarness(t, retry.Config{SkipOnFailure: true})
	h.enqueue(t, "a.wav")
	h.enqueue(t, "b.wav")

	h.el.FireError(errors.New("boom"))

	assert.False(t, h.c.IsHalted())
	assert.Equal(t, "b.wav", h.el.LastLoaded())
	assert.Equal(t, 1, h.countKind(events.KindError))
}

func TestFallbackTriedBeforeRetries(t *testing.T) {
	h := newHarness(t, retry.Config{
		Enabled:      true,
		MaxRetries:   1,
		BaseDelay:    time.Millisecond,
		FallbackURLs: []string{"backup.wav"},
	})
	h.enqueue(t, "a.wav")

	h.el.FireError(errors.New("boom"))

	// Fallback loads immediately, no backoff
	assert.Equal(t, "backup.wav", h.el.LastLoaded())
	assert.Equal(t, Loading, h.c.State())
}

func TestManualRetryRestartsHaltedEntry(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")

	h.el.FireError(errors.New("boom"))
	require.True(t, h.c.IsHalted())

	assert.True(t, h.c.RetryFailed())
	assert.Equal(t, Loading, h.c.State())
	assert.False(t, h.c.IsHalted())
	assert.Len(t, h.el.LoadedSources, 2)

	// A successful re-attempt plays normally
	h.el.FireCanPlay(time.Second)
	assert.Equal(t, Playing, h.c.State())
}

func TestManualRetryOnHealthyChannelIsNoop(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)

	assert.False(t, h.c.RetryFailed())
	assert.Equal(t, Playing, h.c.State())
}

func TestEnqueueWhileHaltedDoesNotStart(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireError(errors.New("boom"))
	require.True(t, h.c.IsHalted())

	h.enqueue(t, "b.wav")

	assert.Len(t, h.el.LoadedSources, 1, "halted channel stalls at the failed entry")
	assert.Equal(t, 2, h.c.QueueLength())
}

func TestStopCurrentDiscardsFailedEntry(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "bad.wav")
	h.enqueue(t, "good.wav")
	h.el.FireError(errors.New("boom"))
	require.True(t, h.c.IsHalted())

	h.c.StopCurrent()

	assert.False(t, h.c.IsHalted())
	assert.Equal(t, "good.wav", h.el.LastLoaded(), "discarding the failed entry unblocks the queue")
	assert.Equal(t, 1, h.c.QueueLength())

	payload, ok := h.lastOfKind(events.KindComplete)
	require.True(t, ok)
	assert.True(t, payload.(events.Payload).Interrupted)
}

func TestStopAllClearsHaltedChannel(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "bad.wav")
	h.enqueue(t, "good.wav")
	h.el.FireError(errors.New("boom"))
	require.True(t, h.c.IsHalted())

	h.c.StopAll()

	assert.False(t, h.c.IsHalted())
	assert.Equal(t, Idle, h.c.State())
	assert.Equal(t, 0, h.c.QueueLength())

	// A stopped channel is usable again
	h.enqueue(t, "c.wav")
	assert.Equal(t, "c.wav", h.el.LastLoaded())
}

func TestLoadTimeoutFails(t *testing.T) {
	h := newHarness(t, retry.Config{Timeout: 20 * time.Millisecond})
	h.enqueue(t, "a.wav")

	assert.Eventually(t, func() bool {
		payload, ok := h.lastOfKind(events.KindError)
		if !ok {
			return false
		}
		return payload.(events.ErrorPayload).Kind == "timeout"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, h.c.IsHalted())
}

func TestQueueEditsEmitQueueChange(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	h.enqueue(t, "b.wav")
	h.enqueue(t, "c.wav")
	before := h.countKind(events.KindQueueChange)

	require.NoError(t, h.c.Swap(1, 2))
	require.NoError(t, h.c.Reorder(1, 2))
	require.NoError(t, h.c.Remove(1))

	assert.Equal(t, before+3, h.countKind(events.KindQueueChange))
	assert.Equal(t, 2, h.c.QueueLength())
}

func TestQueueEditFailureEmitsNothing(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	before := h.countKind(events.KindQueueChange)

	err := h.c.Remove(0)
	assert.ErrorIs(t, err, queue.ErrInvalidIndex)
	assert.Equal(t, before, h.countKind(events.KindQueueChange))
}

func TestDestroyStopsAndIgnoresStaleCallbacks(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	h.enqueue(t, "b.wav")

	h.c.Destroy()

	assert.Equal(t, Idle, h.c.State())
	assert.Equal(t, 0, h.c.QueueLength())
	assert.Equal(t, 1, h.el.StopCalls)

	before := h.countKind(events.KindStart)
	h.el.FireCanPlay(time.Second)
	h.el.FireEnded()
	assert.Equal(t, before, h.countKind(events.KindStart), "destroyed controller ignores the element")

	assert.ErrorIs(t, h.c.Enqueue(&queue.Entry{Source: "x.wav"}, false), element.ErrElementClosed)
}

func TestCurrentInfoWhileIdle(t *testing.T) {
	h := newHarness(t, noRetry())
	assert.Nil(t, h.c.CurrentInfo())
}

func TestPushFrontPlaysNext(t *testing.T) {
	h := newHarness(t, noRetry())
	h.enqueue(t, "a.wav")
	h.el.FireCanPlay(time.Second)
	h.enqueue(t, "q1.wav")
	h.enqueue(t, "q2.wav")

	require.NoError(t, h.c.Enqueue(&queue.Entry{Source: "urgent.wav"}, true))

	snap := h.c.Snapshot()
	require.Len(t, snap.Items, 4)
	assert.Equal(t, "a.wav", snap.Items[0].Source)
	assert.Equal(t, "urgent.wav", snap.Items[1].Source)

	h.el.FireEnded()
	assert.Equal(t, "urgent.wav", h.el.LastLoaded())
}
