package events

import (
	"log/slog"
	"sync"
)

// Kind identifies one category of playback event
type Kind string

// Event kinds fired by the engine
const (
	KindStart       Kind = "start"
	KindProgress    Kind = "progress"
	KindComplete    Kind = "complete"
	KindPause       Kind = "pause"
	KindResume      Kind = "resume"
	KindQueueChange Kind = "queueChange"
	KindError       Kind = "error"
)

// Callback receives one event payload. Payload types are per-kind and owned
// by the engine; callbacks must not retain or mutate them.
type Callback func(payload any)

// Disposer unregisters the callback it was returned for. Calling it more
// than once is harmless.
type Disposer func()

type subscriber struct {
	id int
	cb Callback
}

type key struct {
	channel int
	kind    Kind
}

// Dispatcher is a per-channel, per-kind subscriber registry with synchronous
// in-order fan-out. A panicking callback is isolated and logged; it never
// prevents the remaining callbacks from running.
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[key][]subscriber
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	slog.Debug("creating event dispatcher")
	return &Dispatcher{
		subs: make(map[key][]subscriber),
	}
}

// On registers a callback for one (channel, kind) pair and returns its
// disposer. Callbacks fire in registration order.
func (d *Dispatcher) On(channel int, kind Kind, cb Callback) Disposer {
	if cb == nil {
		slog.Warn("ignored nil event callback", "channel", channel, "kind", kind)
		return func() {}
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	k := key{channel: channel, kind: kind}
	d.subs[k] = append(d.subs[k], subscriber{id: id, cb: cb})
	total := len(d.subs[k])
	d.mu.Unlock()

	slog.Debug("event callback registered",
		"channel", channel,
		"kind", kind,
		"subscriber_id", id,
		"total_for_kind", total)

	return func() {
		d.remove(k, id)
	}
}

// Off removes every callback of the given kind for the channel
func (d *Dispatcher) Off(channel int, kind Kind) {
	k := key{channel: channel, kind: kind}

	d.mu.Lock()
	removed := len(d.subs[k])
	delete(d.subs, k)
	d.mu.Unlock()

	slog.Debug("event callbacks removed", "channel", channel, "kind", kind, "removed", removed)
}

// RemoveChannel clears every subscriber kind for a channel. Used on channel
// destruction.
func (d *Dispatcher) RemoveChannel(channel int) {
	d.mu.Lock()
	removed := 0
	for k := range d.subs {
		if k.channel == channel {
			removed += len(d.subs[k])
			delete(d.subs, k)
		}
	}
	d.mu.Unlock()

	slog.Debug("channel subscribers cleared", "channel", channel, "removed", removed)
}

// SubscriberCount returns the number of callbacks registered for one
// (channel, kind) pair
func (d *Dispatcher) SubscriberCount(channel int, kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs[key{channel: channel, kind: kind}])
}

// Emit invokes every current subscriber for (channel, kind) with the payload,
// synchronously and in registration order.
func (d *Dispatcher) Emit(channel int, kind Kind, payload any) {
	k := key{channel: channel, kind: kind}

	d.mu.Lock()
	subs := make([]subscriber, len(d.subs[k]))
	copy(subs, d.subs[k])
	d.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	slog.Debug("emitting event", "channel", channel, "kind", kind, "subscribers", len(subs))

	for _, s := range subs {
		d.invoke(channel, kind, s, payload)
	}
}

// invoke runs one callback with panic isolation
func (d *Dispatcher) invoke(channel int, kind Kind, s subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event callback panicked",
				"channel", channel,
				"kind", kind,
				"subscriber_id", s.id,
				"panic", r)
		}
	}()
	s.cb(payload)
}

func (d *Dispatcher) remove(k key, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subs[k]
	for i, s := range subs {
		if s.id == id {
			d.subs[k] = append(subs[:i], subs[i+1:]...)
			slog.Debug("event callback disposed",
				"channel", k.channel,
				"kind", k.kind,
				"subscriber_id", id)
			return
		}
	}
}
