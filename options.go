package cueloop

import (
	"errors"

	"cueloop.dev/internal/element"
	"cueloop.dev/internal/events"
	"cueloop.dev/internal/queue"
	"cueloop.dev/internal/retry"
	"cueloop.dev/internal/volume"
)

// Engine-level errors. Structural queue errors from the internal queue are
// re-exported so callers can match them with errors.Is.
var (
	ErrEngineClosed    = errors.New("engine is closed")
	ErrChannelNotFound = errors.New("channel not found")
	ErrQueueFull       = queue.ErrQueueFull
	ErrInvalidIndex    = queue.ErrInvalidIndex
)

// AudioOptions are per-enqueue options captured with the entry
type AudioOptions struct {
	// Loop repeats the item until it is stopped explicitly
	Loop bool

	// Volume overrides the channel volume for this item (clamped to [0,1])
	Volume *float64

	// AddToFront inserts the item ahead of the pending queue, right behind
	// the in-flight item
	AddToFront bool

	// MaxQueueSize adjusts the channel's queue cap at enqueue time
	// (0 = unbounded)
	MaxQueueSize *int
}

// Config configures a new Engine
type Config struct {
	// DefaultVolume is the baseline volume for new channels (default 1.0)
	DefaultVolume float64

	// MaxQueueSize caps each channel's queue, counting the in-flight item
	// (0 = unbounded)
	MaxQueueSize int

	// DropOldestWhenFull evicts the oldest pending item instead of
	// rejecting the enqueue when a queue is full
	DropOldestWhenFull bool

	// ElementKind selects the element implementation (auto, malgo, null)
	ElementKind string

	// Factory overrides ElementKind with a custom element factory
	Factory element.Factory

	// Retry is the initial retry policy; nil means retry.DefaultConfig
	Retry *RetryConfig
}

// RetryConfig is the process-wide retry policy
type RetryConfig = retry.Config

// DuckingConfig is the process-wide ducking policy
type DuckingConfig = volume.DuckingConfig

// Easing names a volume transition curve
type Easing = volume.Easing

// Supported easing curves
const (
	EasingLinear    = volume.EasingLinear
	EasingEaseIn    = volume.EasingEaseIn
	EasingEaseOut   = volume.EasingEaseOut
	EasingEaseInOut = volume.EasingEaseInOut
)

// EventKind identifies one category of playback event
type EventKind = events.Kind

// Event kinds accepted by On and Off
const (
	EventStart       = events.KindStart
	EventProgress    = events.KindProgress
	EventComplete    = events.KindComplete
	EventPause       = events.KindPause
	EventResume      = events.KindResume
	EventQueueChange = events.KindQueueChange
	EventError       = events.KindError
)

// Callback receives one event payload
type Callback = events.Callback

// Disposer unregisters the callback it was returned for
type Disposer = events.Disposer

// AudioInfo describes the in-flight item of a channel
type AudioInfo = events.Payload

// ErrorInfo describes a playback failure
type ErrorInfo = events.ErrorPayload

// QueueChangeInfo accompanies every queueChange event
type QueueChangeInfo = events.QueueChangePayload

// QueueSnapshot is an immutable copy of a channel's queue
type QueueSnapshot = queue.Snapshot

// ItemInfo describes one queue entry inside a snapshot
type ItemInfo = queue.ItemInfo
