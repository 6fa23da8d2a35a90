package element

import (
	"errors"
	"time"
)

// Common errors for Element implementations
var (
	ErrElementClosed = errors.New("element is closed")
	ErrNoSource      = errors.New("no source loaded")
	ErrInvalidVolume = errors.New("invalid volume level")
)

// Handler receives native playback notifications from an Element.
// Exactly one handler is attached per element, before the first Load.
type Handler interface {
	// OnCanPlay fires once the loaded source is ready to start
	OnCanPlay()

	// OnTimeUpdate fires periodically while playback advances
	OnTimeUpdate(position, duration time.Duration)

	// OnEnded fires when the source reaches its natural end (never when
	// looping or stopped explicitly)
	OnEnded()

	// OnError fires when loading or playback fails
	OnError(err error)
}

// Element wraps one native playable-audio resource. Each channel owns
// exactly one element; elements are never shared across channels.
//
// Load is asynchronous: it returns immediately and reports readiness or
// failure through the handler. All other methods act on the currently
// loaded source.
type Element interface {
	SetHandler(h Handler)

	Load(source string)
	Play() error
	Pause() error
	Seek(position time.Duration) error
	Stop() error

	SetVolume(level float64) error
	Volume() float64
	SetLoop(loop bool)

	// Position reports the current playback position and total duration
	Position() (position, duration time.Duration)

	Close() error
}
