package playback

// State represents the per-channel playback state machine.
//
// Valid transitions:
//   - Idle      → Loading    (entry promoted to the head of the queue)
//   - Loading   → Playing    (native ready signal)
//   - Loading   → Idle       (terminal failure, retries exhausted)
//   - Playing   ⇄ Paused     (pause / resume)
//   - Playing   → Completing (progress passed the wrap-up threshold)
//   - Completing→ Idle | Loading (natural end, advance)
//   - Playing   → Idle | Loading (interrupt or error, advance)
//
// Completing is a courtesy state for consumers wanting a wrap-up signal;
// it behaves like Playing for every control operation.
type State int

const (
	// Idle means no entry is in flight and no element resource is held
	Idle State = iota
	// Loading means the element was told to load and the ready signal is pending
	Loading
	// Playing means native playback is active
	Playing
	// Paused means playback is suspended by an explicit pause call
	Paused
	// Completing means playback is near its natural end
	Completing
)

// String returns the state name for logging and debugging
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Loading:
		return "Loading"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Completing:
		return "Completing"
	default:
		return "Unknown"
	}
}

// IsActive returns true while an entry is in flight (anything but Idle)
func (s State) IsActive() bool {
	return s != Idle
}

// IsAudible returns true while samples are being produced
func (s State) IsAudible() bool {
	return s == Playing || s == Completing
}

// CanPause returns true if the state allows pausing playback
func (s State) CanPause() bool {
	return s == Playing || s == Completing
}

// CanResume returns true if the state allows resuming playback
func (s State) CanResume() bool {
	return s == Paused
}

// Disposition is the terminal outcome of one queue entry
type Disposition int

const (
	// Completed means the entry ran to its natural end
	Completed Disposition = iota
	// Interrupted means the entry was stopped before its natural end
	Interrupted
	// Errored means the entry failed and the retry policy gave up
	Errored
)

// String returns the disposition name for logging
func (d Disposition) String() string {
	switch d {
	case Completed:
		return "Completed"
	case Interrupted:
		return "Interrupted"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}
