package queue

import (
	"errors"
	"log/slog"
	"time"
)

// Common queue errors returned by mutating operations
var (
	ErrQueueFull    = errors.New("queue is full")
	ErrInvalidIndex = errors.New("invalid queue index")
)

// RuntimeState holds playback progress for an entry once it has started
type RuntimeState struct {
	CurrentTime time.Duration // Position within the item
	Duration    time.Duration // Total item length (0 until known)
	IsPlaying   bool          // True only for the in-flight entry
	IsPaused    bool          // True while the channel is paused
}

// Progress returns playback completion in [0,1], or 0 if duration is unknown
func (r RuntimeState) Progress() float64 {
	if r.Duration <= 0 {
		return 0
	}
	p := float64(r.CurrentTime) / float64(r.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Entry represents one audio item pending or undergoing playback
type Entry struct {
	Source   string        // URL or file path; decoding is the element's job
	Loop     bool          // Loop this item indefinitely
	Volume   *float64      // Per-item volume override (nil = channel baseline)
	Enqueued time.Time     // When the entry was added
	Attempts int           // Failed load/play attempts so far
	Fallback int           // Index of the next fallback URL to try
	Runtime  RuntimeState  // Populated once playback starts
}

// Queue keeps the in-flight entry structurally apart from pending entries.
// Mutation APIs only ever see pending entries, so the "index 0 is the playing
// item" invariant cannot be violated by an off-by-one: public index 0 maps to
// the current entry, public indices >= 1 map to pending[index-1].
type Queue struct {
	current    *Entry
	pending    []*Entry
	maxSize    int  // 0 = unlimited; counts current plus pending
	dropOldest bool // On overflow, evict pending[0] instead of rejecting
}

// New creates an empty queue. maxSize of 0 means unlimited.
func New(maxSize int, dropOldest bool) *Queue {
	slog.Debug("creating queue", "max_size", maxSize, "drop_oldest", dropOldest)
	return &Queue{
		maxSize:    maxSize,
		dropOldest: dropOldest,
	}
}

// SetMaxSize replaces the queue size cap (0 = unlimited)
func (q *Queue) SetMaxSize(maxSize int) {
	q.maxSize = maxSize
}

// Len returns the total number of entries, including the current one
func (q *Queue) Len() int {
	n := len(q.pending)
	if q.current != nil {
		n++
	}
	return n
}

// IsEmpty returns true if there is no current and no pending entry
func (q *Queue) IsEmpty() bool {
	return q.current == nil && len(q.pending) == 0
}

// Current returns the in-flight entry, or nil when the channel is idle
func (q *Queue) Current() *Entry {
	return q.current
}

// PendingCount returns the number of entries waiting behind the current one
func (q *Queue) PendingCount() int {
	return len(q.pending)
}

// Push appends an entry to the end of the pending list.
// When the size cap is reached it either evicts the oldest pending entry
// (drop-oldest mode) or fails with ErrQueueFull.
func (q *Queue) Push(e *Entry) error {
	if err := q.makeRoom(); err != nil {
		return err
	}

	q.pending = append(q.pending, e)

	slog.Debug("entry pushed",
		"source", e.Source,
		"pending", len(q.pending),
		"total", q.Len())
	return nil
}

// PushFront inserts an entry at the head of the pending list (public index 1),
// immediately behind the current entry. The current entry is never displaced.
func (q *Queue) PushFront(e *Entry) error {
	if err := q.makeRoom(); err != nil {
		return err
	}

	q.pending = append([]*Entry{e}, q.pending...)

	slog.Debug("entry pushed to front",
		"source", e.Source,
		"pending", len(q.pending),
		"total", q.Len())
	return nil
}

// makeRoom enforces the size cap before an insertion
func (q *Queue) makeRoom() error {
	if q.maxSize <= 0 || q.Len() < q.maxSize {
		return nil
	}

	if !q.dropOldest {
		slog.Warn("queue full, rejecting entry", "max_size", q.maxSize)
		return ErrQueueFull
	}

	if len(q.pending) == 0 {
		// Only the playing entry remains; it is never evicted.
		slog.Warn("queue full with only the playing entry, rejecting", "max_size", q.maxSize)
		return ErrQueueFull
	}

	evicted := q.pending[0]
	q.pending = q.pending[1:]
	slog.Info("queue full, evicted oldest pending entry",
		"evicted_source", evicted.Source,
		"max_size", q.maxSize)
	return nil
}

// Advance discards the current entry and promotes the head of the pending
// list. It returns the new current entry, or nil when the queue drained.
func (q *Queue) Advance() *Entry {
	previous := ""
	if q.current != nil {
		previous = q.current.Source
	}

	if len(q.pending) == 0 {
		q.current = nil
		slog.Debug("queue advanced to idle", "previous", previous)
		return nil
	}

	q.current = q.pending[0]
	q.pending = q.pending[1:]

	slog.Debug("queue advanced",
		"previous", previous,
		"current", q.current.Source,
		"pending", len(q.pending))
	return q.current
}

// Remove deletes the entry at the given public index.
// Index 0 (the playing entry) and out-of-range indices fail with
// ErrInvalidIndex and leave the queue untouched.
func (q *Queue) Remove(index int) error {
	i, err := q.pendingIndex(index)
	if err != nil {
		return err
	}

	removed := q.pending[i]
	q.pending = append(q.pending[:i], q.pending[i+1:]...)

	slog.Debug("entry removed",
		"index", index,
		"source", removed.Source,
		"remaining", q.Len())
	return nil
}

// Reorder moves the entry at public index from to public index to,
// preserving the relative order of all other entries.
func (q *Queue) Reorder(from, to int) error {
	i, err := q.pendingIndex(from)
	if err != nil {
		return err
	}
	j, err := q.pendingIndex(to)
	if err != nil {
		return err
	}
	if i == j {
		return nil
	}

	moved := q.pending[i]
	q.pending = append(q.pending[:i], q.pending[i+1:]...)
	q.pending = append(q.pending[:j], append([]*Entry{moved}, q.pending[j:]...)...)

	slog.Debug("entry reordered", "from", from, "to", to, "source", moved.Source)
	return nil
}

// Swap exchanges the entries at two public indices
func (q *Queue) Swap(a, b int) error {
	i, err := q.pendingIndex(a)
	if err != nil {
		return err
	}
	j, err := q.pendingIndex(b)
	if err != nil {
		return err
	}

	q.pending[i], q.pending[j] = q.pending[j], q.pending[i]

	slog.Debug("entries swapped", "a", a, "b", b)
	return nil
}

// ClearPending drops every entry behind the current one
func (q *Queue) ClearPending() {
	dropped := len(q.pending)
	q.pending = nil
	slog.Debug("pending entries cleared", "dropped", dropped)
}

// Clear empties the queue entirely, including the current entry
func (q *Queue) Clear() {
	dropped := q.Len()
	q.current = nil
	q.pending = nil
	slog.Debug("queue cleared", "dropped", dropped)
}

// pendingIndex translates a public index into a pending slice index.
// Public index 0 is the playing entry and is never addressable by mutators.
func (q *Queue) pendingIndex(index int) (int, error) {
	if index <= 0 {
		slog.Debug("rejected queue index", "index", index, "reason", "playing entry or negative")
		return 0, ErrInvalidIndex
	}
	i := index - 1
	if q.current == nil {
		// Nothing playing: pending entries start at public index 0, so
		// index 1 addresses pending[1]. Index 0 stays reserved either way.
		i = index
	}
	if i < 0 || i >= len(q.pending) {
		slog.Debug("rejected queue index", "index", index, "pending", len(q.pending))
		return 0, ErrInvalidIndex
	}
	return i, nil
}
