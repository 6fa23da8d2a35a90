package events

import (
	"time"

	"cueloop.dev/internal/queue"
)

// Payload carries the context of a start/progress/complete/pause/resume event
type Payload struct {
	Channel     int           `json:"channel"`
	Source      string        `json:"source"`
	Filename    string        `json:"filename"`
	Position    time.Duration `json:"position"`
	Duration    time.Duration `json:"duration"`
	Progress    float64       `json:"progress"`
	Remaining   int           `json:"remaining"`   // Queued items behind this one
	Interrupted bool          `json:"interrupted"` // Stopped before its natural end
	Timestamp   time.Time     `json:"timestamp"`
}

// ErrorPayload carries the context of an error event
type ErrorPayload struct {
	Channel   int       `json:"channel"`
	Source    string    `json:"source"`
	Filename  string    `json:"filename"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Attempts  int       `json:"attempts"`
	Remaining int       `json:"remaining"`
	Terminal  bool      `json:"terminal"` // Retry policy exhausted
	Timestamp time.Time `json:"timestamp"`
}

// QueueChangePayload carries a snapshot taken right after a queue mutation
type QueueChangePayload struct {
	Channel   int            `json:"channel"`
	Snapshot  queue.Snapshot `json:"snapshot"`
	Timestamp time.Time      `json:"timestamp"`
}
