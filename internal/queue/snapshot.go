package queue

import "time"

// ItemInfo describes one queue entry inside a snapshot
type ItemInfo struct {
	Index    int           `json:"index"`
	Source   string        `json:"source"`
	Loop     bool          `json:"loop"`
	Enqueued time.Time     `json:"enqueued"`
	Playing  bool          `json:"playing"`
	Paused   bool          `json:"paused"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Progress float64       `json:"progress"`
}

// Snapshot is an immutable copy of the queue at one point in time.
// Mutating the queue after taking a snapshot does not affect it.
type Snapshot struct {
	TotalItems   int        `json:"total_items"`
	PendingItems int        `json:"pending_items"`
	Items        []ItemInfo `json:"items"`
}

// Snapshot captures the queue in public-index order: the current entry at
// index 0 (when present) followed by pending entries.
func (q *Queue) Snapshot() Snapshot {
	snap := Snapshot{
		TotalItems:   q.Len(),
		PendingItems: len(q.pending),
		Items:        make([]ItemInfo, 0, q.Len()),
	}

	index := 0
	if q.current != nil {
		snap.Items = append(snap.Items, infoFor(q.current, index))
		index++
	}
	for _, e := range q.pending {
		snap.Items = append(snap.Items, infoFor(e, index))
		index++
	}

	return snap
}

func infoFor(e *Entry, index int) ItemInfo {
	return ItemInfo{
		Index:    index,
		Source:   e.Source,
		Loop:     e.Loop,
		Enqueued: e.Enqueued,
		Playing:  e.Runtime.IsPlaying,
		Paused:   e.Runtime.IsPaused,
		Position: e.Runtime.CurrentTime,
		Duration: e.Runtime.Duration,
		Progress: e.Runtime.Progress(),
	}
}
