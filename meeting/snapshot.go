package meeting

// Snapshot is the controller state at one point in time. It is safe to hold
// across goroutines. Entries shares its backing array with the controller and
// later snapshots, so callers must treat it as read-only.
type Snapshot struct {
	// Seq increases with every change; a newer snapshot has a higher Seq.
	Seq            uint64
	State          State
	Status         Status
	Entries        []Entry
	Received       int // total entries received, including any dropped by the limit
	Summary        string
	SummaryVisible bool
	Connected      bool
}

func (c *Controller) snapshotLocked() Snapshot {
	// The controller only appends past len or replaces the slice when
	// trimming, so the prefix seen here never changes.
	n := len(c.entries)
	entries := c.entries[:n:n]
	return Snapshot{
		Seq:            c.seq,
		State:          c.state,
		Status:         c.status,
		Entries:        entries,
		Received:       c.received,
		Summary:        c.summary,
		SummaryVisible: c.summaryVisible,
		Connected:      c.connected,
	}
}

// StartEnabled reports whether the start control accepts input.
func (s Snapshot) StartEnabled() bool { return s.State == Idle }

// EndEnabled reports whether the end control accepts input.
func (s Snapshot) EndEnabled() bool { return s.State == Recording }

// Recording reports whether the server is believed to be recording. It stays
// true while an end request is in flight.
func (s Snapshot) Recording() bool { return s.State == Recording || s.State == Ending }

// Newer reports whether s should replace prev in a view.
func (s Snapshot) Newer(prev Snapshot) bool { return s.Seq >= prev.Seq }
