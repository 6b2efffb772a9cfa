// Package progress implements consumers of relocation progress: a [State]
// holding the latest update for polling (user interface) and a [TextSink]
// printing rate-limited progress lines (headless terminal).
package progress

import (
	"sync"
	"time"

	"github.com/desertwitch/relocator/internal/schema"
)

// Snapshot is a point-in-time copy of a [State].
type Snapshot struct {
	Percent   int
	Message   string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Elapsed returns the time passed between the start and the last update.
func (s Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}

	return s.UpdatedAt.Sub(s.StartedAt)
}

// ETA returns the estimated time of completion, extrapolated linearly from the
// percentage reached so far. The zero [time.Time] is returned while no
// estimate is possible.
func (s Snapshot) ETA() time.Time {
	if s.Percent <= 0 || s.Percent >= 100 || s.StartedAt.IsZero() {
		return time.Time{}
	}

	elapsed := s.Elapsed()
	remaining := time.Duration(float64(elapsed) * float64(100-s.Percent) / float64(s.Percent))

	return s.UpdatedAt.Add(remaining)
}

// State is a [schema.ProgressSink] which keeps the latest update for being
// polled from other goroutines.
type State struct {
	sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// NewState returns a pointer to a new [State].
func NewState() *State {
	return &State{now: time.Now}
}

// Report stores the update.
func (s *State) Report(update schema.ProgressUpdate) {
	s.Lock()
	defer s.Unlock()

	now := s.now()

	if s.snapshot.StartedAt.IsZero() {
		s.snapshot.StartedAt = now
	}

	s.snapshot.Percent = update.Percent
	s.snapshot.Message = update.Message
	s.snapshot.UpdatedAt = now
}

// Snapshot returns a copy of the latest update.
func (s *State) Snapshot() Snapshot {
	s.RLock()
	defer s.RUnlock()

	return s.snapshot
}
