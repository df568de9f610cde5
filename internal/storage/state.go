package storage

import "time"

// DateLayout is the on-disk format of calendar dates.
const DateLayout = "2006-01-02"

// RunState records the date of the last discovery run.
type RunState struct {
	LastRunDate string `json:"lastRunDate"`
}

// RunStateStore reads and writes the run marker.
type RunStateStore struct {
	store *Store
}

// NewRunStateStore wraps store.
func NewRunStateStore(store *Store) *RunStateStore {
	return &RunStateStore{store: store}
}

// LastRunDate returns the recorded date or "" when none is recorded.
func (s *RunStateStore) LastRunDate() string {
	var st RunState
	s.store.Load(StateFile, &st)
	return st.LastRunDate
}

// MarkRun records day as the last run date.
func (s *RunStateStore) MarkRun(day time.Time) error {
	return s.store.Save(StateFile, RunState{LastRunDate: day.Format(DateLayout)})
}

// RanOn reports whether the marker equals day.
func (s *RunStateStore) RanOn(day time.Time) bool {
	return s.LastRunDate() == day.Format(DateLayout)
}
