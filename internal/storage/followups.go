package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Status is the stage of a lead in the follow-up ledger.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusReplied   Status = "replied"
	StatusBooked    Status = "booked"
)

// ParseStatus accepts the lower-case status names.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusContacted, StatusReplied, StatusBooked:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q (want new, contacted, replied or booked)", s)
}

// Followup is the CRM record kept for every admitted lead.
type Followup struct {
	Title       string `json:"title"`
	FirstSeen   string `json:"firstSeen"`
	LastContact string `json:"lastContact,omitempty"`
	Status      Status `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

// FollowupEntry pairs a record with its link for listings.
type FollowupEntry struct {
	Link string
	Followup
}

// FollowupLedger is the permanent link -> Followup map. One instance owns
// the file; every writer in the process goes through it.
type FollowupLedger struct {
	store *Store

	mu      sync.Mutex
	records map[string]Followup
	dirty   bool
}

// NewFollowupLedger loads the ledger from store.
func NewFollowupLedger(store *Store) *FollowupLedger {
	l := &FollowupLedger{store: store}
	l.Reload()
	return l
}

// Reload re-reads the ledger from disk, discarding unflushed changes.
func (l *FollowupLedger) Reload() {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := map[string]Followup{}
	l.store.Load(FollowupFile, &records)
	if records == nil {
		records = map[string]Followup{}
	}
	l.records = records
	l.dirty = false
}

// Register adds a new record for link unless one exists. today is a
// YYYY-MM-DD date. It returns true when a record was added.
func (l *FollowupLedger) Register(title, link, today string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[link]; ok {
		return false
	}
	l.records[link] = Followup{
		Title:     title,
		FirstSeen: today,
		Status:    StatusNew,
	}
	l.dirty = true
	return true
}

// Mark moves link to status and stamps the contact date, saving at once.
func (l *FollowupLedger) Mark(link string, status Status, note, today string) (Followup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[link]
	if !ok {
		return Followup{}, fmt.Errorf("no follow-up for %s", link)
	}
	rec.Status = status
	if status != StatusNew {
		rec.LastContact = today
	}
	if note != "" {
		if rec.Notes != "" {
			rec.Notes += "; "
		}
		rec.Notes += note
	}
	l.records[link] = rec
	l.dirty = true

	if err := l.flushLocked(); err != nil {
		return rec, err
	}
	return rec, nil
}

// Get returns the record for link.
func (l *FollowupLedger) Get(link string) (Followup, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[link]
	return rec, ok
}

// List returns all records, oldest first, ties by link.
func (l *FollowupLedger) List() []FollowupEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]FollowupEntry, 0, len(l.records))
	for link, rec := range l.records {
		out = append(out, FollowupEntry{Link: link, Followup: rec})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen < out[j].FirstSeen
		}
		return out[i].Link < out[j].Link
	})
	return out
}

// Flush saves pending registrations.
func (l *FollowupLedger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *FollowupLedger) flushLocked() error {
	if !l.dirty {
		return nil
	}
	if err := l.store.Save(FollowupFile, l.records); err != nil {
		return err
	}
	l.dirty = false
	return nil
}
