package storage

import (
	"sync"
	"time"
)

// SeenRecord is one entry of the rolling seen-links ledger.
type SeenRecord struct {
	Link string    `json:"link"`
	Date time.Time `json:"date"`
}

// SeenLedger keeps recently scanned links. Records older than the retention
// window are dropped on Load; nothing reaches disk until Flush.
type SeenLedger struct {
	store     *Store
	retention time.Duration

	mu      sync.Mutex
	records []SeenRecord
	index   map[string]struct{}
	dirty   bool
}

// NewSeenLedger returns an empty ledger; call Load before use.
// A zero retention keeps records forever.
func NewSeenLedger(store *Store, retention time.Duration) *SeenLedger {
	return &SeenLedger{
		store:     store,
		retention: retention,
		index:     make(map[string]struct{}),
	}
}

// Load reads the ledger and prunes expired records. It returns how many
// records were pruned.
func (l *SeenLedger) Load(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []SeenRecord
	l.store.Load(SeenFile, &records)

	cutoff := now.Add(-l.retention)
	fresh := make([]SeenRecord, 0, len(records))
	index := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Link == "" {
			continue
		}
		if l.retention > 0 && !r.Date.After(cutoff) {
			continue
		}
		if _, dup := index[r.Link]; dup {
			continue
		}
		index[r.Link] = struct{}{}
		fresh = append(fresh, r)
	}

	pruned := len(records) - len(fresh)
	l.records = fresh
	l.index = index
	l.dirty = pruned > 0
	return pruned
}

// Contains reports whether link is in the ledger.
func (l *SeenLedger) Contains(link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[link]
	return ok
}

// Add appends links that are not yet recorded. It returns how many were new.
func (l *SeenLedger) Add(links []string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, link := range links {
		if link == "" {
			continue
		}
		if _, ok := l.index[link]; ok {
			continue
		}
		l.index[link] = struct{}{}
		l.records = append(l.records, SeenRecord{Link: link, Date: now.UTC()})
		added++
	}
	if added > 0 {
		l.dirty = true
	}
	return added
}

// Flush writes the ledger in one atomic save if anything changed since Load.
func (l *SeenLedger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}
	out := l.records
	if out == nil {
		out = []SeenRecord{}
	}
	if err := l.store.Save(SeenFile, out); err != nil {
		return err
	}
	l.dirty = false
	return nil
}

// Len returns the number of records held.
func (l *SeenLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
