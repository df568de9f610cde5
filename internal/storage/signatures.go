package storage

import (
	"sync"
	"time"
)

// SignatureLedger is the permanent map of title signatures to the time they
// were first seen. It is never pruned.
type SignatureLedger struct {
	store *Store

	mu   sync.Mutex
	sigs map[string]time.Time
}

// NewSignatureLedger loads the ledger from store.
func NewSignatureLedger(store *Store) *SignatureLedger {
	l := &SignatureLedger{store: store}
	l.Reload()
	return l
}

// Reload re-reads the ledger from disk.
func (l *SignatureLedger) Reload() {
	l.mu.Lock()
	defer l.mu.Unlock()

	sigs := map[string]time.Time{}
	l.store.Load(SignatureFile, &sigs)
	if sigs == nil {
		sigs = map[string]time.Time{}
	}
	l.sigs = sigs
}

// Contains reports whether sig has been registered.
func (l *SignatureLedger) Contains(sig string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sigs[sig]
	return ok
}

// Register records sig and writes the ledger through to disk right away.
// Registering an existing signature is a no-op and returns false.
func (l *SignatureLedger) Register(sig string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sig == "" {
		return false, nil
	}
	if _, ok := l.sigs[sig]; ok {
		return false, nil
	}
	l.sigs[sig] = now.UTC()
	return true, l.store.Save(SignatureFile, l.sigs)
}

// FirstSeen returns when sig was registered.
func (l *SignatureLedger) FirstSeen(sig string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.sigs[sig]
	return t, ok
}

// Len returns the number of registered signatures.
func (l *SignatureLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sigs)
}
