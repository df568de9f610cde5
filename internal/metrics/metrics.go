package metrics

import (
	"sync"
	"time"
)

// Metrics holds process-wide counters for scout runs and delivery.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	Runs               int64
	ItemsScanned       int64
	LeadsAdmitted      int64
	DuplicatesFiltered int64
	FeedErrors         int64
	SummaryFallbacks   int64
	MessagesSent       int64

	// Timings
	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	TotalRunDuration   time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) AddScanned(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsScanned += int64(n)
}

func (m *Metrics) AddLeads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeadsAdmitted += int64(n)
}

func (m *Metrics) AddDuplicates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) IncrementFeedErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedErrors++
}

func (m *Metrics) IncrementSummaryFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryFallbacks++
}

func (m *Metrics) IncrementMessagesSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSent++
}

// RecordRun counts a finished scout run and its wall time.
func (m *Metrics) RecordRun(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Runs++
	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.Runs)
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"runs":                    m.Runs,
		"items_scanned":           m.ItemsScanned,
		"leads_admitted":          m.LeadsAdmitted,
		"duplicates_filtered":     m.DuplicatesFiltered,
		"feed_errors":             m.FeedErrors,
		"summary_fallbacks":       m.SummaryFallbacks,
		"messages_sent":           m.MessagesSent,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
	if !m.LastRunTime.IsZero() {
		stats["last_run_time"] = m.LastRunTime.Format(time.RFC3339)
	}
	if !m.LastErrorTime.IsZero() {
		stats["last_error_time"] = m.LastErrorTime.Format(time.RFC3339)
	}
	return stats
}
