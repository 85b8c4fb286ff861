package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Domain counter names.
const (
	CounterTicketsOpened     = "tickets_opened"
	CounterTicketsClaimed    = "tickets_claimed"
	CounterTicketsClosed     = "tickets_closed"
	CounterTicketsRejected   = "tickets_rejected"
	CounterProvisionFailures = "ticket_provision_failures"
	CounterArchiveFailures   = "ticket_archive_failures"
	CounterXPAwarded         = "xp_awarded"
	CounterSamplesRejected   = "activity_samples_rejected"
	CounterLevelUps          = "level_ups"
	CounterRewardsGranted    = "rewards_granted"
	CounterLedgerSaveErrors  = "ledger_save_failures"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	counters     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		counters:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Add increments a named domain counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Incr increments a named domain counter by one.
func (m *Metrics) Incr(name string) {
	m.Add(name, 1)
}

// Counter returns the current value of a domain counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Counters map[string]int64 `json:"counters"`
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Counters: copyCounts(m.counters),
		Requests: copyCounts(m.requestCount),
		Errors:   copyCounts(m.errorCount),
	}
}

// Names lists the domain counters recorded so far.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
