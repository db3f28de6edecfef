package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	eventCount   map[string]int64
	sweepCount   map[string]int64
	lastSweep    map[string]time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests map[string]int64     `json:"requests"`
	Errors   map[string]int64     `json:"errors"`
	Events   map[string]int64     `json:"events"`
	Sweeps   map[string]int64     `json:"sweeps"`
	LastRun  map[string]time.Time `json:"last_run"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		eventCount:   make(map[string]int64),
		sweepCount:   make(map[string]int64),
		lastSweep:    make(map[string]time.Time),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int) {
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

// RecordEvent counts a published lifecycle event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// RecordSweep adds the items a background sweep acted on.
func (m *Metrics) RecordSweep(name string, affected int, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepCount[name] += int64(affected)
	m.lastSweep[name] = at
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests: copyMap(m.requestCount),
		Errors:   copyMap(m.errorCount),
		Events:   copyMap(m.eventCount),
		Sweeps:   copyMap(m.sweepCount),
		LastRun:  copyMap(m.lastSweep),
	}
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
