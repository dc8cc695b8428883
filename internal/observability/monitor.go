package observability

import (
	"sync"
	"time"
)

// Monitor accumulates process-wide upstream call statistics. It is shared
// across sessions and safe for concurrent use; counters only grow until an
// explicit operator Reset.
type Monitor struct {
	mu              sync.Mutex
	requestCount    int64
	totalLatency    time.Duration
	errorCount      int64
	tokensGenerated int64
	cacheHits       int64
	cacheMisses     int64
	lastReset       time.Time
}

// Snapshot is a read-only view of the monitor plus derived figures.
type Snapshot struct {
	RequestCount    int64         `json:"request_count"`
	AvgLatency      time.Duration `json:"avg_latency_ns"`
	ErrorCount      int64         `json:"error_count"`
	ErrorRate       float64       `json:"error_rate"`
	TokensGenerated int64         `json:"tokens_generated"`
	CacheHits       int64         `json:"cache_hits"`
	CacheMisses     int64         `json:"cache_misses"`
	CacheHitRate    float64       `json:"cache_hit_rate"`
	LastReset       time.Time     `json:"last_reset"`
	Grade           string        `json:"grade"`
}

// NewMonitor constructs a monitor with the reset clock started.
func NewMonitor() *Monitor {
	return &Monitor{lastReset: time.Now()}
}

// RecordRequest records one upstream call outcome and its latency.
func (m *Monitor) RecordRequest(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount++
	m.totalLatency += d
	if failed {
		m.errorCount++
	}
}

// RecordTokens adds generated token counts.
func (m *Monitor) RecordTokens(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensGenerated += int64(n)
}

// RecordCacheHit increments the cache hit counter.
func (m *Monitor) RecordCacheHit() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

// RecordCacheMiss increments the cache miss counter.
func (m *Monitor) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

// Snapshot returns current counters and a computed health grade.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		RequestCount:    m.requestCount,
		ErrorCount:      m.errorCount,
		TokensGenerated: m.tokensGenerated,
		CacheHits:       m.cacheHits,
		CacheMisses:     m.cacheMisses,
		LastReset:       m.lastReset,
	}
	if m.requestCount > 0 {
		s.AvgLatency = m.totalLatency / time.Duration(m.requestCount)
		s.ErrorRate = float64(m.errorCount) / float64(m.requestCount)
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		s.CacheHitRate = float64(m.cacheHits) / float64(lookups)
	}
	s.Grade = grade(s)
	return s
}

// Reset zeroes all counters. Operator action only.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.totalLatency = 0
	m.errorCount = 0
	m.tokensGenerated = 0
	m.cacheHits = 0
	m.cacheMisses = 0
	m.lastReset = time.Now()
}

func grade(s Snapshot) string {
	if s.RequestCount == 0 {
		return "A"
	}
	switch {
	case s.ErrorRate > 0.25 || s.AvgLatency > 20*time.Second:
		return "F"
	case s.ErrorRate > 0.10 || s.AvgLatency > 10*time.Second:
		return "D"
	case s.ErrorRate > 0.05 || s.AvgLatency > 5*time.Second:
		return "C"
	case s.ErrorRate > 0.01 || s.AvgLatency > 2*time.Second:
		return "B"
	default:
		return "A"
	}
}
