package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitorAccumulates(t *testing.T) {
	m := NewMonitor()
	m.RecordRequest(100*time.Millisecond, false)
	m.RecordRequest(300*time.Millisecond, true)
	m.RecordTokens(42)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()

	s := m.Snapshot()
	require.Equal(t, int64(2), s.RequestCount)
	require.Equal(t, int64(1), s.ErrorCount)
	require.Equal(t, 200*time.Millisecond, s.AvgLatency)
	require.Equal(t, 0.5, s.ErrorRate)
	require.Equal(t, int64(42), s.TokensGenerated)
	require.Equal(t, int64(1), s.CacheHits)
	require.Equal(t, int64(2), s.CacheMisses)
	require.InDelta(t, 1.0/3.0, s.CacheHitRate, 1e-9)
}

func TestMonitorGrade(t *testing.T) {
	m := NewMonitor()
	require.Equal(t, "A", m.Snapshot().Grade)

	for i := 0; i < 100; i++ {
		m.RecordRequest(time.Millisecond, false)
	}
	require.Equal(t, "A", m.Snapshot().Grade)

	for i := 0; i < 50; i++ {
		m.RecordRequest(time.Millisecond, true)
	}
	require.Equal(t, "F", m.Snapshot().Grade)
}

func TestMonitorReset(t *testing.T) {
	m := NewMonitor()
	before := m.Snapshot().LastReset

	m.RecordRequest(time.Second, true)
	m.RecordTokens(10)
	time.Sleep(time.Millisecond)
	m.Reset()

	s := m.Snapshot()
	require.Zero(t, s.RequestCount)
	require.Zero(t, s.ErrorCount)
	require.Zero(t, s.TokensGenerated)
	require.True(t, s.LastReset.After(before))
}

func TestMonitorNilSafe(t *testing.T) {
	var m *Monitor
	m.RecordRequest(time.Second, false)
	m.RecordTokens(1)
	m.RecordCacheHit()
	m.RecordCacheMiss()
}
