package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("events.saved")
		}()
	}
	wg.Wait()
	m.IncrementCounterBy("events.deleted", 5)

	counters := m.GetCounters()
	assert.Equal(t, int64(50), counters["events.saved"])
	assert.Equal(t, int64(5), counters["events.deleted"])
}

func TestTimers(t *testing.T) {
	m := NewMetrics()

	m.RecordTimer("store.query", 10*time.Millisecond)
	m.RecordTimer("store.query", 30*time.Millisecond)

	timer := m.GetTimers()["store.query"]
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, int64(40), timer.TotalTimeMs)
	assert.Equal(t, int64(10), timer.MinTimeMs)
	assert.Equal(t, int64(30), timer.MaxTimeMs)
	assert.InDelta(t, 20.0, timer.AverageTimeMs, 0.001)
}

func TestObserveTracksErrorRate(t *testing.T) {
	m := NewMetrics()
	start := time.Now()

	m.Observe("store.save", start, nil)
	m.Observe("store.save", start, errors.New("boom"))

	rate := m.GetErrorRates()["store.save"]
	assert.Equal(t, int64(2), rate.Total)
	assert.Equal(t, int64(1), rate.Errors)
	assert.InDelta(t, 50.0, rate.ErrorRate, 0.001)
	assert.Equal(t, int64(2), m.GetTimers()["store.save"].Count)
}

func TestGaugesAndHealth(t *testing.T) {
	m := NewMetrics()

	m.SetGauge("events.live", 10)
	m.SetGauge("events.live", 7)
	m.SetHealth("database", true)
	m.SetHealth("cache", false)

	assert.Equal(t, int64(7), m.GetGauges()["events.live"])
	assert.Equal(t, map[string]bool{"database": true, "cache": false}, m.GetHealthChecks())

	all := m.GetAllMetrics()
	require.Contains(t, all, "uptime_seconds")
	require.Contains(t, all, "gauges")
}

func TestNilMetricsDiscards(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementCounter("x")
		m.SetGauge("x", 1)
		m.Observe("x", time.Now(), nil)
		m.SetHealth("x", true)
	})
}
