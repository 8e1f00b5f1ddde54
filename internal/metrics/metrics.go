package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TimerMetric summarises the durations recorded for one operation
type TimerMetric struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// ErrorRateMetric is the share of failed calls of one operation, in percent
type ErrorRateMetric struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// Snapshot is a point-in-time copy of every metric
type Snapshot struct {
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Counters      map[string]int64           `json:"counters"`
	Gauges        map[string]int64           `json:"gauges"`
	Timers        map[string]TimerMetric     `json:"timers"`
	ErrorRates    map[string]ErrorRateMetric `json:"error_rates"`
	HealthChecks  map[string]bool            `json:"health_checks"`
}

type timer struct {
	count   atomic.Int64
	totalMs atomic.Int64
	minMs   atomic.Int64
	maxMs   atomic.Int64
}

type errorRate struct {
	total  atomic.Int64
	errors atomic.Int64
}

// Metrics is an in-process collector safe for concurrent use
type Metrics struct {
	mu         sync.RWMutex
	counters   map[string]*atomic.Int64
	gauges     map[string]*atomic.Int64
	health     map[string]*atomic.Bool
	timers     map[string]*timer
	errorRates map[string]*errorRate
	startTime  time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]*atomic.Int64),
		gauges:     make(map[string]*atomic.Int64),
		health:     make(map[string]*atomic.Bool),
		timers:     make(map[string]*timer),
		errorRates: make(map[string]*errorRate),
		startTime:  time.Now(),
	}
}

// lookup returns the entry for name, creating it under the write lock on
// first use
func lookup[T any](mu *sync.RWMutex, entries map[string]*T, name string, create func() *T) *T {
	mu.RLock()
	e, ok := entries[name]
	mu.RUnlock()
	if ok {
		return e
	}

	mu.Lock()
	defer mu.Unlock()
	if e, ok = entries[name]; !ok {
		e = create()
		entries[name] = e
	}
	return e
}

func newInt64() *atomic.Int64 { return new(atomic.Int64) }

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	lookup(&m.mu, m.counters, name, newInt64).Add(value)
}

// SetGauge sets a gauge to value
func (m *Metrics) SetGauge(name string, value int64) {
	lookup(&m.mu, m.gauges, name, newInt64).Store(value)
}

// RecordTimer records one duration for name
func (m *Metrics) RecordTimer(name string, d time.Duration) {
	t := lookup(&m.mu, m.timers, name, func() *timer {
		t := &timer{}
		t.minMs.Store(math.MaxInt64)
		return t
	})

	ms := d.Milliseconds()
	t.count.Add(1)
	t.totalMs.Add(ms)
	for {
		cur := t.minMs.Load()
		if ms >= cur || t.minMs.CompareAndSwap(cur, ms) {
			break
		}
	}
	for {
		cur := t.maxMs.Load()
		if ms <= cur || t.maxMs.CompareAndSwap(cur, ms) {
			break
		}
	}
}

// RecordSuccess counts a successful call of name
func (m *Metrics) RecordSuccess(name string) {
	m.recordOutcome(name, false)
}

// RecordError counts a failed call of name
func (m *Metrics) RecordError(name string) {
	m.recordOutcome(name, true)
}

// Observe records the duration and outcome of a call that started at start
func (m *Metrics) Observe(name string, start time.Time, err error) {
	m.RecordTimer(name, time.Since(start))
	m.recordOutcome(name, err != nil)
}

func (m *Metrics) recordOutcome(name string, failed bool) {
	r := lookup(&m.mu, m.errorRates, name, func() *errorRate { return &errorRate{} })
	r.total.Add(1)
	if failed {
		r.errors.Add(1)
	}
}

// SetHealth sets the health status of a component
func (m *Metrics) SetHealth(component string, healthy bool) {
	lookup(&m.mu, m.health, component, func() *atomic.Bool { return new(atomic.Bool) }).Store(healthy)
}

// Healthy reports whether every registered component is healthy
func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.health {
		if !h.Load() {
			return false
		}
	}
	return true
}

// Snapshot copies the current value of every metric
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		Counters:      make(map[string]int64, len(m.counters)),
		Gauges:        make(map[string]int64, len(m.gauges)),
		Timers:        make(map[string]TimerMetric, len(m.timers)),
		ErrorRates:    make(map[string]ErrorRateMetric, len(m.errorRates)),
		HealthChecks:  make(map[string]bool, len(m.health)),
	}
	for name, c := range m.counters {
		s.Counters[name] = c.Load()
	}
	for name, g := range m.gauges {
		s.Gauges[name] = g.Load()
	}
	for name, h := range m.health {
		s.HealthChecks[name] = h.Load()
	}
	for name, t := range m.timers {
		tm := TimerMetric{
			Count:       t.count.Load(),
			TotalTimeMs: t.totalMs.Load(),
			MinTimeMs:   t.minMs.Load(),
			MaxTimeMs:   t.maxMs.Load(),
		}
		if tm.Count > 0 {
			tm.AverageTimeMs = float64(tm.TotalTimeMs) / float64(tm.Count)
		}
		s.Timers[name] = tm
	}
	for name, r := range m.errorRates {
		er := ErrorRateMetric{Total: r.total.Load(), Errors: r.errors.Load()}
		if er.Total > 0 {
			er.ErrorRate = float64(er.Errors) / float64(er.Total) * 100
		}
		s.ErrorRates[name] = er
	}
	return s
}
