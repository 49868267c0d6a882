package health

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds each check.
const DefaultTimeout = 5 * time.Second

// Manager runs checkers in parallel, each under its own timeout.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewManager creates a manager with DefaultTimeout.
func NewManager() *Manager {
	return &Manager{timeout: DefaultTimeout}
}

// WithTimeout sets the per-check timeout.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return m
}

// AddChecker registers c. Results keep registration order.
func (m *Manager) AddChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Count returns the number of registered checkers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkers)
}

// Entry is one named result in a Report.
type Entry struct {
	Name   string `json:"name" yaml:"name"`
	Result `yaml:",inline"`
}

// Report is the outcome of a Run.
type Report struct {
	Status Status  `json:"status" yaml:"status"`
	Checks []Entry `json:"checks" yaml:"checks"`
}

// Run executes every checker and aggregates the results. A checker that
// returns nil is reported as unhealthy.
func (m *Manager) Run(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	timeout := m.timeout
	m.mu.RUnlock()

	entries := make([]Entry, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			r := c.Check(checkCtx)
			if r == nil {
				r = Unhealthy("check returned no result")
			}
			if r.Latency == 0 {
				r.Latency = time.Since(start)
			}
			entries[i] = Entry{Name: c.Name(), Result: *r}
		}()
	}
	wg.Wait()

	return Report{Status: Overall(entries), Checks: entries}
}

// Overall is the most severe status among entries, healthy when empty.
func Overall(entries []Entry) Status {
	status := StatusHealthy
	for _, e := range entries {
		if e.Status.worse(status) {
			status = e.Status
		}
	}
	return status
}
