// Package health runs the local diagnostics behind `truematch doctor`.
//
// Each Checker inspects one thing the session depends on: the service, the
// token store, the stored credential or the refresh cookie. A Manager runs
// them concurrently and reports results in registration order.
//
//	m := health.NewManager()
//	m.AddChecker(health.NewAPIChecker(baseURL, httpClient))
//	m.AddChecker(health.NewCookieChecker(jar))
//	report := m.Run(ctx)
package health

import (
	"context"
	"time"
)

// Checker inspects a single dependency.
type Checker interface {
	// Name is a short lowercase identifier such as "api" or "token-store".
	Name() string

	// Check must honour the context deadline.
	Check(ctx context.Context) *Result
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) *Result
}

// NewCheckFunc wraps fn as a Checker called name.
func NewCheckFunc(name string, fn func(ctx context.Context) *Result) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                      { return c.name }
func (c *CheckFunc) Check(ctx context.Context) *Result { return c.fn(ctx) }

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy Status = "healthy"

	// StatusDegraded means commands still work but something needs attention,
	// for example no stored session.
	StatusDegraded Status = "degraded"

	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// worse reports whether s is more severe than other.
func (s Status) worse(other Status) bool {
	return s.rank() > other.rank()
}

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Result is what a Checker found.
type Result struct {
	Status  Status         `json:"status" yaml:"status"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns" yaml:"latency"`
}

// NewResult creates a result with empty details.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail and returns r for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

func Healthy(message string) *Result   { return NewResult(StatusHealthy, message) }
func Degraded(message string) *Result  { return NewResult(StatusDegraded, message) }
func Unhealthy(message string) *Result { return NewResult(StatusUnhealthy, message) }
