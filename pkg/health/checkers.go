package health

import (
	"context"
	"time"
)

// Checkable is implemented by adapters that can report their own health
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker turns a Checkable into a Checker bounded by a timeout
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a health checker for an adapter. A zero timeout means 5s.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// NewStoreChecker names the check after the store type, e.g. "store:mongodb".
func NewStoreChecker(storeType string, adapter Checkable) *AdapterChecker {
	return NewAdapterChecker("store:"+storeType, adapter, 5*time.Second)
}

// Check performs the health check on the adapter
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := CheckResult{Name: c.name}
	if err := c.adapter.HealthCheck(checkCtx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "OK"
	}
	result.Timestamp = time.Now()
	result.Duration = time.Since(start)
	return result
}

// Name returns the name of the health check
func (c *AdapterChecker) Name() string {
	return c.name
}

// CheckerFunc adapts a named function to Checker
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) CheckResult
}

func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	result := f.Fn(ctx)
	if result.Name == "" {
		result.Name = f.CheckName
	}
	return result
}

func (f CheckerFunc) Name() string {
	return f.CheckName
}
