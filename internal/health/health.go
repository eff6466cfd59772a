// Package health provides health check functionality
package health

import (
	"sort"
	"sync"
	"time"
)

// Overall status values
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"  // A non-critical component is failing
	StatusUnhealthy = "unhealthy" // A critical component is failing
)

// Status represents overall system health
type Status struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Components    map[string]Check `json:"components"`
}

// Check represents a component health check
type Check struct {
	Healthy   bool      `json:"healthy"`
	Critical  bool      `json:"critical,omitempty"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Checker tracks health of system components
type Checker struct {
	mu         sync.RWMutex
	version    string
	startTime  time.Time
	components map[string]Check
	critical   map[string]bool
}

// NewChecker creates a new health checker
func NewChecker(version string) *Checker {
	return &Checker{
		version:    version,
		startTime:  time.Now(),
		components: make(map[string]Check),
		critical:   make(map[string]bool),
	}
}

// MarkCritical flags components whose failure makes the whole service
// unhealthy rather than degraded
func (c *Checker) MarkCritical(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range names {
		c.critical[name] = true
		if check, ok := c.components[name]; ok {
			check.Critical = true
			c.components[name] = check
		}
	}
}

// SetComponent updates a component's health status
func (c *Checker) SetComponent(name string, healthy bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components[name] = Check{
		Healthy:   healthy,
		Critical:  c.critical[name],
		Message:   message,
		LastCheck: time.Now(),
	}
}

// Component returns one component's last check
func (c *Checker) Component(name string) (Check, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	check, ok := c.components[name]
	return check, ok
}

// Failing returns the names of unhealthy components in order
func (c *Checker) Failing() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	for name, check := range c.components {
		if !check.Healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetStatus returns the overall health status
func (c *Checker) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := StatusOK
	for _, check := range c.components {
		if check.Healthy {
			continue
		}
		if check.Critical {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	// Copy components map
	components := make(map[string]Check, len(c.components))
	for k, v := range c.components {
		components[k] = v
	}

	return Status{
		Status:        status,
		Version:       c.version,
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		Components:    components,
	}
}

// IsHealthy returns true if all components are healthy
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, check := range c.components {
		if !check.Healthy {
			return false
		}
	}
	return true
}
