// Package health tracks daemon health: component statuses, uptime, and
// process resource usage, plus a snapshot of pool occupancy.
package health

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"dirauth/pkg/pool"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Report represents overall daemon health
type Report struct {
	Status     Status            `json:"status"`
	Uptime     int64             `json:"uptime_seconds"`
	Timestamp  time.Time         `json:"timestamp"`
	Goroutines int               `json:"goroutines"`
	MemoryMB   uint64            `json:"memory_mb"`
	CPUPercent float64           `json:"cpu_percent"`
	Pool       pool.Stats        `json:"pool"`
	Components []ComponentHealth `json:"components"`
}

// Monitor tracks daemon health metrics
type Monitor struct {
	startTime  time.Time
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	proc       *process.Process
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
		proc:       proc,
	}
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// GetHealth returns the current daemon health
func (m *Monitor) GetHealth(poolStats pool.Stats) *Report {
	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overall := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}
	m.mu.RUnlock()

	report := &Report{
		Status:     overall,
		Uptime:     int64(time.Since(m.startTime).Seconds()),
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
		Pool:       poolStats,
		Components: components,
	}

	if m.proc != nil {
		if mem, err := m.proc.MemoryInfo(); err == nil {
			report.MemoryMB = mem.RSS / 1024 / 1024
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			report.CPUPercent = cpu
		}
	}

	return report
}
