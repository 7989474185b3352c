package health

import (
	"testing"

	"dirauth/pkg/pool"
)

func TestMonitorDefaultsHealthy(t *testing.T) {
	m := NewMonitor()
	report := m.GetHealth(pool.Stats{Capacity: 5, InUse: 2, Free: 3})

	if report.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", report.Status)
	}
	if report.Pool.Capacity != 5 || report.Pool.InUse != 2 {
		t.Errorf("Pool stats not embedded: %+v", report.Pool)
	}
	if report.Goroutines <= 0 {
		t.Error("Goroutine count should be positive")
	}
}

func TestMonitorAggregatesComponentStatus(t *testing.T) {
	m := NewMonitor()
	m.SetComponentStatus("pool", StatusHealthy, "")
	m.SetComponentStatus("audit", StatusDegraded, "slow writes")

	report := m.GetHealth(pool.Stats{})
	if report.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", report.Status)
	}

	m.SetComponentStatus("directory", StatusUnhealthy, "backend down")
	report = m.GetHealth(pool.Stats{})
	if report.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", report.Status)
	}
	if len(report.Components) != 3 {
		t.Errorf("Expected 3 components, got %d", len(report.Components))
	}
}
