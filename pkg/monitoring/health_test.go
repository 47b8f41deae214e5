package monitoring

import (
	"testing"
)

func TestCheckHealthAggregation(t *testing.T) {
	hc := NewHealthChecker("omniops", "test")
	hc.AddCheck("ok", func() CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	health := hc.CheckHealth()
	if health.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", health.Status)
	}

	hc.AddCheck("warn", func() CheckResult {
		return CheckResult{Status: StatusDegraded}
	})
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}

	hc.AddCheck("down", func() CheckResult {
		return CheckResult{Status: StatusUnhealthy}
	})
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "postgres://x"})
	if got := check().Status; got != StatusHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}
	check = ConfigurationHealthCheck(map[string]string{"DATABASE_URL": ""})
	if got := check().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}
}
