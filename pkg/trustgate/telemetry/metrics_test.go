package telemetry

import (
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/solwatch/trustgate/pkg/trustgate/trust"
)

func gatherValue(t *testing.T, m *Manager, name string) float64 {
	t.Helper()
	families, err := m.reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		metric := fam.GetMetric()[0]
		switch fam.GetType() {
		case dto.MetricType_COUNTER:
			return metric.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("Metric %s not found", name)
	return 0
}

func TestEmitValidationCountsOutcomes(t *testing.T) {
	m := NewManager(MetricsConfig{Enabled: true, Namespace: "trustgate"})

	m.EmitValidation(&trust.Verdict{
		TrustedFollowerCount: 3,
		APICallsUsed:         2,
		ValidationStrength:   55,
	})
	m.EmitValidation(&trust.Verdict{Error: "Target account is private"})

	if got := gatherValue(t, m, "trustgate_validations_total"); got != 2 {
		t.Errorf("Expected 2 validations, got %.0f", got)
	}
	if got := gatherValue(t, m, "trustgate_validations_failed_total"); got != 1 {
		t.Errorf("Expected 1 failed validation, got %.0f", got)
	}
	if got := gatherValue(t, m, "trustgate_trusted_followers_found_total"); got != 3 {
		t.Errorf("Expected 3 trusted followers, got %.0f", got)
	}
	if got := gatherValue(t, m, "trustgate_api_calls_total"); got != 2 {
		t.Errorf("Expected 2 API calls, got %.0f", got)
	}
}

func TestEmitBudgetClampsAtZero(t *testing.T) {
	m := NewManager(MetricsConfig{Enabled: true, Namespace: "trustgate"})

	m.EmitBudget(5, 20)
	if got := gatherValue(t, m, "trustgate_budget_remaining"); got != 15 {
		t.Errorf("Expected 15 remaining, got %.0f", got)
	}

	m.EmitBudget(25, 20)
	if got := gatherValue(t, m, "trustgate_budget_remaining"); got != 0 {
		t.Errorf("Over-consumed budget should report 0, got %.0f", got)
	}
}

func TestDisabledManagerIsInert(t *testing.T) {
	m := NewManager(MetricsConfig{Enabled: false})

	// Must not panic with a nil registry.
	m.EmitValidation(&trust.Verdict{TrustedFollowerCount: 1})
	m.EmitBudget(1, 20)
	m.SetTrustedAccountsLoaded(10)
	if err := m.Start(); err != nil {
		t.Errorf("Disabled manager Start should be a no-op: %v", err)
	}
}
