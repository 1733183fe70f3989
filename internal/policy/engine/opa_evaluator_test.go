package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_DefaultPolicy_DashboardExempt(t *testing.T) {
	eval, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator() error = %v", err)
	}

	exempt, err := eval.Exempt(context.Background(), "dashboard")
	if err != nil {
		t.Fatalf("Exempt(dashboard) error = %v", err)
	}
	if !exempt {
		t.Error("Exempt(dashboard) = false, want true")
	}
}

func TestOPAEvaluator_DefaultPolicy_OtherOriginsEnforced(t *testing.T) {
	eval, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator() error = %v", err)
	}

	for _, origin := range []string{"", "mobile", "web", "Dashboard", "dashboard "} {
		exempt, err := eval.Exempt(context.Background(), origin)
		if err != nil {
			t.Fatalf("Exempt(%q) error = %v", origin, err)
		}
		if exempt {
			t.Errorf("Exempt(%q) = true, want false", origin)
		}
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	custom := `package gemwallet.session_origin

default exempt = false

exempt if {
	input.origin == "internal-ops"
}
`
	eval, err := NewOPAEvaluator(custom)
	if err != nil {
		t.Fatalf("NewOPAEvaluator(custom) error = %v", err)
	}

	exempt, err := eval.Exempt(context.Background(), "internal-ops")
	if err != nil {
		t.Fatalf("Exempt(internal-ops) error = %v", err)
	}
	if !exempt {
		t.Error("Exempt(internal-ops) = false, want true")
	}

	exempt, err = eval.Exempt(context.Background(), "dashboard")
	if err != nil {
		t.Fatalf("Exempt(dashboard) error = %v", err)
	}
	if exempt {
		t.Error("Exempt(dashboard) = true under custom policy, want false")
	}
}

func TestOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator("package broken {"); err == nil {
		t.Error("NewOPAEvaluator(invalid rego) error = nil, want compile error")
	}
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	eval, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator() error = %v", err)
	}
	if err := eval.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
