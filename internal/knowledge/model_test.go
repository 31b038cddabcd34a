package knowledge

import "testing"

func TestManagedCompinSetPhaseMonotone(t *testing.T) {
	c := &ManagedCompin{AppName: "app", CompName: "comp", ID: "i1", Phase: PhaseCreating}

	if err := c.SetPhase(PhaseInit); err != nil {
		t.Fatalf("advancing phase: %v", err)
	}
	if err := c.SetPhase(PhaseReady); err != nil {
		t.Fatalf("advancing phase: %v", err)
	}
	if err := c.SetPhase(PhaseCreating); err == nil {
		t.Fatalf("expected error moving phase backwards, got nil")
	}
	if c.Phase != PhaseReady {
		t.Fatalf("phase must not change on a rejected transition, got %s", c.Phase)
	}
}

func TestManagedCompinSetPhaseFailedFromAnyState(t *testing.T) {
	for _, p := range []CompinPhase{PhaseCreating, PhaseInit, PhaseReady, PhaseFinalizing} {
		c := &ManagedCompin{Phase: p}
		if err := c.SetPhase(PhaseFailed); err != nil {
			t.Fatalf("FAILED must be reachable from %s: %v", p, err)
		}
	}
}

func TestValidAlias(t *testing.T) {
	cases := map[string]bool{
		"ABCD":  true,
		"abcd":  false,
		"ABC":   false,
		"ABCDE": false,
		"AB1D":  false,
	}
	for alias, want := range cases {
		if got := ValidAlias(alias); got != want {
			t.Errorf("ValidAlias(%q) = %v, want %v", alias, got, want)
		}
	}
}
