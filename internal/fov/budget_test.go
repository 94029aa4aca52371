package fov

import "testing"

func TestClassifyWindowTiers(t *testing.T) {
	cases := []struct {
		window int
		want   Tier
	}{
		{2048, TierSmall},
		{4096, TierSmall},
		{8000, TierMedium},
		{16385, TierMedium},
		{32000, TierLarge},
		{64000, TierLarge},
		{100000, TierXLarge},
		{128000, TierXLarge},
		{200000, TierXLarge},
	}
	for _, tc := range cases {
		if got := ClassifyWindow(tc.window); got != tc.want {
			t.Fatalf("window %d: expected tier %s, got %s", tc.window, tc.want, got)
		}
	}
}

func TestPlanBudgetSubBudgetsWithinWindow(t *testing.T) {
	for _, window := range []int{1, 100, 2048, 4096, 8192, 16385, 32768, 64000, 128000, 200000, 1000000} {
		budget := PlanBudget(window)
		usable := budget.ContextWindow * usablePercent / 100
		if budget.Total() > usable {
			t.Fatalf("window %d: sub-budgets %d exceed usable %d", window, budget.Total(), usable)
		}
		if budget.Total() > budget.ContextWindow {
			t.Fatalf("window %d: sub-budgets exceed context window", window)
		}
		for name, v := range map[string]int{
			"immediate": budget.Immediate,
			"working":   budget.Working,
			"episodic":  budget.Episodic,
			"semantic":  budget.Semantic,
		} {
			if v < 0 {
				t.Fatalf("window %d: %s budget is negative", window, name)
			}
		}
		if budget.TurnRetention < minTurnRetention || budget.TurnRetention > maxTurnRetention {
			t.Fatalf("window %d: turn retention %d out of range", window, budget.TurnRetention)
		}
	}
}

func TestPlanBudgetNonPositiveWindowFallsBack(t *testing.T) {
	budget := PlanBudget(0)
	if budget.ContextWindow != 4096 {
		t.Fatalf("expected fallback window 4096, got %d", budget.ContextWindow)
	}
	if budget.Tier != TierSmall {
		t.Fatalf("expected small tier, got %s", budget.Tier)
	}
}

func TestPlanBudget128kIsXLarge(t *testing.T) {
	budget := PlanBudget(128000)
	if budget.Tier != TierXLarge {
		t.Fatalf("expected xlarge for 128k window, got %s", budget.Tier)
	}
	if budget.TurnRetention != maxTurnRetention {
		t.Fatalf("expected max turn retention for 128k window, got %d", budget.TurnRetention)
	}
}
