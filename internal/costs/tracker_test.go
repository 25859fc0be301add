package costs

import (
	"path/filepath"
	"testing"
)

func TestRecordActual_AccumulatesDailyAndMonthly(t *testing.T) {
	tr := NewTracker("", 0, 0)
	tr.RecordActual("alice", "openai/gpt-4o", 100, 50, 1.25)
	tr.RecordActual("alice", "openai/gpt-4o", 100, 50, 0.75)

	if tr.CheckDailyBudget("alice", 4.0, 1.5) {
		t.Error("2.0 + 1.5 should not exceed 4.0 daily budget")
	}
	if !tr.CheckDailyBudget("alice", 1.5, 0.1) {
		t.Error("2.0 + 0.1 should exceed 1.5 daily budget")
	}
}

func TestRecordEstimate_SurfacesLastEstimatePerSender(t *testing.T) {
	tr := NewTracker("", 0, 0)
	if _, ok := tr.LastEstimate("alice"); ok {
		t.Fatal("expected no estimate before RecordEstimate")
	}
	tr.RecordEstimate("alice", "standard", 500)
	est, ok := tr.LastEstimate("alice")
	if !ok {
		t.Fatal("expected an estimate after RecordEstimate")
	}
	if est.TierName != "standard" || est.EstimatedTokens != 500 {
		t.Errorf("LastEstimate = %+v, want {standard 500}", est)
	}

	tr.RecordEstimate("alice", "premium", 900)
	est, _ = tr.LastEstimate("alice")
	if est.TierName != "premium" || est.EstimatedTokens != 900 {
		t.Errorf("LastEstimate did not overwrite previous estimate: %+v", est)
	}
}

func TestCheckDailyBudget_ZeroIsUnlimited(t *testing.T) {
	tr := NewTracker("", 0, 0)
	tr.RecordActual("bob", "openai/gpt-4o", 1000, 1000, 999.0)
	if tr.CheckDailyBudget("bob", 0, 1000) {
		t.Error("budget of 0 means unlimited, should never report exceeded")
	}
}

func TestGlobalDailyBudgetExceeded(t *testing.T) {
	tr := NewTracker("", 0, 1.0)
	if tr.GlobalDailyBudgetExceeded() {
		t.Fatal("should not be exceeded before any spend")
	}
	tr.RecordActual("carol", "openai/gpt-4o", 10, 10, 0.5)
	if tr.GlobalDailyBudgetExceeded() {
		t.Fatal("0.5 should not exceed global cap of 1.0")
	}
	tr.RecordActual("dave", "openai/gpt-4o", 10, 10, 0.6)
	if !tr.GlobalDailyBudgetExceeded() {
		t.Fatal("1.1 should exceed global cap of 1.0")
	}
}

func TestPersistAndLoadAll_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.json")
	tr := NewTracker(path, 0, 0)
	tr.RecordActual("erin", "openai/gpt-4o", 10, 10, 2.5)
	if err := tr.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded := NewTracker(path, 0, 0)
	if err := reloaded.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if !reloaded.CheckDailyBudget("erin", 2.0, 0) {
		t.Error("reloaded tracker should retain erin's 2.5 USD spend, exceeding a 2.0 budget")
	}
}

func TestLoadAll_MissingFileIsNotError(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "missing.json"), 0, 0)
	if err := tr.LoadAll(); err != nil {
		t.Errorf("missing state file should not error: %v", err)
	}
}
