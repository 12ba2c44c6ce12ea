package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultRuleTable_ContactedRule(t *testing.T) {
	rules := DefaultRuleTable()

	rule, ok := rules[StageContacted]
	if !ok {
		t.Fatal("expected a follow-up rule for contacted")
	}
	if rule.DelayDays != 3 {
		t.Fatalf("expected 3 day delay, got %d", rule.DelayDays)
	}
	if rule.Delay() != 72*time.Hour {
		t.Fatalf("expected 72h delay, got %s", rule.Delay())
	}
}

func TestDefaultRuleTable_TerminalIntakeStagesHaveNoRule(t *testing.T) {
	rules := DefaultRuleTable()

	for _, stage := range []Stage{StageNewLead, StageContractSigned, StageProjectDelivered} {
		if _, ok := rules[stage]; ok {
			t.Fatalf("expected no follow-up rule for %q", stage)
		}
	}
}

func TestLoadRuleTable_EmptyPathReturnsDefaults(t *testing.T) {
	table, err := LoadRuleTable("", MustDefaultOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != len(DefaultRuleTable()) {
		t.Fatalf("expected default table, got %d rules", len(table))
	}
}

func TestLoadRuleTable_ParsesOverrides(t *testing.T) {
	path := writeRules(t, "contacted:\n  delayDays: 7\n  reason: Weekly follow up\n")

	table, err := LoadRuleTable(path, MustDefaultOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(table))
	}
	rule := table[StageContacted]
	if rule.DelayDays != 7 || rule.Reason != "Weekly follow up" {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestLoadRuleTable_RejectsUnknownStage(t *testing.T) {
	path := writeRules(t, "no_such_stage:\n  delayDays: 1\n  reason: x\n")

	if _, err := LoadRuleTable(path, MustDefaultOrder()); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestLoadRuleTable_RejectsNegativeDelay(t *testing.T) {
	path := writeRules(t, "contacted:\n  delayDays: -1\n  reason: x\n")

	if _, err := LoadRuleTable(path, MustDefaultOrder()); err == nil {
		t.Fatal("expected error for negative delay")
	}
}

func TestLoadRuleTable_RejectsEmptyReason(t *testing.T) {
	path := writeRules(t, "contacted:\n  delayDays: 2\n  reason: \"\"\n")

	if _, err := LoadRuleTable(path, MustDefaultOrder()); err == nil {
		t.Fatal("expected error for empty reason")
	}
}

func TestLoadRuleTable_MissingFile(t *testing.T) {
	if _, err := LoadRuleTable(filepath.Join(t.TempDir(), "missing.yaml"), MustDefaultOrder()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}
