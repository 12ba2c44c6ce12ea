package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FollowUpRule describes the reminder created when a lead enters a stage.
type FollowUpRule struct {
	DelayDays int    `yaml:"delayDays"`
	Reason    string `yaml:"reason"`
}

// Delay returns the rule's delay as a duration.
func (r FollowUpRule) Delay() time.Duration {
	return time.Duration(r.DelayDays) * 24 * time.Hour
}

// RuleTable maps stages to their follow-up rules. Stages absent from the
// table schedule nothing. Static configuration, never mutated at runtime.
type RuleTable map[Stage]FollowUpRule

// DefaultRuleTable returns the production follow-up rules.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		StageContacted:          {DelayDays: 3, Reason: "Follow up after initial contact"},
		StageDiscoveryScheduled: {DelayDays: 1, Reason: "Confirm discovery call details"},
		StageDiscoveryCompleted: {DelayDays: 2, Reason: "Send proposal after discovery"},
		StageProposalSent:       {DelayDays: 5, Reason: "Check in on proposal"},
		StageNegotiation:        {DelayDays: 4, Reason: "Nudge stalled negotiation"},
		StageActiveClient:       {DelayDays: 14, Reason: "First check-in with new client"},
		StageRetention:          {DelayDays: 30, Reason: "Quarterly retention touchpoint"},
	}
}

// LoadRuleTable returns the rule table from the YAML file at path, validated
// against the given stage order. An empty path returns the defaults.
func LoadRuleTable(path string, order *Order) (RuleTable, error) {
	if path == "" {
		return DefaultRuleTable(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage rules: %w", err)
	}

	var parsed map[string]FollowUpRule
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse stage rules: %w", err)
	}

	table := make(RuleTable, len(parsed))
	for name, rule := range parsed {
		stage := Stage(name)
		if !order.IsKnown(stage) {
			return nil, fmt.Errorf("stage rules reference unknown stage %q", name)
		}
		if rule.DelayDays < 0 {
			return nil, fmt.Errorf("stage %q has negative delayDays", name)
		}
		if rule.Reason == "" {
			return nil, fmt.Errorf("stage %q has an empty reason", name)
		}
		table[stage] = rule
	}

	return table, nil
}
