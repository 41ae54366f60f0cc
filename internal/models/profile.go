package models

// RuleKind selects how a scoring rule reads its input
type RuleKind string

const (
	// RuleChange compares a symbol's percent change against thresholds
	RuleChange RuleKind = "change"

	// RuleLevel compares a symbol's price against thresholds
	RuleLevel RuleKind = "level"

	// RuleSpread compares change(Symbol) - change(Versus) against thresholds
	RuleSpread RuleKind = "spread"

	// RuleProportional scales a symbol's percent change by PointsPerUnit, bounded by MaxPoints
	RuleProportional RuleKind = "proportional"

	// RuleSentiment compares a topic's mean sentiment against thresholds
	RuleSentiment RuleKind = "sentiment"
)

// Rule is one row of a scoring profile.
// Threshold rules fire BelowPoints when the input is strictly below Below and
// AbovePoints when it is strictly above Above. Inputs in between contribute zero.
type Rule struct {
	Name   string   `toml:"name" yaml:"name" json:"name" validate:"required"`
	Kind   RuleKind `toml:"kind" yaml:"kind" json:"kind" validate:"required,oneof=change level spread proportional sentiment"`
	Group  string   `toml:"group" yaml:"group" json:"group,omitempty"` // macro, risk, fx, carry, commodity, sentiment
	Symbol string   `toml:"symbol" yaml:"symbol" json:"symbol,omitempty"`
	Versus string   `toml:"versus" yaml:"versus" json:"versus,omitempty"`
	Topic  Topic    `toml:"topic" yaml:"topic" json:"topic,omitempty"`

	Below       *float64 `toml:"below" yaml:"below" json:"below,omitempty"`
	Above       *float64 `toml:"above" yaml:"above" json:"above,omitempty"`
	BelowPoints int      `toml:"below_points" yaml:"below_points" json:"below_points"`
	AbovePoints int      `toml:"above_points" yaml:"above_points" json:"above_points"`
	BelowLabel  string   `toml:"below_label" yaml:"below_label" json:"below_label,omitempty"`
	AboveLabel  string   `toml:"above_label" yaml:"above_label" json:"above_label,omitempty"`

	PointsPerUnit float64 `toml:"points_per_unit" yaml:"points_per_unit" json:"points_per_unit,omitempty"`
	MaxPoints     int     `toml:"max_points" yaml:"max_points" json:"max_points,omitempty" validate:"gte=0"`
	Deadband      float64 `toml:"deadband" yaml:"deadband" json:"deadband,omitempty" validate:"gte=0"`
	Label         string  `toml:"label" yaml:"label" json:"label,omitempty"` // Proportional rules only
}

// ProfileLabels names the three verdict outcomes of a profile
type ProfileLabels struct {
	Positive VerdictLabel `toml:"positive" yaml:"positive" json:"positive" validate:"required"`
	Negative VerdictLabel `toml:"negative" yaml:"negative" json:"negative" validate:"required"`
	Neutral  VerdictLabel `toml:"neutral" yaml:"neutral" json:"neutral" validate:"required"`
}

// Profile is the ordered rule table for one tracked asset.
type Profile struct {
	Asset  string        `toml:"asset" yaml:"asset" json:"asset" validate:"required"`
	Name   string        `toml:"name" yaml:"name" json:"name"`
	Labels ProfileLabels `toml:"labels" yaml:"labels" json:"labels"`
	Rules  []Rule        `toml:"rules" yaml:"rules" json:"rules" validate:"dive"`
}

// Symbols returns every quote symbol the profile's rules read, in rule order.
func (p Profile) Symbols() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, r := range p.Rules {
		if r.Kind == RuleSentiment {
			continue
		}
		add(r.Symbol)
		add(r.Versus)
	}
	return out
}
