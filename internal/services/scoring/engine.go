// Package scoring turns normalized quotes and topic sentiment into bounded
// directional verdicts using ordered, data-driven rule tables.
package scoring

import (
	"fmt"
	"math"

	"github.com/ternarybob/macrobias/internal/models"
)

// Score bounds and verdict thresholds
const (
	BaseScore = 50
	MinScore  = 0
	MaxScore  = 100

	// PositiveAbove and NegativeBelow are exclusive
	PositiveAbove = 60
	NegativeBelow = 40
)

// Inputs is everything one evaluation reads.
type Inputs struct {
	Quotes    map[string]models.Quote
	Sentiment map[models.Topic]float64
}

// Engine evaluates scoring profiles. It is stateless and safe for concurrent use;
// identical inputs always produce identical verdicts.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate scores one profile.
//
// Every evaluation starts at BaseScore; each rule's delta is summed in rule order
// and the total is clamped to [MinScore, MaxScore]:
//   - score > 60: profile's positive label
//   - score < 40: profile's negative label
//   - otherwise:  neutral label
//
// Factors list the rules that contributed a non-zero delta, in rule order.
func (e *Engine) Evaluate(profile models.Profile, in Inputs) models.Verdict {
	score := BaseScore
	factors := make([]models.ScoreFactor, 0, len(profile.Rules))

	for _, rule := range profile.Rules {
		points, label := evaluateRule(rule, in)
		if points == 0 {
			continue
		}
		score += points

		dir := directionOf(points)
		factors = append(factors, models.ScoreFactor{
			Rule:      rule.Name,
			Label:     label,
			Points:    points,
			Direction: dir,
			Color:     models.ColorFor(dir),
		})
	}

	score = ClampScore(score)
	label, dir := determineLabel(profile.Labels, score)

	return models.Verdict{
		Asset:     profile.Asset,
		Name:      profile.Name,
		Score:     score,
		Label:     label,
		Direction: dir,
		Color:     models.ColorFor(dir),
		Factors:   factors,
	}
}

// EvaluateAll scores every profile in order.
func (e *Engine) EvaluateAll(profiles []models.Profile, in Inputs) []models.Verdict {
	verdicts := make([]models.Verdict, 0, len(profiles))
	for _, p := range profiles {
		verdicts = append(verdicts, e.Evaluate(p, in))
	}
	return verdicts
}

// ClampScore bounds a raw score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// determineLabel maps a clamped score to the profile's label and direction
func determineLabel(labels models.ProfileLabels, score int) (models.VerdictLabel, models.Direction) {
	if score > PositiveAbove {
		return labels.Positive, models.DirectionPositive
	}
	if score < NegativeBelow {
		return labels.Negative, models.DirectionNegative
	}
	return labels.Neutral, models.DirectionNeutral
}

// evaluateRule returns the rule's point delta and factor label.
// Missing inputs contribute zero.
func evaluateRule(rule models.Rule, in Inputs) (int, string) {
	switch rule.Kind {
	case models.RuleChange:
		q, ok := in.Quotes[rule.Symbol]
		if !ok {
			return 0, ""
		}
		return threshold(rule, q.PercentChange, "%+.2f%%")

	case models.RuleLevel:
		// A zero price is the missing-data sentinel, not a real level
		q, ok := in.Quotes[rule.Symbol]
		if !ok || q.Price == 0 {
			return 0, ""
		}
		return threshold(rule, q.Price, "%.2f")

	case models.RuleSpread:
		a, okA := in.Quotes[rule.Symbol]
		b, okB := in.Quotes[rule.Versus]
		if !okA || !okB || a.IsZero() || b.IsZero() {
			return 0, ""
		}
		return threshold(rule, a.PercentChange-b.PercentChange, "%+.2f%%")

	case models.RuleProportional:
		q, ok := in.Quotes[rule.Symbol]
		if !ok {
			return 0, ""
		}
		return proportional(rule, q.PercentChange)

	case models.RuleSentiment:
		return threshold(rule, in.Sentiment[rule.Topic], "%+.3f")
	}
	return 0, ""
}

// threshold fires BelowPoints when value < Below and AbovePoints when value > Above.
// Values inside [Below, Above] contribute zero.
func threshold(rule models.Rule, value float64, valueFormat string) (int, string) {
	switch {
	case rule.Below != nil && value < *rule.Below:
		return rule.BelowPoints, factorLabel(rule.BelowLabel, rule.Name, value, valueFormat)
	case rule.Above != nil && value > *rule.Above:
		return rule.AbovePoints, factorLabel(rule.AboveLabel, rule.Name, value, valueFormat)
	default:
		return 0, ""
	}
}

// proportional scales value by PointsPerUnit, rounds half away from zero and
// bounds the result by ±MaxPoints. |value| <= Deadband contributes zero.
func proportional(rule models.Rule, value float64) (int, string) {
	if math.Abs(value) <= rule.Deadband {
		return 0, ""
	}

	raw := math.Round(rule.PointsPerUnit * value)
	if rule.MaxPoints > 0 {
		limit := float64(rule.MaxPoints)
		raw = math.Max(-limit, math.Min(limit, raw))
	}
	return int(raw), factorLabel(rule.Label, rule.Name, value, "%+.2f%%")
}

func factorLabel(label, name string, value float64, valueFormat string) string {
	if label == "" {
		label = name
	}
	return fmt.Sprintf("%s ("+valueFormat+")", label, value)
}

func directionOf(points int) models.Direction {
	switch {
	case points > 0:
		return models.DirectionPositive
	case points < 0:
		return models.DirectionNegative
	default:
		return models.DirectionNeutral
	}
}
