package scoring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/models"
	"gopkg.in/yaml.v3"
)

// Asset identifiers of the built-in profiles
const (
	AssetUS30   = "US30"
	AssetGBPJPY = "GBPJPY"
)

// profileFile is the document shape of a standalone profile file.
type profileFile struct {
	Profiles []models.Profile `toml:"profiles" yaml:"profiles"`
}

// DefaultProfiles returns the built-in rule tables for US30 and GBPJPY.
func DefaultProfiles() []models.Profile {
	return []models.Profile{
		{
			Asset: AssetUS30,
			Name:  "Dow Jones (US30)",
			Labels: models.ProfileLabels{
				Positive: models.LabelBullish,
				Negative: models.LabelBearish,
				Neutral:  models.LabelNeutral,
			},
			Rules: []models.Rule{
				{
					Name: "us10y_yield", Kind: models.RuleChange, Group: "macro", Symbol: "^TNX",
					Below: f64(-0.5), BelowPoints: 25, BelowLabel: "Yields falling",
					Above: f64(0.5), AbovePoints: -25, AboveLabel: "Yields rising",
				},
				{
					Name: "vix_level", Kind: models.RuleLevel, Group: "risk", Symbol: "^VIX",
					Below: f64(16), BelowPoints: 25, BelowLabel: "VIX calm",
					Above: f64(22), AbovePoints: -25, AboveLabel: "VIX fear",
				},
				{
					Name: "sector_rotation", Kind: models.RuleSpread, Group: "risk", Symbol: "XLK", Versus: "XLU",
					Below: f64(0), BelowPoints: -15, BelowLabel: "Defensive rotation (XLU > XLK)",
					Above: f64(0), AbovePoints: 15, AboveLabel: "Risk-on rotation (XLK > XLU)",
				},
				{
					Name: "us_news", Kind: models.RuleSentiment, Group: "sentiment", Topic: models.TopicUS,
					Below: f64(-0.05), BelowPoints: -5, BelowLabel: "US news negative",
					Above: f64(0.05), AbovePoints: 5, AboveLabel: "US news positive",
				},
			},
		},
		{
			Asset: AssetGBPJPY,
			Name:  "GBP/JPY",
			Labels: models.ProfileLabels{
				Positive: models.LabelBuy,
				Negative: models.LabelSell,
				Neutral:  models.LabelRanging,
			},
			Rules: []models.Rule{
				{
					Name: "gbp_strength", Kind: models.RuleChange, Group: "fx", Symbol: "GBPUSD=X",
					Below: f64(-0.1), BelowPoints: -20, BelowLabel: "GBP weak",
					Above: f64(0.1), AbovePoints: 20, AboveLabel: "GBP strong",
				},
				{
					// USD/JPY rising means the yen is weakening
					Name: "jpy_carry", Kind: models.RuleChange, Group: "carry", Symbol: "JPY=X",
					Below: f64(-0.1), BelowPoints: -30, BelowLabel: "Yen safety bid",
					Above: f64(0.1), AbovePoints: 30, AboveLabel: "Carry trade on",
				},
				{
					// Japan imports its oil: crude up weighs on the yen
					Name: "oil_correlation", Kind: models.RuleProportional, Group: "commodity", Symbol: "CL=F",
					PointsPerUnit: 5, MaxPoints: 10, Deadband: 0.5, Label: "Crude oil",
				},
				{
					Name: "uk_jp_news", Kind: models.RuleSentiment, Group: "sentiment", Topic: models.TopicUKJP,
					Below: f64(-0.05), BelowPoints: -5, BelowLabel: "UK/JP news negative",
					Above: f64(0.05), AbovePoints: 5, AboveLabel: "UK/JP news positive",
				},
			},
		},
	}
}

// ResolveProfiles picks the active profiles: the profile file when set, then
// profiles declared in the configuration, then the built-in defaults.
// The result is always validated.
func ResolveProfiles(config common.ScoringConfig) ([]models.Profile, error) {
	var profiles []models.Profile
	switch {
	case config.ProfileFile != "":
		loaded, err := LoadProfiles(config.ProfileFile)
		if err != nil {
			return nil, err
		}
		profiles = loaded
	case len(config.Profiles) > 0:
		profiles = config.Profiles
	default:
		profiles = DefaultProfiles()
	}

	if err := ValidateProfiles(profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// LoadProfiles reads a YAML (.yaml, .yml) or TOML (.toml) profile file.
func LoadProfiles(path string) ([]models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	var doc profileFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile file extension %q (want .yaml, .yml or .toml)", ext)
	}

	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("profile file %s declares no profiles", path)
	}
	return doc.Profiles, nil
}

// ValidateProfiles checks struct tags plus the cross-field rules a tag cannot express.
func ValidateProfiles(profiles []models.Profile) error {
	if len(profiles) == 0 {
		return errors.New("no scoring profiles configured")
	}

	validate := validator.New()
	seen := make(map[string]bool, len(profiles))
	var errs []error

	for i, p := range profiles {
		if err := validate.Struct(p); err != nil {
			errs = append(errs, fmt.Errorf("profile %d (%s): %w", i, p.Asset, err))
			continue
		}
		if seen[p.Asset] {
			errs = append(errs, fmt.Errorf("profile %s: duplicate asset", p.Asset))
		}
		seen[p.Asset] = true

		for _, r := range p.Rules {
			if err := validateRule(r); err != nil {
				errs = append(errs, fmt.Errorf("profile %s rule %s: %w", p.Asset, r.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validateRule(r models.Rule) error {
	switch r.Kind {
	case models.RuleChange, models.RuleLevel, models.RuleProportional:
		if r.Symbol == "" {
			return errors.New("symbol is required")
		}
	case models.RuleSpread:
		if r.Symbol == "" || r.Versus == "" {
			return errors.New("symbol and versus are required")
		}
		if r.Symbol == r.Versus {
			return errors.New("symbol and versus must differ")
		}
	case models.RuleSentiment:
		if r.Topic == "" {
			return errors.New("topic is required")
		}
	}

	if r.Kind == models.RuleProportional {
		if r.PointsPerUnit == 0 {
			return errors.New("points_per_unit must be non-zero")
		}
		return nil
	}

	if r.Below == nil && r.Above == nil {
		return errors.New("at least one of below or above is required")
	}
	// Equal thresholds are allowed: a zero-width deadband around a sign test
	if r.Below != nil && r.Above != nil && *r.Below > *r.Above {
		return fmt.Errorf("below (%v) must not exceed above (%v)", *r.Below, *r.Above)
	}
	return nil
}

func f64(v float64) *float64 {
	return &v
}
