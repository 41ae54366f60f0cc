package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/models"
)

const yamlProfiles = `profiles:
  - asset: EURUSD
    name: Euro
    labels:
      positive: BUY / LONG
      negative: SELL / SHORT
      neutral: RANGING
    rules:
      - name: eur_strength
        kind: change
        symbol: EURUSD=X
        below: -0.2
        below_points: -20
        above: 0.2
        above_points: 20
        above_label: EUR strong
      - name: brent
        kind: proportional
        symbol: BZ=F
        points_per_unit: -3
        max_points: 9
        deadband: 0.25
`

const tomlProfiles = `
[[profiles]]
asset = "NIKKEI"
name = "Nikkei 225"

[profiles.labels]
positive = "BULLISH"
negative = "BEARISH"
neutral = "NEUTRAL"

[[profiles.rules]]
name = "yen"
kind = "change"
symbol = "JPY=X"
above = 0.3
above_points = 15
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultProfiles_Valid(t *testing.T) {
	profiles := DefaultProfiles()
	require.NoError(t, ValidateProfiles(profiles))
	assert.Equal(t, []string{"^TNX", "^VIX", "XLK", "XLU"}, profiles[0].Symbols())
	assert.Equal(t, []string{"GBPUSD=X", "JPY=X", "CL=F"}, profiles[1].Symbols())
}

func TestLoadProfiles_YAML(t *testing.T) {
	path := writeFile(t, "profiles.yaml", yamlProfiles)

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "EURUSD", p.Asset)
	assert.Equal(t, models.LabelBuy, p.Labels.Positive)
	require.Len(t, p.Rules, 2)
	require.NotNil(t, p.Rules[0].Below)
	assert.Equal(t, -0.2, *p.Rules[0].Below)
	assert.Equal(t, models.RuleProportional, p.Rules[1].Kind)
	assert.Equal(t, -3.0, p.Rules[1].PointsPerUnit)
	require.NoError(t, ValidateProfiles(profiles))

	v := NewEngine().Evaluate(p, Inputs{Quotes: map[string]models.Quote{
		"EURUSD=X": {Symbol: "EURUSD=X", Price: 1.1, PercentChange: 0.4},
		"BZ=F":     {Symbol: "BZ=F", Price: 80, PercentChange: 2},
	}})
	assert.Equal(t, 50+20-6, v.Score)
	assert.Equal(t, "EUR strong (+0.40%)", v.Factors[0].Label)
}

func TestLoadProfiles_TOML(t *testing.T) {
	path := writeFile(t, "profiles.toml", tomlProfiles)

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "NIKKEI", profiles[0].Asset)
	assert.Nil(t, profiles[0].Rules[0].Below)
	assert.Equal(t, 15, profiles[0].Rules[0].AbovePoints)
	require.NoError(t, ValidateProfiles(profiles))
}

func TestLoadProfiles_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }},
		{"unknown extension", func(t *testing.T) string { return writeFile(t, "profiles.json", "{}") }},
		{"malformed yaml", func(t *testing.T) string { return writeFile(t, "bad.yaml", "profiles: [unclosed") }},
		{"no profiles", func(t *testing.T) string { return writeFile(t, "empty.toml", "# nothing\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfiles(tt.path(t))
			assert.Error(t, err)
		})
	}
}

func TestValidateProfiles(t *testing.T) {
	labels := models.ProfileLabels{Positive: "UP", Negative: "DOWN", Neutral: "FLAT"}
	valid := func(rules ...models.Rule) []models.Profile {
		return []models.Profile{{Asset: "A", Labels: labels, Rules: rules}}
	}

	tests := []struct {
		name     string
		profiles []models.Profile
		wantErr  bool
	}{
		{"empty", nil, true},
		{"valid change", valid(models.Rule{Name: "r", Kind: models.RuleChange, Symbol: "X", Above: f64(1), AbovePoints: 5}), false},
		{"equal thresholds allowed", valid(models.Rule{Name: "r", Kind: models.RuleSpread, Symbol: "X", Versus: "Y", Below: f64(0), Above: f64(0)}), false},
		{"unknown kind", valid(models.Rule{Name: "r", Kind: "momentum", Symbol: "X", Above: f64(1)}), true},
		{"missing symbol", valid(models.Rule{Name: "r", Kind: models.RuleLevel, Above: f64(1)}), true},
		{"spread without versus", valid(models.Rule{Name: "r", Kind: models.RuleSpread, Symbol: "X", Above: f64(0)}), true},
		{"spread against itself", valid(models.Rule{Name: "r", Kind: models.RuleSpread, Symbol: "X", Versus: "X", Above: f64(0)}), true},
		{"sentiment without topic", valid(models.Rule{Name: "r", Kind: models.RuleSentiment, Above: f64(0.05)}), true},
		{"inverted thresholds", valid(models.Rule{Name: "r", Kind: models.RuleChange, Symbol: "X", Below: f64(1), Above: f64(-1)}), true},
		{"no thresholds", valid(models.Rule{Name: "r", Kind: models.RuleChange, Symbol: "X"}), true},
		{"proportional without rate", valid(models.Rule{Name: "r", Kind: models.RuleProportional, Symbol: "X"}), true},
		{"negative max points", valid(models.Rule{Name: "r", Kind: models.RuleProportional, Symbol: "X", PointsPerUnit: 1, MaxPoints: -1}), true},
		{"missing labels", []models.Profile{{Asset: "A"}}, true},
		{"duplicate asset", append(valid(), valid()...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfiles(tt.profiles)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveProfiles(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		profiles, err := ResolveProfiles(common.ScoringConfig{})
		require.NoError(t, err)
		assert.Len(t, profiles, 2)
	})

	t.Run("config profiles", func(t *testing.T) {
		custom := []models.Profile{{
			Asset:  "X",
			Labels: models.ProfileLabels{Positive: "UP", Negative: "DOWN", Neutral: "FLAT"},
			Rules:  []models.Rule{{Name: "r", Kind: models.RuleLevel, Symbol: "X", Below: f64(1), BelowPoints: 10}},
		}}
		profiles, err := ResolveProfiles(common.ScoringConfig{Profiles: custom})
		require.NoError(t, err)
		assert.Equal(t, "X", profiles[0].Asset)
	})

	t.Run("file wins over config", func(t *testing.T) {
		path := writeFile(t, "p.yml", yamlProfiles)
		profiles, err := ResolveProfiles(common.ScoringConfig{
			ProfileFile: path,
			Profiles:    DefaultProfiles(),
		})
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, "EURUSD", profiles[0].Asset)
	})

	t.Run("invalid file", func(t *testing.T) {
		_, err := ResolveProfiles(common.ScoringConfig{ProfileFile: "/does/not/exist.yaml"})
		assert.Error(t, err)
	})
}

func TestLoadProfiles_SampleFileMatchesDefaults(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join("..", "..", "..", "deployments", "local", "profiles.yaml"))
	require.NoError(t, err)
	require.NoError(t, ValidateProfiles(profiles))

	defaults := DefaultProfiles()
	require.Len(t, profiles, len(defaults))

	in := Inputs{
		Quotes: map[string]models.Quote{
			"^TNX":  {Symbol: "^TNX", Price: 4.1, PercentChange: -0.7},
			"^VIX":  {Symbol: "^VIX", Price: 24},
			"JPY=X": {Symbol: "JPY=X", Price: 151, PercentChange: 0.3},
			"CL=F":  {Symbol: "CL=F", Price: 80, PercentChange: 1.2},
		},
		Sentiment: map[models.Topic]float64{models.TopicUS: 0.1},
	}
	engine := NewEngine()
	for i := range defaults {
		want := engine.Evaluate(defaults[i], in)
		got := engine.Evaluate(profiles[i], in)
		assert.Equal(t, want.Score, got.Score, defaults[i].Asset)
		assert.Equal(t, want.Label, got.Label, defaults[i].Asset)
	}
}
