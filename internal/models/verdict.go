package models

// VerdictLabel is the discrete directional call for an asset
type VerdictLabel string

const (
	LabelBullish VerdictLabel = "BULLISH"
	LabelBearish VerdictLabel = "BEARISH"
	LabelNeutral VerdictLabel = "NEUTRAL"
	LabelBuy     VerdictLabel = "BUY / LONG"
	LabelSell    VerdictLabel = "SELL / SHORT"
	LabelRanging VerdictLabel = "RANGING"
)

// Direction is the sign of a verdict or factor
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

// Color is the rendering hint attached to factors and verdicts.
type Color string

const (
	ColorPositive Color = "#3fb950"
	ColorNegative Color = "#f85149"
	ColorNeutral  Color = "#e3b341"
)

// ColorFor maps a direction to its rendering color.
func ColorFor(d Direction) Color {
	switch d {
	case DirectionPositive:
		return ColorPositive
	case DirectionNegative:
		return ColorNegative
	default:
		return ColorNeutral
	}
}

// ScoreFactor is one rule outcome that contributed to a verdict.
type ScoreFactor struct {
	Rule      string    `json:"rule"`
	Label     string    `json:"label"`
	Points    int       `json:"points"`
	Direction Direction `json:"direction"`
	Color     Color     `json:"color"`
}

// Verdict is the bounded score and label for one tracked asset.
type Verdict struct {
	Asset     string        `json:"asset"`
	Name      string        `json:"name"`
	Score     int           `json:"score"` // 0..100
	Label     VerdictLabel  `json:"label"`
	Direction Direction     `json:"direction"`
	Color     Color         `json:"color"`
	Factors   []ScoreFactor `json:"factors"`
}
