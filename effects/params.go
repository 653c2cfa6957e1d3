package effects

import "math"

// Pass identifiers used by the effect chain and the control panel.
const (
	WatercolorID = "watercolor"
	PencilID     = "pencil"
)

// Range is the declared valid interval of a tunable parameter.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp returns v limited to the range. NaN maps to Min.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

var (
	PigmentRange     = Range{Min: 0, Max: 5}
	ThresholdRange   = Range{Min: 0, Max: 1}
	ThicknessRange   = Range{Min: 0, Max: 5}
	SensitivityRange = Range{Min: 0, Max: 1}
)

// WatercolorParams are the live-editable uniforms of the watercolor pass.
type WatercolorParams struct {
	Pigment   float64 `json:"pigment" yaml:"pigment" toml:"pigment"`
	Threshold float64 `json:"threshold" yaml:"threshold" toml:"threshold"`
}

// DefaultWatercolorParams matches the viewer's shipped tuning.
func DefaultWatercolorParams() WatercolorParams {
	return WatercolorParams{Pigment: 0.1, Threshold: 0.3}
}

// Clamp limits every field to its declared range.
func (p WatercolorParams) Clamp() WatercolorParams {
	p.Pigment = PigmentRange.Clamp(p.Pigment)
	p.Threshold = ThresholdRange.Clamp(p.Threshold)
	return p
}

// PencilParams are the live-editable uniforms of the pencil-lines pass.
type PencilParams struct {
	Thickness   float64 `json:"thickness" yaml:"thickness" toml:"thickness"`
	Sensitivity float64 `json:"sensitivity" yaml:"sensitivity" toml:"sensitivity"`
	Color       Color   `json:"color" yaml:"color" toml:"color"`
	Background  Color   `json:"background" yaml:"background" toml:"background"`
}

var (
	DefaultPencilColor      = MustParseColor("#222222")
	DefaultPencilBackground = MustParseColor("#ffffff")
)

// DefaultPencilParams matches the viewer's shipped tuning.
func DefaultPencilParams() PencilParams {
	return PencilParams{
		Thickness:   0.05,
		Sensitivity: 0.05,
		Color:       DefaultPencilColor,
		Background:  DefaultPencilBackground,
	}
}

// Clamp limits the numeric fields to their declared ranges and the colors to [0,1].
func (p PencilParams) Clamp() PencilParams {
	p.Thickness = ThicknessRange.Clamp(p.Thickness)
	p.Sensitivity = SensitivityRange.Clamp(p.Sensitivity)
	p.Color = clampColor(p.Color)
	p.Background = clampColor(p.Background)
	return p
}

func clampColor(c Color) Color {
	return Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B), A: clamp01(c.A)}
}

// Resolution is the reciprocal viewport size, one texel in UV units.
type Resolution struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewResolution returns (1/width, 1/height). Non-positive sizes yield a zero vector.
func NewResolution(width, height int) Resolution {
	if width <= 0 || height <= 0 {
		return Resolution{}
	}
	return Resolution{X: 1 / float64(width), Y: 1 / float64(height)}
}
