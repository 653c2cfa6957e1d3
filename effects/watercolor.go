// Package effects holds the per-pixel math of the stylization passes.
//
// Every function here mirrors a fragment shader in package shader line for
// line, so the software backend and the GL backend produce the same image up
// to floating point precision. UV coordinates are in [0,1] with texel centres
// at (x+0.5)/width.
package effects

import "math"

// Sampler is a filtered texture lookup, the equivalent of texture2D().
// Implementations decide the wrap mode.
type Sampler interface {
	Sample(u, v float64) Color
}

// Watercolor shades the watercolor pass.
//
// The local contrast against a 4-neighbour blur drives edge darkening, and
// the paper grain drives pigment pooling. Pigment is mapped through
// 1-exp(-pigment) so zero pigment returns the source pixel unchanged.
type Watercolor struct {
	Params WatercolorParams
	Texel  Resolution
}

// Shade returns the output color at (u, v). A nil paper leaves the source untouched.
func (w Watercolor) Shade(src, paper Sampler, u, v float64) Color {
	c := src.Sample(u, v)
	if paper == nil {
		return c
	}

	tx, ty := w.Texel.X, w.Texel.Y
	blur := src.Sample(u+tx, v).
		Add(src.Sample(u-tx, v)).
		Add(src.Sample(u, v+ty)).
		Add(src.Sample(u, v-ty)).
		Scale(0.25)

	edge := RGBDistance(c, blur)
	edgeFactor := Smoothstep(w.Params.Threshold-0.1, w.Params.Threshold+0.1, edge)

	grain := paper.Sample(u, v).R
	pool := (1 - grain) + 0.5*edgeFactor
	wash := Mix(c, blur, 0.5).Scale(1 - 0.5*pool)

	k := 1 - math.Exp(-w.Params.Pigment)
	out := Mix(c, wash, k)
	out.A = 1
	return out
}
