package effects

import "math"

// Wobble is the amplitude of the paper-driven UV displacement.
const Wobble = 0.005

// Pencil shades the pencil-lines pass.
type Pencil struct {
	Params     PencilParams
	Resolution Resolution
}

// Shade returns the output color at (u, v). A nil paper leaves the source untouched.
func (p Pencil) Shade(src, paper Sampler, u, v float64) Color {
	if paper == nil {
		return src.Sample(u, v)
	}

	w := paper.Sample(u, v)
	du := (w.R - 0.5) * Wobble
	dv := (w.G - 0.5) * Wobble

	step := p.Resolution
	edge := Sobel(src, u+du, v+dv, step.X*p.Params.Thickness, step.Y*p.Params.Thickness)

	grain := paper.Sample(u*2, v*2).R
	pencil := p.Params.Color.Scale(0.8 + 0.2*grain)

	s := p.Params.Sensitivity
	edgeFactor := Smoothstep(s-0.1, s+0.1, edge)

	out := Mix(p.Params.Background, pencil, edgeFactor)
	out.A = 1
	return out
}

// Sobel returns the gradient magnitude of the luma around (u, v), sampling the
// 3x3 neighbourhood stepX and stepY apart. Each gradient is the weighted sum of
// one side minus the weighted sum of the other, so a flat image gives exactly 0.
func Sobel(src Sampler, u, v, stepX, stepY float64) float64 {
	var l [3][3]float64
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			l[i+1][j+1] = src.Sample(u+float64(i)*stepX, v+float64(j)*stepY).Luma()
		}
	}

	// l[i][j]: i walks x, j walks y.
	left := l[0][0] + 2*l[0][1] + l[0][2]
	right := l[2][0] + 2*l[2][1] + l[2][2]
	top := l[0][0] + 2*l[1][0] + l[2][0]
	bottom := l[0][2] + 2*l[1][2] + l[2][2]

	gx := right - left
	gy := bottom - top
	return math.Sqrt(gx*gx + gy*gy)
}
