package effects

import (
	"math"
	"testing"
)

// gridSampler is a nearest-neighbour, clamp-to-edge sampler over a luma grid.
type gridSampler struct {
	w, h int
	luma []float64
}

func (g gridSampler) Sample(u, v float64) Color {
	x := int(math.Floor(u * float64(g.w)))
	y := int(math.Floor(v * float64(g.h)))
	x = min(max(x, 0), g.w-1)
	y = min(max(y, 0), g.h-1)
	l := g.luma[y*g.w+x]
	return RGB(l, l, l)
}

func uniformGrid(w, h int, l float64) gridSampler {
	g := gridSampler{w: w, h: h, luma: make([]float64, w*h)}
	for i := range g.luma {
		g.luma[i] = l
	}
	return g
}

// verticalEdge is black for x < split and white from split on.
func verticalEdge(w, h, split int) gridSampler {
	g := gridSampler{w: w, h: h, luma: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := split; x < w; x++ {
			g.luma[y*w+x] = 1
		}
	}
	return g
}

// horizontalEdge is black for y < split and white from split on.
func horizontalEdge(w, h, split int) gridSampler {
	g := gridSampler{w: w, h: h, luma: make([]float64, w*h)}
	for y := split; y < h; y++ {
		for x := 0; x < w; x++ {
			g.luma[y*w+x] = 1
		}
	}
	return g
}

type constSampler Color

func (c constSampler) Sample(_, _ float64) Color { return Color(c) }

func center(x, y, w, h int) (float64, float64) {
	return (float64(x) + 0.5) / float64(w), (float64(y) + 0.5) / float64(h)
}

func TestRangeClamp(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		in   float64
		want float64
	}{
		{"inside", PigmentRange, 2.5, 2.5},
		{"below", PigmentRange, -1, 0},
		{"above", PigmentRange, 9, 5},
		{"nan", ThresholdRange, math.NaN(), 0},
		{"upper bound", ThresholdRange, 1, 1},
		{"inf", ThicknessRange, math.Inf(1), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Clamp(tt.in); got != tt.want {
				t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParamsClamp(t *testing.T) {
	wc := WatercolorParams{Pigment: 7, Threshold: -0.5}.Clamp()
	if wc.Pigment != 5 || wc.Threshold != 0 {
		t.Errorf("WatercolorParams.Clamp() = %+v, want {5 0}", wc)
	}

	p := PencilParams{Thickness: -1, Sensitivity: 2, Color: Color{R: 2, G: -1, B: 0.5, A: 1}}.Clamp()
	if p.Thickness != 0 || p.Sensitivity != 1 {
		t.Errorf("PencilParams.Clamp() numeric = %v/%v, want 0/1", p.Thickness, p.Sensitivity)
	}
	if p.Color != (Color{R: 1, G: 0, B: 0.5, A: 1}) {
		t.Errorf("PencilParams.Clamp() color = %+v", p.Color)
	}
}

func TestDefaults(t *testing.T) {
	wc := DefaultWatercolorParams()
	if wc.Pigment != 0.1 || wc.Threshold != 0.3 {
		t.Errorf("DefaultWatercolorParams() = %+v", wc)
	}
	p := DefaultPencilParams()
	if p.Color.Hex() != "#222222" || p.Background.Hex() != "#ffffff" {
		t.Errorf("DefaultPencilParams() colors = %s/%s", p.Color.Hex(), p.Background.Hex())
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"#222222", "#222222", false},
		{"ffffff", "#ffffff", false},
		{"#fff", "#ffffff", false},
		{"#11223380", "#11223380", false},
		{"#12345", "", true},
		{"#zzzzzz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && c.Hex() != tt.want {
			t.Errorf("ParseColor(%q).Hex() = %q, want %q", tt.in, c.Hex(), tt.want)
		}
	}
}

func TestColorTextRoundTrip(t *testing.T) {
	var c Color
	if err := c.UnmarshalText([]byte("#336699")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	b, _ := c.MarshalText()
	if string(b) != "#336699" {
		t.Errorf("MarshalText() = %s, want #336699", b)
	}
}

func TestSmoothstep(t *testing.T) {
	tests := []struct {
		e0, e1, x, want float64
	}{
		{0, 1, -1, 0},
		{0, 1, 0.5, 0.5},
		{0, 1, 2, 1},
		{-0.05, 0.15, 0, 0.15625},
		{0.5, 0.5, 0.4, 0},
		{0.5, 0.5, 0.5, 1},
	}
	for _, tt := range tests {
		if got := Smoothstep(tt.e0, tt.e1, tt.x); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Smoothstep(%v, %v, %v) = %v, want %v", tt.e0, tt.e1, tt.x, got, tt.want)
		}
	}
}

func TestSobelUniformIsZero(t *testing.T) {
	const w, h = 16, 12
	for _, l := range []float64{0, 0.1, 0.5, 0.731, 1} {
		g := uniformGrid(w, h, l)
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				u, v := center(x, y, w, h)
				if got := Sobel(g, u, v, 1.0/w, 1.0/h); got != 0 {
					t.Fatalf("Sobel(uniform %v) at (%d,%d) = %v, want 0", l, x, y, got)
				}
			}
		}
	}
}

func TestSobelHardEdgeIsMaximal(t *testing.T) {
	const w, h, split = 32, 32, 16
	for _, thickness := range []float64{1, 2, 3, 5} {
		step := int(thickness)

		// The left (or top) taps land on black, the centre and far taps on white.
		u, v := center(split+step-1, h/2, w, h)
		got := Sobel(verticalEdge(w, h, split), u, v, thickness/w, thickness/h)
		if math.Abs(got-4) > 1e-12 {
			t.Errorf("thickness %v: vertical edge Sobel = %v, want 4", thickness, got)
		}

		u, v = center(w/2, split+step-1, w, h)
		got = Sobel(horizontalEdge(w, h, split), u, v, thickness/w, thickness/h)
		if math.Abs(got-4) > 1e-12 {
			t.Errorf("thickness %v: horizontal edge Sobel = %v, want 4", thickness, got)
		}
	}
}

func TestSobelBounded(t *testing.T) {
	const w, h = 24, 24
	g := gridSampler{w: w, h: h, luma: make([]float64, w*h)}
	for i := range g.luma {
		if (i*7919)%3 == 0 {
			g.luma[i] = 1
		}
	}
	limit := 4 * math.Sqrt2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			u, v := center(x, y, w, h)
			if got := Sobel(g, u, v, 1.0/w, 1.0/h); got > limit+1e-12 {
				t.Fatalf("Sobel at (%d,%d) = %v exceeds %v", x, y, got, limit)
			}
		}
	}
}

func TestWatercolorZeroPigmentIsIdentity(t *testing.T) {
	const w, h = 16, 16
	src := verticalEdge(w, h, 8)
	paper := constSampler(RGB(0.9, 0.9, 0.9))
	shader := Watercolor{Params: WatercolorParams{Pigment: 0, Threshold: 0.3}, Texel: NewResolution(w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			u, v := center(x, y, w, h)
			if got, want := shader.Shade(src, paper, u, v), src.Sample(u, v); got != want {
				t.Fatalf("Shade at (%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestWatercolorNilPaperIsIdentity(t *testing.T) {
	src := constSampler(RGB(0.2, 0.4, 0.6))
	shader := Watercolor{Params: WatercolorParams{Pigment: 5, Threshold: 0.5}, Texel: NewResolution(8, 8)}
	if got := shader.Shade(src, nil, 0.5, 0.5); got != RGB(0.2, 0.4, 0.6) {
		t.Errorf("Shade(nil paper) = %+v, want source", got)
	}
}

func TestWatercolorContinuous(t *testing.T) {
	const w, h = 16, 16
	src := verticalEdge(w, h, 8)
	paper := constSampler(RGB(0.85, 0.85, 0.85))
	u, v := center(8, 8, w, h)
	texel := NewResolution(w, h)

	shade := func(p, th float64) Color {
		return Watercolor{Params: WatercolorParams{Pigment: p, Threshold: th}, Texel: texel}.Shade(src, paper, u, v)
	}

	const eps = 1e-6
	for p := 0.0; p <= 5; p += 0.25 {
		for th := 0.0; th <= 1; th += 0.05 {
			c := shade(p, th)
			for _, ch := range []float64{c.R, c.G, c.B} {
				if math.IsNaN(ch) || math.IsInf(ch, 0) {
					t.Fatalf("Shade(p=%v, t=%v) = %+v, not finite", p, th, c)
				}
			}
			// A tiny parameter change must give a tiny output change, including at the bounds.
			for _, d := range [][2]float64{{eps, 0}, {0, eps}} {
				pp, tt := PigmentRange.Clamp(p+d[0]), ThresholdRange.Clamp(th+d[1])
				if dist := RGBDistance(c, shade(pp, tt)); dist > 1e-4 {
					t.Fatalf("Shade jumps by %v at p=%v t=%v", dist, p, th)
				}
			}
		}
	}
}

func TestWatercolorFlatInputIsPaperBlend(t *testing.T) {
	gray := RGB(0.5, 0.5, 0.5)
	grain := 0.8
	shader := Watercolor{Params: DefaultWatercolorParams(), Texel: NewResolution(10, 10)}
	got := shader.Shade(constSampler(gray), constSampler(RGB(grain, grain, grain)), 0.3, 0.3)

	k := 1 - math.Exp(-0.1)
	want := 0.5 + (0.5*(1-0.5*(1-grain))-0.5)*k
	if math.Abs(got.R-want) > 1e-12 || got.A != 1 {
		t.Errorf("Shade(flat) = %+v, want R=%v A=1", got, want)
	}
}

func TestPencilUniformGivesBackground(t *testing.T) {
	params := DefaultPencilParams()
	params.Sensitivity = 0.5
	shader := Pencil{Params: params, Resolution: NewResolution(16, 16)}
	got := shader.Shade(constSampler(RGB(0.3, 0.3, 0.3)), constSampler(RGB(0.7, 0.2, 0.5)), 0.5, 0.5)
	if got != params.Background {
		t.Errorf("Shade(uniform) = %+v, want background %+v", got, params.Background)
	}
}

func TestPencilEdgeGivesGrainyPencil(t *testing.T) {
	const w, h = 32, 32
	params := DefaultPencilParams()
	params.Thickness = 1
	params.Sensitivity = 0.5
	shader := Pencil{Params: params, Resolution: NewResolution(w, h)}

	// Neutral paper: no wobble, grain 0.5.
	paper := constSampler(RGB(0.5, 0.5, 0.5))
	u, v := center(16, 16, w, h)
	got := shader.Shade(verticalEdge(w, h, 16), paper, u, v)

	want := params.Color.Scale(0.9)
	if RGBDistance(got, want) > 1e-12 {
		t.Errorf("Shade(edge) = %+v, want %+v", got, want)
	}
}

func TestPencilNilPaperIsIdentity(t *testing.T) {
	src := constSampler(RGB(0.1, 0.2, 0.3))
	shader := Pencil{Params: DefaultPencilParams(), Resolution: NewResolution(4, 4)}
	if got := shader.Shade(src, nil, 0.5, 0.5); got != RGB(0.1, 0.2, 0.3) {
		t.Errorf("Shade(nil paper) = %+v, want source", got)
	}
}

func TestNewResolution(t *testing.T) {
	if got := NewResolution(800, 600); got != (Resolution{X: 1.0 / 800, Y: 1.0 / 600}) {
		t.Errorf("NewResolution(800, 600) = %+v", got)
	}
	if got := NewResolution(0, 600); got != (Resolution{}) {
		t.Errorf("NewResolution(0, 600) = %+v, want zero", got)
	}
}
