package software

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/paper"
)

const tolerance = 1e-5

func near(a, b effects.Color) bool {
	return math.Abs(a.R-b.R) < tolerance &&
		math.Abs(a.G-b.G) < tolerance &&
		math.Abs(a.B-b.B) < tolerance &&
		math.Abs(a.A-b.A) < tolerance
}

func fill(img *Image, c effects.Color) {
	w, h := img.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
}

// verticalEdge is black on the left half and white on the right.
func verticalEdge(w, h int) *Image {
	img := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := effects.RGB(0, 0, 0)
			if x >= w/2 {
				c = effects.RGB(1, 1, 1)
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestImageSampleClampToEdge(t *testing.T) {
	img := NewImage(2, 1)
	img.Set(0, 0, effects.RGB(0, 0, 0))
	img.Set(1, 0, effects.RGB(1, 1, 1))

	tests := []struct {
		u    float64
		want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0},
		{0.5, 0.5},
		{0.75, 1},
		{1, 1},
		{2, 1},
	}
	for _, tt := range tests {
		if got := img.Sample(tt.u, 0.5).R; math.Abs(got-tt.want) > tolerance {
			t.Errorf("Sample(%v, 0.5).R = %v, want %v", tt.u, got, tt.want)
		}
	}
}

func TestImageResize(t *testing.T) {
	img := NewImage(4, 4)
	fill(img, effects.RGB(1, 1, 1))
	img.Resize(2, 3)
	if w, h := img.Size(); w != 2 || h != 3 {
		t.Fatalf("Size() = %dx%d, want 2x3", w, h)
	}
	if len(img.Pix) != 4*2*3 {
		t.Errorf("len(Pix) = %d, want %d", len(img.Pix), 4*2*3)
	}
	if img.At(1, 2) != (effects.Color{}) {
		t.Errorf("At(1,2) = %+v after resize, want cleared", img.At(1, 2))
	}
}

func TestLoadRGBAAndBack(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	src.SetRGBA(2, 1, color.RGBA{10, 128, 200, 255})

	img := NewImage(3, 2)
	img.LoadRGBA(src)
	out := img.RGBA()
	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("RGBA().Pix[%d] = %d, want %d", i, out.Pix[i], src.Pix[i])
		}
	}
}

func TestRunCoversEveryPixel(t *testing.T) {
	img := NewImage(7, 13)
	err := run(img, func(u, v float64) effects.Color {
		return effects.Color{R: u, G: v, A: 1}
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for y := 0; y < 13; y++ {
		for x := 0; x < 7; x++ {
			want := effects.Color{R: (float64(x) + 0.5) / 7, G: (float64(y) + 0.5) / 13, A: 1}
			if got := img.At(x, y); !near(got, want) {
				t.Fatalf("At(%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestWatercolorPassMatchesShade(t *testing.T) {
	const w, h = 16, 12
	pp := paper.Generate(32, rand.New(rand.NewSource(11)))
	src := verticalEdge(w, h)
	dst := NewImage(w, h)

	pass := NewWatercolorPass(effects.WatercolorParams{Pigment: 2, Threshold: 0.3})
	pass.SetResolution(effects.NewResolution(w, h))
	out, err := pass.Render(dst, src, pp)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != dst {
		t.Fatal("Render() did not write the destination")
	}

	shader := effects.Watercolor{Params: pass.Params(), Texel: effects.NewResolution(w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			u := (float64(x) + 0.5) / w
			v := (float64(y) + 0.5) / h
			if got, want := dst.At(x, y), shader.Shade(src, pp, u, v); !near(got, want) {
				t.Fatalf("pixel (%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestPencilPassDrawsEdges(t *testing.T) {
	const w, h = 16, 16
	pp := paper.Generate(32, rand.New(rand.NewSource(3)))
	src := verticalEdge(w, h)
	dst := NewImage(w, h)

	params := effects.DefaultPencilParams()
	params.Thickness = 1
	params.Sensitivity = 0.5
	pass := NewPencilPass(params)
	pass.SetResolution(effects.NewResolution(w, h))
	if _, err := pass.Render(dst, src, pp); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for y := 2; y < h-2; y++ {
		if got := dst.At(w/2-1, y); got.R > params.Color.R+tolerance {
			t.Errorf("edge pixel (%d,%d) = %+v, want pencil color", w/2-1, y, got)
		}
		if got := dst.At(2, y); !near(got, params.Background) {
			t.Errorf("flat pixel (2,%d) = %+v, want background", y, got)
		}
	}
}

func TestPassesForwardWithoutPaper(t *testing.T) {
	src := NewImage(4, 4)
	dst := NewImage(4, 4)
	wc := NewWatercolorPass(effects.DefaultWatercolorParams())
	pc := NewPencilPass(effects.DefaultPencilParams())

	for name, render := range map[string]func() (any, error){
		"watercolor": func() (any, error) { return wc.Render(dst, src, nil) },
		"pencil":     func() (any, error) { return pc.Render(dst, src, nil) },
	} {
		out, err := render()
		if err != nil {
			t.Errorf("%s Render() error = %v", name, err)
		}
		if out != any(src) {
			t.Errorf("%s Render() without paper did not forward its input", name)
		}
	}
}

type flatScene struct{ c color.RGBA }

func (s flatScene) Draw(dst *image.RGBA) {
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = s.c.R, s.c.G, s.c.B, s.c.A
	}
}

func TestBackendDrawScene(t *testing.T) {
	b := New(flatScene{color.RGBA{51, 102, 153, 255}})
	target, err := b.NewTarget(5, 3)
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}
	if err := b.DrawScene(target); err != nil {
		t.Fatalf("DrawScene() error = %v", err)
	}
	want := effects.RGB(0.2, 0.4, 0.6)
	if got := target.(*Image).At(4, 2); !near(got, want) {
		t.Errorf("At(4,2) = %+v, want %+v", got, want)
	}
	if _, err := b.NewTarget(0, 3); err == nil {
		t.Error("NewTarget(0, 3) succeeded")
	}
}

// edgeScene draws a dark square on a light background so both passes have
// structure to work on.
type edgeScene struct{}

func (edgeScene) Draw(dst *image.RGBA) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBA{230, 230, 230, 255}
			if x >= b.Dx()/4 && x < 3*b.Dx()/4 && y >= b.Dy()/4 && y < 3*b.Dy()/4 {
				c = color.RGBA{40, 60, 80, 255}
			}
			dst.SetRGBA(x, y, c)
		}
	}
}

func renderChain(t *testing.T, pp *paper.Texture, ids []string, disable string) []float32 {
	t.Helper()
	b := New(edgeScene{})
	c, err := chain.New(b, pp, 24, 16)
	if err != nil {
		t.Fatalf("chain.New() error = %v", err)
	}
	defer c.Close()
	for _, id := range ids {
		var p chain.Pass
		switch id {
		case effects.WatercolorID:
			p, _ = b.NewWatercolorPass(effects.DefaultWatercolorParams())
		case effects.PencilID:
			p, _ = b.NewPencilPass(effects.DefaultPencilParams())
		}
		if err := c.AddPass(p, id != disable); err != nil {
			t.Fatalf("AddPass(%s) error = %v", id, err)
		}
	}
	out, err := c.RenderFrame()
	if err != nil {
		t.Fatalf("RenderFrame() error = %v", err)
	}
	return append([]float32(nil), out.(*Image).Pix...)
}

func TestDisabledPassMatchesRemovedPixels(t *testing.T) {
	pp := paper.Generate(32, rand.New(rand.NewSource(5)))
	both := []string{effects.WatercolorID, effects.PencilID}
	tests := []struct {
		disable string
		kept    []string
	}{
		{effects.PencilID, []string{effects.WatercolorID}},
		{effects.WatercolorID, []string{effects.PencilID}},
	}
	for _, tt := range tests {
		t.Run(tt.disable, func(t *testing.T) {
			disabled := renderChain(t, pp, both, tt.disable)
			removed := renderChain(t, pp, tt.kept, "")
			if len(disabled) != len(removed) {
				t.Fatalf("pixel count = %d, want %d", len(disabled), len(removed))
			}
			for i := range disabled {
				if math.Abs(float64(disabled[i]-removed[i])) > tolerance {
					t.Fatalf("Pix[%d] = %v with %s disabled, want %v as if removed", i, disabled[i], tt.disable, removed[i])
				}
			}
		})
	}
}
