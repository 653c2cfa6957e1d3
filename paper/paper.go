// Package paper generates the synthetic paper grain shared by the
// stylization passes as a read-only mask.
package paper

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/gogpu/gg"
	"github.com/richinsley/gosketch/effects"
)

const (
	// DefaultSize is the edge length of the generated texture in pixels.
	DefaultSize = 512

	grainAmplitude = 15.0
	blotchCount    = 20
	blotchMinR     = 50.0
	blotchMaxR     = 150.0
	blotchOpacity  = 0.05
)

// WrapMode mirrors the GL texture wrap parameter.
type WrapMode int

const (
	WrapClamp WrapMode = iota
	WrapRepeat
)

func (w WrapMode) String() string {
	if w == WrapRepeat {
		return "repeat"
	}
	return "clamp"
}

// Options configures Generate.
type Options struct {
	Size int
	// Seed selects a reproducible texture. Zero seeds from the clock so each
	// session gets its own grain.
	Seed int64
}

// Texture is an immutable, tileable grayscale paper raster.
type Texture struct {
	img *image.RGBA
}

// New generates a texture from options.
func New(opts Options) *Texture {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Generate(size, rand.New(rand.NewSource(seed)))
}

// Generate fills a size x size raster with white, adds per-pixel grain in
// [-15, +15) and darkens 20 soft radial blotches. rng may be nil.
func Generate(size int, rng *rand.Rand) *Texture {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	buf := make([]float64, size*size)
	for i := range buf {
		grain := rng.Float64()*2*grainAmplitude - grainAmplitude
		buf[i] = math.Max(0, math.Min(255, 255+grain))
	}

	for i := 0; i < blotchCount; i++ {
		cx := rng.Float64() * float64(size)
		cy := rng.Float64() * float64(size)
		r := rng.Float64()*(blotchMaxR-blotchMinR) + blotchMinR
		darken(buf, size, cx, cy, r)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i, v := range buf {
		g := uint8(math.Round(v))
		o := i * 4
		img.Pix[o+0] = g
		img.Pix[o+1] = g
		img.Pix[o+2] = g
		img.Pix[o+3] = 255
	}
	return &Texture{img: img}
}

// darken composites a black radial gradient (alpha 0.05 at the centre, 0 at r)
// source-over the buffer. Each pixel is measured against the nearest periodic
// image of the centre, so blotches crossing an edge continue on the other side.
func darken(buf []float64, size int, cx, cy, r float64) {
	brush := gg.NewRadialGradientBrush(cx, cy, 0, r).
		AddColorStop(0, gg.RGBA2(0, 0, 0, blotchOpacity)).
		AddColorStop(1, gg.RGBA2(0, 0, 0, 0))

	xs := span(cx, r, size)
	ys := span(cy, r, size)
	for _, py := range ys {
		dy := wrapDelta(float64(py)+0.5-cy, size)
		for _, px := range xs {
			dx := wrapDelta(float64(px)+0.5-cx, size)
			if dx*dx+dy*dy >= r*r {
				continue
			}
			a := brush.ColorAt(cx+dx, cy+dy).A
			i := py*size + px
			buf[i] *= 1 - a
		}
	}
}

// span lists the pixel indices within r of c on a ring of the given size.
func span(c, r float64, size int) []int {
	lo := int(math.Floor(c - r))
	hi := int(math.Ceil(c + r))
	if hi-lo+1 >= size {
		out := make([]int, size)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		out = append(out, ((p%size)+size)%size)
	}
	return out
}

// wrapDelta maps d onto [-size/2, size/2).
func wrapDelta(d float64, size int) float64 {
	s := float64(size)
	d = math.Mod(d+s/2, s)
	if d < 0 {
		d += s
	}
	return d - s/2
}

// Size returns the edge length in pixels.
func (t *Texture) Size() (int, int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// Wrap is always repeat on both axes.
func (t *Texture) Wrap() WrapMode { return WrapRepeat }

// Image exposes the raster for upload. Callers must not modify it.
func (t *Texture) Image() *image.RGBA { return t.img }

// At returns the gray value at pixel (x, y), wrapping out-of-range coordinates.
func (t *Texture) At(x, y int) color.RGBA {
	w, h := t.Size()
	x = ((x % w) + w) % w
	y = ((y % h) + h) % h
	return t.img.RGBAAt(x, y)
}

// Sample filters bilinearly with repeat wrapping, matching a GL_LINEAR /
// GL_REPEAT sampler.
func (t *Texture) Sample(u, v float64) effects.Color {
	w, h := t.Size()
	x := u*float64(w) - 0.5
	y := v*float64(h) - 0.5
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	fx := x - x0
	fy := y - y0

	ix, iy := int(x0), int(y0)
	c00 := t.texel(ix, iy)
	c10 := t.texel(ix+1, iy)
	c01 := t.texel(ix, iy+1)
	c11 := t.texel(ix+1, iy+1)

	top := effects.Mix(c00, c10, fx)
	bottom := effects.Mix(c01, c11, fx)
	return effects.Mix(top, bottom, fy)
}

func (t *Texture) texel(x, y int) effects.Color {
	c := t.At(x, y)
	return effects.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

// WritePNG encodes the texture.
func (t *Texture) WritePNG(w io.Writer) error {
	return png.Encode(w, t.img)
}
