// Package software is a CPU backend for the effect chain. Targets are float
// RGBA images sampled exactly like a GL_LINEAR / GL_CLAMP_TO_EDGE texture, so
// its output matches the GL backend and runs without a display.
package software

import (
	"image"
	"math"

	"github.com/richinsley/gosketch/effects"
)

// Image is a float32 RGBA raster, the analogue of an RGBA32F framebuffer.
type Image struct {
	w, h int
	Pix  []float32
}

// NewImage allocates a transparent black width x height image.
func NewImage(width, height int) *Image {
	return &Image{w: width, h: height, Pix: make([]float32, 4*width*height)}
}

// Size returns the image dimensions.
func (m *Image) Size() (int, int) { return m.w, m.h }

// Resize reallocates the pixel storage when the dimensions change. Content is
// not preserved; the chain redraws every target each frame.
func (m *Image) Resize(width, height int) {
	if width == m.w && height == m.h {
		return
	}
	m.w, m.h = width, height
	n := 4 * width * height
	if cap(m.Pix) >= n {
		m.Pix = m.Pix[:n]
		clear(m.Pix)
		return
	}
	m.Pix = make([]float32, n)
}

// At returns the pixel at (x, y) with clamp-to-edge addressing.
func (m *Image) At(x, y int) effects.Color {
	x = min(max(x, 0), m.w-1)
	y = min(max(y, 0), m.h-1)
	o := 4 * (y*m.w + x)
	p := m.Pix[o : o+4 : o+4]
	return effects.Color{R: float64(p[0]), G: float64(p[1]), B: float64(p[2]), A: float64(p[3])}
}

// Set stores c at (x, y).
func (m *Image) Set(x, y int, c effects.Color) {
	o := 4 * (y*m.w + x)
	p := m.Pix[o : o+4 : o+4]
	p[0] = float32(c.R)
	p[1] = float32(c.G)
	p[2] = float32(c.B)
	p[3] = float32(c.A)
}

// Sample filters bilinearly at normalized (u, v). Texel centres sit at
// (x+0.5)/width; coordinates outside [0,1] clamp to the edge texels.
func (m *Image) Sample(u, v float64) effects.Color {
	x := u*float64(m.w) - 0.5
	y := v*float64(m.h) - 0.5
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	fx := x - x0
	fy := y - y0

	ix, iy := int(x0), int(y0)
	top := effects.Mix(m.At(ix, iy), m.At(ix+1, iy), fx)
	bottom := effects.Mix(m.At(ix, iy+1), m.At(ix+1, iy+1), fx)
	return effects.Mix(top, bottom, fy)
}

// LoadRGBA replaces the content with src, which must have the same size.
func (m *Image) LoadRGBA(src *image.RGBA) {
	b := src.Bounds()
	for y := 0; y < m.h && y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < m.w && x < b.Dx(); x++ {
			o := 4 * (y*m.w + x)
			s := row[4*x : 4*x+4 : 4*x+4]
			m.Pix[o+0] = float32(s[0]) / 255
			m.Pix[o+1] = float32(s[1]) / 255
			m.Pix[o+2] = float32(s[2]) / 255
			m.Pix[o+3] = float32(s[3]) / 255
		}
	}
}

// RGBA quantizes the image to 8 bits per channel.
func (m *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.w, m.h))
	for i, v := range m.Pix {
		out.Pix[i] = uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
	}
	return out
}
