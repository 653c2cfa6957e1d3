// Package scene is the base render of the effect chain: a flat background
// with an optional model centred in the viewport.
package scene

import (
	"image"
	"image/draw"
	"sync"

	"github.com/richinsley/gosketch/effects"
	xdraw "golang.org/x/image/draw"
)

// DefaultBackground is the clear color of an empty scene.
var DefaultBackground = effects.MustParseColor("#f0f0f0")

// Fill is the fraction of the viewport's smaller side the model is scaled to.
const Fill = 0.8

// Scene holds what the base pass draws. Insert and Clear may be called from
// any goroutine; the new content appears in the next Draw.
type Scene struct {
	mu         sync.RWMutex
	background effects.Color
	model      image.Image
	scaled     *image.RGBA
	scaledFor  image.Point
}

// New returns an empty scene.
func New(background effects.Color) *Scene {
	return &Scene{background: background}
}

// Background returns the clear color.
func (s *Scene) Background() effects.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.background
}

// SetBackground changes the clear color.
func (s *Scene) SetBackground(c effects.Color) {
	s.mu.Lock()
	s.background = c
	s.mu.Unlock()
}

// Insert replaces the model.
func (s *Scene) Insert(model image.Image) {
	s.mu.Lock()
	s.model = model
	s.scaled = nil
	s.mu.Unlock()
}

// Clear removes the model.
func (s *Scene) Clear() { s.Insert(nil) }

// HasModel reports whether a model has been inserted.
func (s *Scene) HasModel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// Draw clears dst to the background and composites the model over it,
// preserving its aspect ratio.
func (s *Scene) Draw(dst *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bg := s.background.NRGBA()
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	if s.model == nil {
		return
	}

	size := dst.Bounds().Size()
	if s.scaled == nil || s.scaledFor != size {
		s.scaled = fit(s.model, size)
		s.scaledFor = size
	}
	if s.scaled == nil {
		return
	}

	sb := s.scaled.Bounds()
	offset := image.Pt((size.X-sb.Dx())/2, (size.Y-sb.Dy())/2).Add(dst.Bounds().Min)
	draw.Draw(dst, sb.Add(offset), s.scaled, image.Point{}, draw.Over)
}

// fit scales model to Fill of the viewport's limiting dimension.
func fit(model image.Image, viewport image.Point) *image.RGBA {
	mb := model.Bounds()
	if mb.Empty() || viewport.X <= 0 || viewport.Y <= 0 {
		return nil
	}
	k := min(float64(viewport.X)/float64(mb.Dx()), float64(viewport.Y)/float64(mb.Dy())) * Fill
	w := max(1, int(float64(mb.Dx())*k))
	h := max(1, int(float64(mb.Dy())*k))

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), model, mb, xdraw.Src, nil)
	return out
}
