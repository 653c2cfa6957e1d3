package software

import (
	"fmt"
	"image"
	"runtime"

	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/paper"
	"golang.org/x/sync/errgroup"
)

// Scene rasterizes the frame's base image.
type Scene interface {
	Draw(dst *image.RGBA)
}

// Backend implements chain.Factory on the CPU.
type Backend struct {
	scene   Scene
	staging *image.RGBA
}

var _ chain.Factory = (*Backend)(nil)

// New returns a backend that draws scene into the first target of each frame.
func New(scene Scene) *Backend {
	return &Backend{scene: scene}
}

func (b *Backend) NewTarget(width, height int) (chain.Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return NewImage(width, height), nil
}

func (b *Backend) ResizeTarget(t chain.Target, width, height int) error {
	img, ok := t.(*Image)
	if !ok {
		return fmt.Errorf("target %T does not belong to the software backend", t)
	}
	img.Resize(width, height)
	return nil
}

func (b *Backend) ReleaseTarget(chain.Target) {}

// UploadPaper binds the paper directly; *paper.Texture already samples with
// repeat wrapping.
func (b *Backend) UploadPaper(p *paper.Texture) (chain.Texture, error) {
	return p, nil
}

func (b *Backend) ReleaseTexture(chain.Texture) {}

func (b *Backend) DrawScene(dst chain.Target) error {
	img, ok := dst.(*Image)
	if !ok {
		return fmt.Errorf("target %T does not belong to the software backend", dst)
	}
	w, h := img.Size()
	if b.staging == nil || b.staging.Bounds().Dx() != w || b.staging.Bounds().Dy() != h {
		b.staging = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	b.scene.Draw(b.staging)
	img.LoadRGBA(b.staging)
	return nil
}

// NewWatercolorPass returns a CPU watercolor pass.
func (b *Backend) NewWatercolorPass(p effects.WatercolorParams) (chain.WatercolorPass, error) {
	return NewWatercolorPass(p), nil
}

// NewPencilPass returns a CPU pencil-lines pass.
func (b *Backend) NewPencilPass(p effects.PencilParams) (chain.PencilPass, error) {
	return NewPencilPass(p), nil
}

// shadeFunc computes one output pixel from normalized coordinates.
type shadeFunc func(u, v float64) effects.Color

// run shades every pixel of dst, splitting rows into bands across goroutines.
func run(dst *Image, shade shadeFunc) error {
	w, h := dst.Size()
	workers := runtime.GOMAXPROCS(0)
	band := max(1, (h+workers-1)/workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for y0 := 0; y0 < h; y0 += band {
		y1 := min(y0+band, h)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				v := (float64(y) + 0.5) / float64(h)
				for x := 0; x < w; x++ {
					u := (float64(x) + 0.5) / float64(w)
					dst.Set(x, y, shade(u, v))
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// bind resolves the chain's typed arguments to software images.
func bind(dst, src chain.Target, tex chain.Texture) (*Image, *Image, effects.Sampler, error) {
	d, ok := dst.(*Image)
	if !ok {
		return nil, nil, nil, fmt.Errorf("destination %T does not belong to the software backend", dst)
	}
	s, ok := src.(*Image)
	if !ok {
		return nil, nil, nil, fmt.Errorf("source %T does not belong to the software backend", src)
	}
	if tex == nil {
		return d, s, nil, nil
	}
	p, ok := tex.(effects.Sampler)
	if !ok {
		return d, s, nil, nil
	}
	return d, s, p, nil
}
