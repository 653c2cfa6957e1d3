package renderer

import (
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/shader"
)

// WatercolorPass draws the watercolor shader. Parameters may be changed from
// any goroutine; Render must run on the GL thread.
type WatercolorPass struct {
	backend *Backend
	prog    *program

	mu     sync.RWMutex
	params effects.WatercolorParams
	res    effects.Resolution
}

func (p *WatercolorPass) ID() string { return effects.WatercolorID }

func (p *WatercolorPass) Params() effects.WatercolorParams {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

func (p *WatercolorPass) SetParams(params effects.WatercolorParams) {
	p.mu.Lock()
	p.params = params
	p.mu.Unlock()
}

func (p *WatercolorPass) SetResolution(r effects.Resolution) {
	p.mu.Lock()
	p.res = r
	p.mu.Unlock()
}

func (p *WatercolorPass) Render(dst, src chain.Target, paper chain.Texture) (chain.Target, error) {
	d, s, pp, err := bind(dst, src, paper)
	if err != nil {
		return nil, err
	}
	if pp == nil {
		return src, nil
	}

	p.mu.RLock()
	params, res := p.params, p.res
	p.mu.RUnlock()

	p.backend.draw(p.prog, d, s, pp, func() {
		setVec2(p.prog.loc(shader.Resolution), res.X, res.Y)
		setFloat(p.prog.loc(shader.Pigment), params.Pigment)
		setFloat(p.prog.loc(shader.Threshold), params.Threshold)
	})
	return dst, nil
}

// PencilPass draws the pencil-lines shader.
type PencilPass struct {
	backend *Backend
	prog    *program

	mu     sync.RWMutex
	params effects.PencilParams
	res    effects.Resolution
}

func (p *PencilPass) ID() string { return effects.PencilID }

func (p *PencilPass) Params() effects.PencilParams {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

func (p *PencilPass) SetParams(params effects.PencilParams) {
	p.mu.Lock()
	p.params = params
	p.mu.Unlock()
}

func (p *PencilPass) SetResolution(r effects.Resolution) {
	p.mu.Lock()
	p.res = r
	p.mu.Unlock()
}

func (p *PencilPass) Render(dst, src chain.Target, paper chain.Texture) (chain.Target, error) {
	d, s, pp, err := bind(dst, src, paper)
	if err != nil {
		return nil, err
	}
	if pp == nil {
		return src, nil
	}

	p.mu.RLock()
	params, res := p.params, p.res
	p.mu.RUnlock()

	p.backend.draw(p.prog, d, s, pp, func() {
		setVec2(p.prog.loc(shader.Resolution), res.X, res.Y)
		setFloat(p.prog.loc(shader.Thickness), params.Thickness)
		setFloat(p.prog.loc(shader.Sensitivity), params.Sensitivity)
		setColor(p.prog.loc(shader.Color), params.Color)
		setColor(p.prog.loc(shader.Background), params.Background)
	})
	return dst, nil
}

func setFloat(loc int32, v float64) {
	if loc != -1 {
		gl.Uniform1f(loc, float32(v))
	}
}

func setVec2(loc int32, x, y float64) {
	if loc != -1 {
		gl.Uniform2f(loc, float32(x), float32(y))
	}
}

func setColor(loc int32, c effects.Color) {
	if loc != -1 {
		gl.Uniform3f(loc, float32(c.R), float32(c.G), float32(c.B))
	}
}
