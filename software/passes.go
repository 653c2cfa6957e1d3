package software

import (
	"sync"

	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
)

// WatercolorPass runs effects.Watercolor over every pixel.
type WatercolorPass struct {
	mu     sync.RWMutex
	params effects.WatercolorParams
	res    effects.Resolution
}

func NewWatercolorPass(p effects.WatercolorParams) *WatercolorPass {
	return &WatercolorPass{params: p}
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
	wc := effects.Watercolor{Params: p.params, Texel: p.res}
	p.mu.RUnlock()

	err = run(d, func(u, v float64) effects.Color {
		return wc.Shade(s, pp, u, v)
	})
	return dst, err
}

// PencilPass runs effects.Pencil over every pixel.
type PencilPass struct {
	mu     sync.RWMutex
	params effects.PencilParams
	res    effects.Resolution
}

func NewPencilPass(p effects.PencilParams) *PencilPass {
	return &PencilPass{params: p}
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
	pc := effects.Pencil{Params: p.params, Resolution: p.res}
	p.mu.RUnlock()

	err = run(d, func(u, v float64) effects.Color {
		return pc.Shade(s, pp, u, v)
	})
	return dst, err
}
