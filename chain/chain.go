// Package chain composes full-screen passes into an ordered effect chain.
//
// The chain owns the render targets, the shared paper texture and the
// viewport resolution. It is backend agnostic: the software backend renders
// into float images, the GL backend into framebuffer objects.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/paper"
)

var (
	// ErrUnknownPass is returned by SetEnabled for an id that is not in the chain.
	ErrUnknownPass = errors.New("unknown pass")
	// ErrDuplicatePass is returned by AddPass when the id is already taken.
	ErrDuplicatePass = errors.New("duplicate pass")
)

// Target is an offscreen color buffer owned by a backend.
type Target interface {
	Size() (int, int)
}

// Texture is a read-only texture bound to a backend, such as the paper mask.
type Texture interface {
	Size() (int, int)
}

// Backend allocates targets and rasterizes the scene into the first one.
type Backend interface {
	NewTarget(width, height int) (Target, error)
	ResizeTarget(t Target, width, height int) error
	ReleaseTarget(t Target)
	UploadPaper(p *paper.Texture) (Texture, error)
	ReleaseTexture(t Texture)
	DrawScene(dst Target) error
}

// Pass is one full-screen stage. Render draws src into dst and returns the
// target holding its output; returning src signals a pass-through, which is
// what a pass does when its paper binding is missing.
type Pass interface {
	ID() string
	Render(dst, src Target, paper Texture) (Target, error)
}

// ResolutionDependent is implemented by passes that sample neighbouring texels.
type ResolutionDependent interface {
	SetResolution(res effects.Resolution)
}

// PassState describes one pass for the control panel.
type PassState struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

type stage struct {
	pass    Pass
	enabled bool
	target  Target
}

// Chain runs the scene render followed by every enabled pass, in order.
// All methods are safe for concurrent use; changes made while a frame is
// rendering take effect from the next frame.
type Chain struct {
	mu      sync.Mutex
	backend Backend
	paper   Texture
	logger  *log.Logger

	scene  Target
	stages []*stage

	width, height int
	pending       *[2]int
	resolution    effects.Resolution
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger used for recovered pass failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a chain for a width x height viewport. The paper texture is
// uploaded once; a nil paper leaves the passes unbound, which they render
// as a pass-through.
func New(backend Backend, p *paper.Texture, width, height int, opts ...Option) (*Chain, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", width, height)
	}
	c := &Chain{
		backend:    backend,
		logger:     log.Default(),
		width:      width,
		height:     height,
		resolution: effects.NewResolution(width, height),
	}
	for _, opt := range opts {
		opt(c)
	}

	if p != nil {
		tex, err := backend.UploadPaper(p)
		if err != nil {
			c.logger.Warn("paper texture unavailable, passes will pass through", "err", err)
		} else {
			c.paper = tex
		}
	}

	scene, err := backend.NewTarget(width, height)
	if err != nil {
		c.release()
		return nil, fmt.Errorf("failed to create scene target: %w", err)
	}
	c.scene = scene
	return c, nil
}

// AddPass appends a pass after the scene render and the passes already added.
func (c *Chain) AddPass(p Pass, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.stages {
		if s.pass.ID() == p.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicatePass, p.ID())
		}
	}
	target, err := c.backend.NewTarget(c.width, c.height)
	if err != nil {
		return fmt.Errorf("failed to create target for pass %s: %w", p.ID(), err)
	}
	if rd, ok := p.(ResolutionDependent); ok {
		rd.SetResolution(c.resolution)
	}
	c.stages = append(c.stages, &stage{pass: p, enabled: enabled, target: target})
	return nil
}

// SetEnabled toggles a pass without rebuilding the chain.
func (c *Chain) SetEnabled(id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.stages {
		if s.pass.ID() == id {
			s.enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownPass, id)
}

// Enabled reports whether the pass is enabled.
func (c *Chain) Enabled(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.stages {
		if s.pass.ID() == id {
			return s.enabled, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownPass, id)
}

// Passes lists the passes in render order.
func (c *Chain) Passes() []PassState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PassState, len(c.stages))
	for i, s := range c.stages {
		out[i] = PassState{ID: s.pass.ID(), Enabled: s.enabled}
	}
	return out
}

// Resize records a new viewport size. It is applied at the start of the next
// RenderFrame, so a frame never observes a half-applied resize.
func (c *Chain) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		c.logger.Warn("ignoring invalid viewport size", "width", width, "height", height)
		return
	}
	c.mu.Lock()
	c.pending = &[2]int{width, height}
	c.mu.Unlock()
}

// Size returns the viewport size the next frame will render at.
func (c *Chain) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return c.pending[0], c.pending[1]
	}
	return c.width, c.height
}

// Resolution returns the resolution seen by the passes in the last frame.
func (c *Chain) Resolution() effects.Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolution
}

// Do runs fn between frames. Use it to change pass parameters atomically
// with respect to rendering.
func (c *Chain) Do(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// RenderFrame applies any pending resize, renders the scene and runs every
// enabled pass. A disabled pass is skipped and its input forwarded. A pass
// that fails is logged and treated as disabled for this frame.
func (c *Chain) RenderFrame() (Target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyResize(); err != nil {
		return nil, err
	}

	if err := c.backend.DrawScene(c.scene); err != nil {
		return nil, fmt.Errorf("failed to draw scene: %w", err)
	}

	current := c.scene
	for _, s := range c.stages {
		if !s.enabled {
			continue
		}
		out, err := s.pass.Render(s.target, current, c.paper)
		if err != nil {
			c.logger.Warn("pass failed, forwarding its input", "pass", s.pass.ID(), "err", err)
			continue
		}
		current = out
	}
	return current, nil
}

func (c *Chain) applyResize() error {
	if c.pending == nil {
		return nil
	}
	width, height := c.pending[0], c.pending[1]
	if width == c.width && height == c.height {
		c.pending = nil
		return nil
	}

	targets := make([]Target, 0, len(c.stages)+1)
	targets = append(targets, c.scene)
	for _, s := range c.stages {
		targets = append(targets, s.target)
	}
	for i, t := range targets {
		if err := c.backend.ResizeTarget(t, width, height); err != nil {
			// Every target keeps the current size; the resize stays pending.
			for _, done := range targets[:i] {
				if rerr := c.backend.ResizeTarget(done, c.width, c.height); rerr != nil {
					c.logger.Error("failed to restore target size", "err", rerr)
				}
			}
			return fmt.Errorf("failed to resize targets to %dx%d: %w", width, height, err)
		}
	}

	c.pending = nil
	c.width, c.height = width, height
	c.resolution = effects.NewResolution(width, height)
	for _, s := range c.stages {
		if rd, ok := s.pass.(ResolutionDependent); ok {
			rd.SetResolution(c.resolution)
		}
	}
	c.logger.Debug("viewport resized", "width", width, "height", height)
	return nil
}

// Close releases every target and the paper texture.
func (c *Chain) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
}

func (c *Chain) release() {
	for _, s := range c.stages {
		c.backend.ReleaseTarget(s.target)
	}
	c.stages = nil
	if c.scene != nil {
		c.backend.ReleaseTarget(c.scene)
		c.scene = nil
	}
	if c.paper != nil {
		c.backend.ReleaseTexture(c.paper)
		c.paper = nil
	}
}
