// Package viewer wires one viewing session together: the scene, the paper,
// the effect chain and its two stylization passes, and the asset loader.
// Frontends (GL window, HTTP panel, offline renderer) drive a Session.
package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/richinsley/gosketch/assets"
	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/options"
	"github.com/richinsley/gosketch/paper"
	"github.com/richinsley/gosketch/scene"
)

// Params is the live-editable state of both passes.
type Params struct {
	Watercolor effects.WatercolorParams `json:"watercolor"`
	Pencil     effects.PencilParams     `json:"pencil"`
}

// AssetStatus reports the current model load.
type AssetStatus struct {
	URL      string  `json:"url,omitempty"`
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
	Loaded   bool    `json:"loaded"`
	Error    string  `json:"error,omitempty"`
}

// Session owns one effect chain and everything feeding it.
type Session struct {
	id     string
	logger *log.Logger

	scene      *scene.Scene
	chain      *chain.Chain
	watercolor chain.WatercolorPass
	pencil     chain.PencilPass
	loader     *assets.Loader

	mu   sync.Mutex
	task *assets.Task
}

type config struct {
	logger *log.Logger
	loader *assets.Loader
	paper  *paper.Texture
}

// Option configures a Session.
type Option func(*config)

func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithLoader sets the asset loader used by Load.
func WithLoader(l *assets.Loader) Option {
	return func(c *config) { c.loader = l }
}

// WithPaper uses p instead of generating a texture from the options.
func WithPaper(p *paper.Texture) Option {
	return func(c *config) { c.paper = p }
}

// New builds the chain scene -> watercolor -> pencil on backend. The backend
// must draw sc as its scene.
func New(backend chain.Factory, sc *scene.Scene, opts *options.Options, sopts ...Option) (*Session, error) {
	if opts == nil {
		opts = options.Default()
	}
	cfg := config{logger: log.Default()}
	for _, o := range sopts {
		o(&cfg)
	}

	s := &Session{
		id:    uuid.NewString(),
		scene: sc,
	}
	s.logger = cfg.logger.With("session", s.id)

	if cfg.paper == nil {
		cfg.paper = paper.New(paper.Options{Size: opts.Paper.Size, Seed: opts.Paper.Seed})
	}
	s.loader = cfg.loader
	if s.loader == nil {
		s.loader = assets.NewLoader(nil, assets.WithLogger(s.logger))
	}

	c, err := chain.New(backend, cfg.paper, opts.Width, opts.Height, chain.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	wc, err := backend.NewWatercolorPass(opts.Watercolor.WatercolorParams.Clamp())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create watercolor pass: %w", err)
	}
	pc, err := backend.NewPencilPass(opts.Pencil.PencilParams.Clamp())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create pencil pass: %w", err)
	}
	if err := c.AddPass(wc, opts.Watercolor.Enabled); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.AddPass(pc, opts.Pencil.Enabled); err != nil {
		c.Close()
		return nil, err
	}

	s.chain, s.watercolor, s.pencil = c, wc, pc
	s.logger.Debug("session created", "width", opts.Width, "height", opts.Height,
		"watercolor", opts.Watercolor.Enabled, "pencil", opts.Pencil.Enabled)
	return s, nil
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

func (s *Session) Logger() *log.Logger { return s.logger }

func (s *Session) Scene() *scene.Scene { return s.scene }

// Params returns the current pass parameters.
func (s *Session) Params() Params {
	var p Params
	s.chain.Do(func() {
		p.Watercolor = s.watercolor.Params()
		p.Pencil = s.pencil.Params()
	})
	return p
}

// SetParams clamps p and applies it from the next frame.
func (s *Session) SetParams(p Params) Params {
	return s.UpdateParams(func(Params) Params { return p })
}

// UpdateParams applies fn to the current parameters and stores the clamped
// result, all between two frames. Concurrent updates never overwrite each
// other's fields.
func (s *Session) UpdateParams(fn func(Params) Params) Params {
	var p Params
	s.chain.Do(func() {
		p = fn(Params{Watercolor: s.watercolor.Params(), Pencil: s.pencil.Params()})
		p.Watercolor = p.Watercolor.Clamp()
		p.Pencil = p.Pencil.Clamp()
		s.watercolor.SetParams(p.Watercolor)
		s.pencil.SetParams(p.Pencil)
	})
	return p
}

// Background returns the scene's clear color.
func (s *Session) Background() effects.Color { return s.scene.Background() }

// SetBackground changes the scene's clear color from the next frame.
func (s *Session) SetBackground(c effects.Color) {
	s.scene.SetBackground(c)
	s.logger.Info("scene background changed", "background", c.Hex())
}

// SetEnabled toggles a pass by id.
func (s *Session) SetEnabled(id string, enabled bool) error {
	if err := s.chain.SetEnabled(id, enabled); err != nil {
		return err
	}
	s.logger.Info("pass toggled", "pass", id, "enabled", enabled)
	return nil
}

// Toggle flips a pass and returns its new state.
func (s *Session) Toggle(id string) (bool, error) {
	on, err := s.chain.Enabled(id)
	if err != nil {
		return false, err
	}
	return !on, s.SetEnabled(id, !on)
}

func (s *Session) Passes() []chain.PassState { return s.chain.Passes() }

// Resize schedules a viewport change for the next frame.
func (s *Session) Resize(width, height int) { s.chain.Resize(width, height) }

// Size returns the viewport size of the next frame.
func (s *Session) Size() (int, int) { return s.chain.Size() }

func (s *Session) Resolution() effects.Resolution { return s.chain.Resolution() }

// RenderFrame renders one frame and returns the backend target holding it.
func (s *Session) RenderFrame() (chain.Target, error) {
	return s.chain.RenderFrame()
}

// Load fetches a model in the background and inserts it into the scene when
// it arrives. A load already in flight is cancelled. Frames keep rendering
// the current scene meanwhile; on failure the scene is left as it was.
func (s *Session) Load(ctx context.Context, url string) *assets.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		s.task.Cancel()
	}
	var t *assets.Task
	t = s.loader.Start(ctx, url, func(r assets.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Superseded loads never reach the scene.
		if s.task != t || r.Err != nil || r.Model == nil {
			return
		}
		s.scene.Insert(r.Model)
	})
	s.task = t
	return t
}

// Asset reports the state of the most recent Load.
func (s *Session) Asset() AssetStatus {
	s.mu.Lock()
	t := s.task
	s.mu.Unlock()
	if t == nil {
		return AssetStatus{Loaded: s.scene.HasModel()}
	}

	st := AssetStatus{URL: t.URL(), Progress: t.Progress()}
	if r, ok := t.Result(); ok {
		st.Done = true
		st.Loaded = r.Err == nil
		if r.Err != nil {
			st.Error = r.Err.Error()
		}
	}
	return st
}

// Close cancels any load and releases the chain's targets.
func (s *Session) Close() {
	s.mu.Lock()
	if s.task != nil {
		s.task.Cancel()
	}
	s.mu.Unlock()
	s.chain.Close()
}
