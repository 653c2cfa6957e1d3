// Package panel is the HTTP control panel of a viewing session. Parameter
// and toggle changes apply from the next frame; there is no apply step.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/richinsley/gosketch/assets"
	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/viewer"
)

// Session is the part of viewer.Session the panel drives.
type Session interface {
	Params() viewer.Params
	UpdateParams(func(viewer.Params) viewer.Params) viewer.Params
	Background() effects.Color
	SetBackground(effects.Color)
	SetEnabled(id string, enabled bool) error
	Passes() []chain.PassState
	Resize(width, height int)
	Size() (int, int)
	Asset() viewer.AssetStatus
	Load(ctx context.Context, url string) *assets.Task
}

// FrameSource renders the current frame. It must be safe to call from an
// HTTP goroutine, which rules out the GL backend.
type FrameSource func() (image.Image, error)

// Server serves the panel API.
type Server struct {
	session Session
	frames  FrameSource
	logger  *log.Logger
	ctx     context.Context
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithFrames enables GET /frame.png.
func WithFrames(f FrameSource) Option {
	return func(s *Server) { s.frames = f }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the router. Model loads started through the panel live as long
// as ctx, not the request.
func New(ctx context.Context, session Session, opts ...Option) *Server {
	s := &Server{session: session, logger: log.Default(), ctx: ctx}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/params", s.getParams)
		r.Patch("/params", s.patchParams)
		r.Get("/passes", s.getPasses)
		r.Put("/passes/{id}", s.putPass)
		r.Get("/size", s.getSize)
		r.Post("/resize", s.postResize)
		r.Get("/asset", s.getAsset)
		r.Post("/asset", s.postAsset)
		r.Get("/ranges", s.getRanges)
		r.Get("/scene", s.getScene)
		r.Put("/scene", s.putScene)
	})
	if s.frames != nil {
		r.Get("/frame.png", s.getFrame)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("control panel listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type watercolorPatch struct {
	Pigment   *float64 `json:"pigment"`
	Threshold *float64 `json:"threshold"`
}

type pencilPatch struct {
	Thickness   *float64       `json:"thickness"`
	Sensitivity *float64       `json:"sensitivity"`
	Color       *effects.Color `json:"color"`
	Background  *effects.Color `json:"background"`
}

// paramsPatch changes only the fields present in the request body.
type paramsPatch struct {
	Watercolor *watercolorPatch `json:"watercolor"`
	Pencil     *pencilPatch     `json:"pencil"`
}

func (p paramsPatch) apply(cur viewer.Params) viewer.Params {
	if w := p.Watercolor; w != nil {
		setFloat(&cur.Watercolor.Pigment, w.Pigment)
		setFloat(&cur.Watercolor.Threshold, w.Threshold)
	}
	if pc := p.Pencil; pc != nil {
		setFloat(&cur.Pencil.Thickness, pc.Thickness)
		setFloat(&cur.Pencil.Sensitivity, pc.Sensitivity)
		if pc.Color != nil {
			cur.Pencil.Color = *pc.Color
		}
		if pc.Background != nil {
			cur.Pencil.Background = *pc.Background
		}
	}
	return cur
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func (s *Server) getParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Params())
}

func (s *Server) patchParams(w http.ResponseWriter, r *http.Request) {
	var patch paramsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	applied := s.session.UpdateParams(patch.apply)
	writeJSON(w, http.StatusOK, applied)
}

func (s *Server) getPasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Passes())
}

func (s *Server) putPass(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing "enabled"`))
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.session.SetEnabled(id, *body.Enabled); err != nil {
		if errors.Is(err, chain.ErrUnknownPass) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, chain.PassState{ID: id, Enabled: *body.Enabled})
}

type size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Server) getSize(w http.ResponseWriter, r *http.Request) {
	width, height := s.session.Size()
	writeJSON(w, http.StatusOK, size{Width: width, Height: height})
}

func (s *Server) postResize(w http.ResponseWriter, r *http.Request) {
	var body size
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Width <= 0 || body.Height <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid viewport %dx%d", body.Width, body.Height))
		return
	}
	s.session.Resize(body.Width, body.Height)
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Asset())
}

func (s *Server) postAsset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New(`missing "url"`))
		return
	}
	s.session.Load(s.ctx, body.URL)
	writeJSON(w, http.StatusAccepted, s.session.Asset())
}

type sceneState struct {
	Background *effects.Color `json:"background"`
}

func (s *Server) getScene(w http.ResponseWriter, r *http.Request) {
	bg := s.session.Background()
	writeJSON(w, http.StatusOK, sceneState{Background: &bg})
}

func (s *Server) putScene(w http.ResponseWriter, r *http.Request) {
	var body sceneState
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Background == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing "background"`))
		return
	}
	s.session.SetBackground(*body.Background)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) getRanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]map[string]effects.Range{
		effects.WatercolorID: {
			"pigment":   effects.PigmentRange,
			"threshold": effects.ThresholdRange,
		},
		effects.PencilID: {
			"thickness":   effects.ThicknessRange,
			"sensitivity": effects.SensitivityRange,
		},
	})
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	img, err := s.frames()
	if err != nil {
		s.logger.Error("frame render failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("frame encode failed", "err", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
