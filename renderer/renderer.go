package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/charmbracelet/log"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/graphics"
	"github.com/richinsley/gosketch/inputs"
	"github.com/richinsley/gosketch/shader"
)

// Session is the part of viewer.Session the window loop drives.
type Session interface {
	RenderFrame() (chain.Target, error)
}

// Renderer presents a session's frames in a window.
type Renderer struct {
	context     graphics.Context
	backend     *Backend
	session     Session
	blitProgram uint32
	logger      *log.Logger
	last        *inputs.Buffer
}

// New builds the blit program. The context must be current and backend must
// be the one the session renders with.
func New(ctx graphics.Context, backend *Backend, session Session, logger *log.Logger) (*Renderer, error) {
	if logger == nil {
		logger = log.Default()
	}
	blit, err := newProgram(shader.VertexShader(), shader.BlitFragmentShader(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create blit program: %w", err)
	}
	return &Renderer{
		context:     ctx,
		backend:     backend,
		session:     session,
		blitProgram: blit,
		logger:      logger,
	}, nil
}

// Run renders until the window closes or ctx is done. Window resizes reach
// the session through the context's resize callback, not through Run.
func (r *Renderer) Run(ctx context.Context) error {
	var frames int64
	for !r.context.ShouldClose() {
		select {
		case <-ctx.Done():
			r.context.SetShouldClose(true)
			continue
		default:
		}

		out, err := r.session.RenderFrame()
		if err != nil {
			// Keep polling events; the chain retries a failed resize next frame.
			r.logger.Debug("frame skipped", "err", err)
			r.context.EndFrame()
			continue
		}
		buf, ok := out.(*inputs.Buffer)
		if !ok {
			return fmt.Errorf("frame target %T does not belong to the GL backend", out)
		}

		fbWidth, fbHeight := r.context.GetFramebufferSize()
		gl.Viewport(0, 0, int32(fbWidth), int32(fbHeight))
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.UseProgram(r.blitProgram)
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, buf.TextureID())
		gl.BindVertexArray(r.backend.quadVAO)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		gl.BindTexture(gl.TEXTURE_2D, 0)

		r.last = buf
		r.context.EndFrame()
		frames++
	}
	r.logger.Debug("render loop stopped", "frames", frames)
	return nil
}

// Capture reads back the last presented frame. Like every GL call it must run
// on the render thread, for example from a key callback.
func (r *Renderer) Capture() (*image.RGBA, error) {
	if r.last == nil {
		return nil, errors.New("no frame rendered yet")
	}
	return r.last.ReadRGBA(), nil
}

func (r *Renderer) Shutdown() {
	gl.DeleteProgram(r.blitProgram)
	r.backend.Destroy()
}
