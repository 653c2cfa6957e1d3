// Package renderer is the OpenGL backend of the effect chain and the
// interactive window loop that presents its output.
package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/inputs"
	"github.com/richinsley/gosketch/paper"
	"github.com/richinsley/gosketch/shader"
)

var (
	glInitOnce sync.Once
	glInitErr  error
)

// Scene rasterizes the frame's base image on the CPU; DrawScene uploads it.
type Scene interface {
	Draw(dst *image.RGBA)
}

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// Backend implements chain.Factory with framebuffer objects. Every method
// must run on the thread that owns the GL context.
type Backend struct {
	scene   Scene
	quadVAO uint32
	vbo     uint32
	staging *image.RGBA
	passes  []*program
}

var _ chain.Factory = (*Backend)(nil)

// NewBackend initializes the GL bindings for the current context and builds
// the full-screen quad.
func NewBackend(scene Scene) (*Backend, error) {
	glInitOnce.Do(func() {
		glInitErr = gl.Init()
	})
	if glInitErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", glInitErr)
	}

	b := &Backend{scene: scene}
	gl.GenVertexArrays(1, &b.quadVAO)
	gl.GenBuffers(1, &b.vbo)
	gl.BindVertexArray(b.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return b, nil
}

func (b *Backend) NewTarget(width, height int) (chain.Target, error) {
	buf, err := inputs.NewBuffer(width, height)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *Backend) ResizeTarget(t chain.Target, width, height int) error {
	buf, ok := t.(*inputs.Buffer)
	if !ok {
		return fmt.Errorf("target %T does not belong to the GL backend", t)
	}
	buf.Resize(width, height)
	return nil
}

func (b *Backend) ReleaseTarget(t chain.Target) {
	if buf, ok := t.(*inputs.Buffer); ok {
		buf.Destroy()
	}
}

// UploadPaper creates the paper texture with repeat wrapping.
func (b *Backend) UploadPaper(p *paper.Texture) (chain.Texture, error) {
	ch, err := inputs.NewPaperChannel(p)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *Backend) ReleaseTexture(t chain.Texture) {
	if ch, ok := t.(inputs.Channel); ok {
		ch.Destroy()
	}
}

// DrawScene rasterizes the scene into a staging image and uploads it.
func (b *Backend) DrawScene(dst chain.Target) error {
	buf, ok := dst.(*inputs.Buffer)
	if !ok {
		return fmt.Errorf("target %T does not belong to the GL backend", dst)
	}
	w, h := buf.Size()
	if b.staging == nil || b.staging.Bounds().Dx() != w || b.staging.Bounds().Dy() != h {
		b.staging = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	b.scene.Draw(b.staging)
	return buf.Upload(b.staging)
}

func (b *Backend) NewWatercolorPass(p effects.WatercolorParams) (chain.WatercolorPass, error) {
	prog, err := newPassProgram(shader.WatercolorFragmentShader(),
		shader.Source, shader.Paper, shader.Resolution, shader.Pigment, shader.Threshold)
	if err != nil {
		return nil, fmt.Errorf("watercolor: %w", err)
	}
	b.passes = append(b.passes, prog)
	return &WatercolorPass{backend: b, prog: prog, params: p}, nil
}

func (b *Backend) NewPencilPass(p effects.PencilParams) (chain.PencilPass, error) {
	prog, err := newPassProgram(shader.PencilFragmentShader(),
		shader.Source, shader.Paper, shader.Resolution, shader.Thickness, shader.Sensitivity,
		shader.Color, shader.Background)
	if err != nil {
		return nil, fmt.Errorf("pencil: %w", err)
	}
	b.passes = append(b.passes, prog)
	return &PencilPass{backend: b, prog: prog, params: p}, nil
}

// draw runs prog over dst with src on unit 0 and the paper on unit 1.
// setUniforms is called with the program in use.
func (b *Backend) draw(prog *program, dst *inputs.Buffer, src, paper inputs.Channel, setUniforms func()) {
	dst.Bind()
	gl.UseProgram(prog.id)
	setUniforms()

	for unit, ch := range []struct {
		name string
		tex  inputs.Channel
	}{{shader.Source, src}, {shader.Paper, paper}} {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, ch.tex.TextureID())
		if l := prog.loc(ch.name); l != -1 {
			gl.Uniform1i(l, int32(unit))
		}
	}

	gl.BindVertexArray(b.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)

	for unit := 1; unit >= 0; unit-- {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
	dst.Unbind()
}

// Destroy releases the quad and the pass programs. Targets and the paper are
// released by the chain.
func (b *Backend) Destroy() {
	for _, p := range b.passes {
		p.delete()
	}
	b.passes = nil
	gl.DeleteBuffers(1, &b.vbo)
	gl.DeleteVertexArrays(1, &b.quadVAO)
}

// bind resolves the chain's typed arguments to GL channels. A nil paper
// comes back as nil.
func bind(dst, src chain.Target, tex chain.Texture) (*inputs.Buffer, *inputs.Buffer, inputs.Channel, error) {
	d, ok := dst.(*inputs.Buffer)
	if !ok {
		return nil, nil, nil, fmt.Errorf("destination %T does not belong to the GL backend", dst)
	}
	s, ok := src.(*inputs.Buffer)
	if !ok {
		return nil, nil, nil, fmt.Errorf("source %T does not belong to the GL backend", src)
	}
	if tex == nil {
		return d, s, nil, nil
	}
	p, ok := tex.(inputs.Channel)
	if !ok {
		return d, s, nil, nil
	}
	return d, s, p, nil
}
