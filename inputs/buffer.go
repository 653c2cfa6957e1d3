package inputs

import (
	"fmt"
	"image"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// Buffer is one offscreen render target: a float texture attached to its own
// FBO. Texture row 0 holds image row 0, so the chain works top-down like the
// software backend and the final blit flips.
type Buffer struct {
	fbo       uint32
	textureID uint32
	width     int
	height    int
}

// NewBuffer creates the framebuffer and its color attachment.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	b := &Buffer{width: width, height: height}

	gl.GenTextures(1, &b.textureID)
	gl.BindTexture(gl.TEXTURE_2D, b.textureID)
	// Float storage keeps the intermediate passes from banding.
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, int32(width), int32(height), 0, gl.RGBA, gl.FLOAT, nil)

	minFilter, magFilter := getFilterMode("linear")
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	gl.GenFramebuffers(1, &b.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, b.textureID, 0)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		b.Destroy()
		return nil, fmt.Errorf("framebuffer is not complete: 0x%x", status)
	}
	return b, nil
}

// Bind makes the buffer the draw target and sets the viewport to cover it.
func (b *Buffer) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.Viewport(0, 0, int32(b.width), int32(b.height))
}

func (b *Buffer) Unbind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (b *Buffer) TextureID() uint32 { return b.textureID }

func (b *Buffer) Size() (int, int) { return b.width, b.height }

// Resize reallocates the texture storage. The content is undefined afterwards.
func (b *Buffer) Resize(width, height int) {
	if width == b.width && height == b.height {
		return
	}
	b.width, b.height = width, height
	gl.BindTexture(gl.TEXTURE_2D, b.textureID)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, int32(width), int32(height), 0, gl.RGBA, gl.FLOAT, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// Upload replaces the content with img, which must match the buffer size.
func (b *Buffer) Upload(img *image.RGBA) error {
	if s := img.Bounds().Size(); s.X != b.width || s.Y != b.height {
		return fmt.Errorf("upload of %dx%d image into %dx%d buffer", s.X, s.Y, b.width, b.height)
	}
	gl.BindTexture(gl.TEXTURE_2D, b.textureID)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(b.width), int32(b.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}

// ReadRGBA reads the buffer back into an 8-bit image, row 0 first.
func (b *Buffer) ReadRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(b.width), int32(b.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return img
}

func (b *Buffer) Destroy() {
	if b.fbo != 0 {
		gl.DeleteFramebuffers(1, &b.fbo)
		b.fbo = 0
	}
	if b.textureID != 0 {
		gl.DeleteTextures(1, &b.textureID)
		b.textureID = 0
	}
}
