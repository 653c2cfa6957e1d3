package inputs

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gosketch/paper"
)

// ImageChannel is a static texture uploaded once, such as the paper mask.
type ImageChannel struct {
	textureID uint32
	width     int
	height    int
}

// NewPaperChannel uploads p with its wrap mode and linear filtering.
func NewPaperChannel(p *paper.Texture) (*ImageChannel, error) {
	if p == nil {
		return nil, fmt.Errorf("paper texture is nil")
	}
	rgba := p.Image()
	width, height := p.Size()

	var textureID uint32
	gl.GenTextures(1, &textureID)
	gl.BindTexture(gl.TEXTURE_2D, textureID)

	wrap := getWrapMode(p.Wrap())
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
	minFilter, magFilter := getFilterMode("linear")
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.RGBA8,
		int32(width),
		int32(height),
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(rgba.Pix),
	)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		gl.DeleteTextures(1, &textureID)
		return nil, fmt.Errorf("paper upload failed: GL error 0x%x", e)
	}
	return &ImageChannel{textureID: textureID, width: width, height: height}, nil
}

func (c *ImageChannel) TextureID() uint32 { return c.textureID }

func (c *ImageChannel) Size() (int, int) { return c.width, c.height }

func (c *ImageChannel) Destroy() {
	if c.textureID != 0 {
		gl.DeleteTextures(1, &c.textureID)
		c.textureID = 0
	}
}

var (
	_ Channel = (*ImageChannel)(nil)
	_ Channel = (*Buffer)(nil)
)
