package inputs

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gosketch/paper"
)

// getWrapMode converts a paper wrap mode to the GL constant.
func getWrapMode(wrap paper.WrapMode) int32 {
	switch wrap {
	case paper.WrapClamp:
		return gl.CLAMP_TO_EDGE
	default:
		return gl.REPEAT
	}
}

// getFilterMode converts a filter name to OpenGL min and mag filters.
func getFilterMode(filter string) (minFilter, magFilter int32) {
	switch filter {
	case "mipmap":
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
	case "nearest":
		return gl.NEAREST, gl.NEAREST
	default:
		return gl.LINEAR, gl.LINEAR
	}
}
