// Package inputs holds the GL textures the passes read: render targets and
// the uploaded paper mask.
package inputs

// Channel is a GL texture a pass can bind to a sampler unit.
type Channel interface {
	// TextureID returns the OpenGL texture ID that should be bound.
	TextureID() uint32

	Size() (int, int)

	// Destroy releases any resources held by the channel.
	Destroy()
}
