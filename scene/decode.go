package scene

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for model data no registered decoder recognises.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// Decoder turns fetched asset bytes into something the scene can draw.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// ImageDecoder decodes raster models: PNG, JPEG, GIF, WebP, BMP and TIFF.
type ImageDecoder struct{}

func (ImageDecoder) Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s model: %w", format, err)
	}
	return img, nil
}
