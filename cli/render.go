package cli

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/richinsley/gosketch/chain"
	"github.com/richinsley/gosketch/paper"
	"github.com/richinsley/gosketch/software"
	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func (a *app) renderCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame with the software backend",
		Long:  `Render one frame of the scene through the enabled passes and write it as PNG, BMP or TIFF, chosen by the output extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			prog := newProgress(logger)

			sess, cleanup, err := a.softwareSession(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.loadModel(ctx, sess); err != nil {
				return err
			}

			out, err := sess.RenderFrame()
			if err != nil {
				return fmt.Errorf("render failed: %w", err)
			}
			img, err := frameImage(out)
			if err != nil {
				return err
			}
			if err := writeImage(output, img); err != nil {
				return err
			}
			prog.done("frame written", "output", output, "size", fmt.Sprintf("%dx%d", a.opts.Width, a.opts.Height))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "frame.png", "output image (.png, .bmp, .tif)")
	return cmd
}

func (a *app) paperCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Write the generated paper texture as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := paper.New(paper.Options{Size: a.opts.Paper.Size, Seed: a.opts.Paper.Seed})
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := p.WritePNG(f); err != nil {
				f.Close()
				return fmt.Errorf("failed to encode paper: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			size, _ := p.Size()
			loggerFromContext(cmd.Context()).Info("paper written", "output", output, "size", size, "seed", a.opts.Paper.Seed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "paper.png", "output PNG")
	return cmd
}

// frameImage converts a software frame target to an 8-bit image.
func frameImage(t chain.Target) (*image.RGBA, error) {
	img, ok := t.(*software.Image)
	if !ok {
		return nil, fmt.Errorf("frame target %T is not a software image", t)
	}
	return img.RGBA(), nil
}

// writeImage encodes img by the extension of path.
func writeImage(path string, img image.Image) error {
	var encode func(f *os.File) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".bmp":
		encode = func(f *os.File) error { return bmp.Encode(f, img) }
	case ".tif", ".tiff":
		encode = func(f *os.File) error { return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}) }
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
