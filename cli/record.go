package cli

import (
	"fmt"

	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/encoder"
	"github.com/spf13/cobra"
)

func (a *app) recordCommand() *cobra.Command {
	var output string
	var frames int
	var sweep bool
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record frames to a video file through ffmpeg",
		Long:  `Render frames with the software backend and pipe them to ffmpeg. With --sweep the watercolor pigment ramps across its whole range over the recording.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			rec := a.opts.Record
			if cmd.Flags().Changed("output") {
				rec.Output = output
			}
			if cmd.Flags().Changed("frames") {
				rec.Frames = frames
			}
			if cmd.Flags().Changed("sweep") {
				rec.Sweep = sweep
			}
			if rec.Frames <= 0 {
				return fmt.Errorf("nothing to record: %d frames", rec.Frames)
			}

			sess, cleanup, err := a.softwareSession(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.loadModel(ctx, sess); err != nil {
				return err
			}

			r, err := encoder.Start(encoder.Config{
				Output:     rec.Output,
				FFmpegPath: rec.FFmpegPath,
				Codec:      rec.Codec,
				Width:      a.opts.Width,
				Height:     a.opts.Height,
				FPS:        rec.FPS,
				BitRate:    rec.BitRate,
				Quality:    rec.Quality,
			}, logger)
			if err != nil {
				return err
			}

			prog := newProgress(logger)
			for i := 0; i < rec.Frames; i++ {
				if err := ctx.Err(); err != nil {
					r.Close()
					return err
				}
				if rec.Sweep {
					p := sess.Params()
					p.Watercolor.Pigment = sweepPigment(i, rec.Frames)
					sess.SetParams(p)
				}
				out, err := sess.RenderFrame()
				if err != nil {
					r.Close()
					return fmt.Errorf("frame %d: %w", i, err)
				}
				img, err := frameImage(out)
				if err != nil {
					r.Close()
					return err
				}
				if err := r.WriteFrame(img); err != nil {
					r.Close()
					return err
				}
				logger.Debug("frame", "index", i)
			}
			if err := r.Close(); err != nil {
				return err
			}
			prog.done("recorded", "output", rec.Output, "frames", rec.Frames)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output video (default from config)")
	cmd.Flags().IntVar(&frames, "frames", 0, "number of frames")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "ramp the pigment across its range")
	return cmd
}

// sweepPigment ramps linearly from the minimum pigment at frame 0 to the
// maximum at the last frame.
func sweepPigment(frame, frames int) float64 {
	r := effects.PigmentRange
	if frames <= 1 {
		return r.Min
	}
	t := float64(frame) / float64(frames-1)
	return r.Clamp(r.Min + t*(r.Max-r.Min))
}
