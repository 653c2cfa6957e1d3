package cli

import (
	"image"
	"sync"

	"github.com/richinsley/gosketch/panel"
	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control panel with a software renderer",
		Long:  `Serve the HTTP control panel. Every GET /frame.png renders a fresh frame with the current parameters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("listen") {
				a.opts.Panel.Listen = listen
			}

			sess, cleanup, err := a.softwareSession(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			if a.opts.Scene.Model != "" {
				sess.Load(ctx, a.opts.Scene.Model)
			}

			// The returned target is reused by the next frame, so rendering
			// and conversion happen under one lock.
			var mu sync.Mutex
			frames := func() (image.Image, error) {
				mu.Lock()
				defer mu.Unlock()
				out, err := sess.RenderFrame()
				if err != nil {
					return nil, err
				}
				img, err := frameImage(out)
				if err != nil {
					return nil, err
				}
				return img, nil
			}

			srv := panel.New(ctx, sess, panel.WithFrames(frames), panel.WithLogger(sess.Logger()))
			return srv.ListenAndServe(ctx, a.opts.Panel.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}
