package cli

import (
	"fmt"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/glfwcontext"
	"github.com/richinsley/gosketch/panel"
	"github.com/richinsley/gosketch/renderer"
	"github.com/richinsley/gosketch/scene"
	"github.com/richinsley/gosketch/viewer"
	"github.com/spf13/cobra"
)

func (a *app) viewCommand() *cobra.Command {
	var withPanel bool
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the interactive GL viewer",
		Long: `Open a window rendering the scene through the effect chain on the GPU.

Keys: W toggles the watercolor pass, P toggles the pencil-lines pass,
S saves the current frame as a PNG in the working directory, Esc quits.
With --panel the HTTP control panel runs alongside the window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if err := glfwcontext.InitGraphics(); err != nil {
				return fmt.Errorf("failed to initialize glfw: %w", err)
			}
			defer glfwcontext.TerminateGraphics()

			win, err := glfwcontext.New(a.opts.Width, a.opts.Height, appName, true)
			if err != nil {
				return fmt.Errorf("failed to create window: %w", err)
			}
			defer win.Shutdown()
			win.MakeCurrent()

			sc := scene.New(a.opts.Scene.Background)
			backend, err := renderer.NewBackend(sc)
			if err != nil {
				return err
			}

			// HiDPI framebuffers are larger than the requested window.
			opts := *a.opts
			opts.Width, opts.Height = win.GetFramebufferSize()

			c := a.openCache(ctx)
			defer c.Close()
			sess, err := viewer.New(backend, sc, &opts,
				viewer.WithLogger(logger),
				viewer.WithLoader(a.newLoader(ctx, c)),
			)
			if err != nil {
				backend.Destroy()
				return err
			}
			defer sess.Close()

			r, err := renderer.New(win, backend, sess, sess.Logger())
			if err != nil {
				backend.Destroy()
				return err
			}
			defer r.Shutdown()

			win.OnResize(sess.Resize)
			for key, id := range map[glfw.Key]string{
				glfw.KeyW: effects.WatercolorID,
				glfw.KeyP: effects.PencilID,
			} {
				win.RegisterKeyCallback(key, func() {
					if _, err := sess.Toggle(id); err != nil {
						logger.Warn("toggle failed", "pass", id, "err", err)
					}
				})
			}

			win.RegisterKeyCallback(glfw.KeyS, func() {
				img, err := r.Capture()
				if err != nil {
					logger.Warn("screenshot failed", "err", err)
					return
				}
				path := fmt.Sprintf("%s-%s.png", appName, time.Now().Format("20060102-150405"))
				if err := writeImage(path, img); err != nil {
					logger.Warn("screenshot failed", "err", err)
					return
				}
				logger.Info("screenshot saved", "path", path)
			})

			if a.opts.Scene.Model != "" {
				sess.Load(ctx, a.opts.Scene.Model)
			}
			if withPanel {
				srv := panel.New(ctx, sess, panel.WithLogger(sess.Logger()))
				go func() {
					if err := srv.ListenAndServe(ctx, a.opts.Panel.Listen); err != nil {
						logger.Error("control panel stopped", "err", err)
					}
				}()
			}

			logger.Info("viewer running", "session", sess.ID(), "width", opts.Width, "height", opts.Height)
			return r.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&withPanel, "panel", false, "serve the control panel alongside the window")
	return cmd
}
