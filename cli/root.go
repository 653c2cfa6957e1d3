package cli

import (
	"context"
	"fmt"

	"github.com/richinsley/gosketch/assets"
	"github.com/richinsley/gosketch/cache"
	"github.com/richinsley/gosketch/options"
	"github.com/richinsley/gosketch/scene"
	"github.com/richinsley/gosketch/software"
	"github.com/richinsley/gosketch/viewer"
	"github.com/spf13/cobra"
)

const appName = "gosketch"

// Execute runs the CLI until the command finishes or ctx is cancelled.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// app is the state shared by all commands: the config path, the flag
// overrides and, once PersistentPreRunE has run, the merged options.
type app struct {
	configPath string
	verbose    bool
	flags      flagValues
	opts       *options.Options
}

// flagValues holds option overrides. Only flags set on the command line are
// applied.
type flagValues struct {
	width, height int
	seed          int64
	paperSize     int
	model         string
	background    string
	watercolor    bool
	pencil        bool
	pigment       float64
	threshold     float64
	thickness     float64
	sensitivity   float64
	cacheKind     string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          appName,
		Short:        "Watercolor and pencil-sketch post-processing viewer",
		Long:         `gosketch renders a scene through a watercolor pass and a pencil-lines pass over a generated paper texture, in a window, offline, or behind an HTTP control panel.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts := options.Default()
			if a.configPath != "" {
				var err error
				if opts, err = options.Load(a.configPath); err != nil {
					return err
				}
			}
			if err := a.flags.apply(cmd.Flags().Changed, opts); err != nil {
				return err
			}
			opts.Clamp()
			a.opts = opts

			level := parseLevel(opts.LogLevel)
			if a.verbose {
				level = parseLevel("debug")
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML or TOML config file")
	pf.IntVar(&a.flags.width, "width", 0, "viewport width")
	pf.IntVar(&a.flags.height, "height", 0, "viewport height")
	pf.Int64Var(&a.flags.seed, "seed", 0, "paper seed (0 picks a new grain)")
	pf.IntVar(&a.flags.paperSize, "paper-size", 0, "paper texture edge length")
	pf.StringVar(&a.flags.model, "model", "", "model image URL or path")
	pf.StringVar(&a.flags.background, "background", "", "scene background color")
	pf.BoolVar(&a.flags.watercolor, "watercolor", true, "enable the watercolor pass")
	pf.BoolVar(&a.flags.pencil, "pencil", false, "enable the pencil-lines pass")
	pf.Float64Var(&a.flags.pigment, "pigment", 0, "watercolor pigment")
	pf.Float64Var(&a.flags.threshold, "threshold", 0, "watercolor edge threshold")
	pf.Float64Var(&a.flags.thickness, "thickness", 0, "pencil line thickness")
	pf.Float64Var(&a.flags.sensitivity, "sensitivity", 0, "pencil edge sensitivity")
	pf.StringVar(&a.flags.cacheKind, "cache", "", "asset cache: file, redis or none")

	root.AddCommand(a.viewCommand())
	root.AddCommand(a.renderCommand())
	root.AddCommand(a.recordCommand())
	root.AddCommand(a.serveCommand())
	root.AddCommand(a.paperCommand())
	root.AddCommand(a.cacheCommand())
	return root
}

func (f flagValues) apply(changed func(name string) bool, o *options.Options) error {
	if changed("width") {
		o.Width = f.width
	}
	if changed("height") {
		o.Height = f.height
	}
	if changed("seed") {
		o.Paper.Seed = f.seed
	}
	if changed("paper-size") {
		o.Paper.Size = f.paperSize
	}
	if changed("model") {
		o.Scene.Model = f.model
	}
	if changed("background") {
		if err := o.Scene.Background.UnmarshalText([]byte(f.background)); err != nil {
			return fmt.Errorf("invalid --background: %w", err)
		}
	}
	if changed("watercolor") {
		o.Watercolor.Enabled = f.watercolor
	}
	if changed("pencil") {
		o.Pencil.Enabled = f.pencil
	}
	if changed("pigment") {
		o.Watercolor.Pigment = f.pigment
	}
	if changed("threshold") {
		o.Watercolor.Threshold = f.threshold
	}
	if changed("thickness") {
		o.Pencil.Thickness = f.thickness
	}
	if changed("sensitivity") {
		o.Pencil.Sensitivity = f.sensitivity
	}
	if changed("cache") {
		switch k := cache.Kind(f.cacheKind); k {
		case cache.KindFile, cache.KindRedis, cache.KindNone:
			o.Cache.Kind = k
		default:
			return fmt.Errorf("invalid --cache %q", f.cacheKind)
		}
	}
	return nil
}

// openCache opens the configured cache, falling back to no cache when it is
// unavailable: a missing cache slows loads down but never breaks them.
func (a *app) openCache(ctx context.Context) cache.Cache {
	c, err := cache.Open(ctx, a.opts.Cache)
	if err != nil {
		loggerFromContext(ctx).Warn("asset cache unavailable, continuing without it", "kind", a.opts.Cache.Kind, "err", err)
		return cache.NewNullCache()
	}
	return c
}

func (a *app) newLoader(ctx context.Context, c cache.Cache) *assets.Loader {
	return assets.NewLoader(c,
		assets.WithTTL(a.opts.Cache.TTL),
		assets.WithLogger(loggerFromContext(ctx)),
	)
}

// softwareSession builds a CPU session for the headless commands. The
// returned cleanup closes the session and the cache.
func (a *app) softwareSession(ctx context.Context) (*viewer.Session, func(), error) {
	logger := loggerFromContext(ctx)
	c := a.openCache(ctx)
	sc := scene.New(a.opts.Scene.Background)
	sess, err := viewer.New(software.New(sc), sc, a.opts,
		viewer.WithLogger(logger),
		viewer.WithLoader(a.newLoader(ctx, c)),
	)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return sess, func() {
		sess.Close()
		c.Close()
	}, nil
}

// loadModel loads the configured model and waits for it. A failed load is
// logged and the scene renders without it.
func (a *app) loadModel(ctx context.Context, sess *viewer.Session) error {
	if a.opts.Scene.Model == "" {
		return nil
	}
	if _, err := sess.Load(ctx, a.opts.Scene.Model).Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sess.Logger().Warn("rendering without the model", "model", a.opts.Scene.Model, "err", err)
	}
	return nil
}
