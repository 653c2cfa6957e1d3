package cli

import (
	"fmt"

	"github.com/richinsley/gosketch/cache"
	"github.com/spf13/cobra"
)

// cacheCommand creates the cache management command.
func (a *app) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the model asset cache",
	}
	cmd.AddCommand(a.cacheClearCommand())
	cmd.AddCommand(a.cachePathCommand())
	return cmd
}

func (a *app) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := cache.Open(ctx, a.opts.Cache)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer c.Close()

			cl, ok := c.(cache.Clearer)
			if !ok {
				loggerFromContext(ctx).Info("nothing to clear", "kind", a.opts.Cache.Kind)
				return nil
			}
			if err := cl.Clear(ctx); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			loggerFromContext(ctx).Info("cache cleared", "kind", a.opts.Cache.Kind)
			return nil
		},
	}
}

func (a *app) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.opts.Cache.Dir
			if dir == "" {
				d, err := cache.DefaultDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				dir = d
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
