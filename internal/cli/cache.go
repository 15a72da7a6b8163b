package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/internal/config"
	"github.com/matzehuels/elk/pkg/cache"
	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the layout cache and the server download",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var withServer bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached layouts",
		Long: `Remove all cached layouts from the configured backend (file, redis or
mongo). With --server the downloaded ELK server is removed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lc, err := c.Config.OpenCache(ctx)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer lc.Close()

			clearer, ok := lc.(cache.Clearer)
			if !ok {
				printInfo("Cache backend %q has nothing to clear", c.Config.Cache.Backend)
			} else {
				if err := clearer.Clear(ctx); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				printSuccess("Cleared %s layout cache", c.Config.Cache.Backend)
				if c.Config.Cache.Backend == config.BackendFile {
					dir, _ := c.Config.CacheDir()
					printDetail("Directory: %s", dir)
				}
			}

			if withServer {
				mgr, err := c.manager(nil)
				if err != nil {
					return err
				}
				if err := mgr.Remove(); err != nil {
					return fmt.Errorf("remove server: %w", err)
				}
				printSuccess("Removed ELK server %s", mgr.Version())
				printDetail("Directory: %s", mgr.Dir())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withServer, "server", false, "also remove the downloaded ELK server")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var server bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server {
				mgr, err := c.manager(nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.Stdout, mgr.Dir())
				return nil
			}
			if c.Config.Cache.Backend != config.BackendFile {
				return elkerrors.New(elkerrors.ErrCodeUnsupported, "cache backend %q has no directory", c.Config.Cache.Backend)
			}
			dir, err := c.Config.CacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(c.Stdout, dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&server, "server", false, "print the ELK server download directory instead")
	return cmd
}
