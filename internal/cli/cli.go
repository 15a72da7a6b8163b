package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/internal/config"
	"github.com/matzehuels/elk/pkg/buildinfo"
	"github.com/matzehuels/elk/pkg/cache"
	"github.com/matzehuels/elk/pkg/distribution"
	"github.com/matzehuels/elk/pkg/httputil"
	"github.com/matzehuels/elk/pkg/layout"
	"github.com/matzehuels/elk/pkg/server"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "elk"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	// Stdin and Stdout carry graph and layout data; status output goes to
	// stderr.
	Stdin  io.Reader
	Stdout io.Writer

	configPath string
	verbose    bool

	// installer replaces the distribution manager, e.g. with a fake server.
	installer server.Installer
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "elk lays out graphs with the Eclipse Layout Kernel",
		Long: `elk drives the Eclipse Layout Kernel server. It sends graphs written in
ELK JSON (or YAML) to the server and returns the computed layout as JSON or SVG.
The server release is downloaded on first use; it needs Java 17 or newer.

Layouts are cached, so laying out an unchanged graph again is instant.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.loadConfig,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/elk/config.toml)")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serverCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.javaCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())
	registerCompletions(root)

	return root
}

// loadConfig reads the layered configuration before any command runs.
func (c *CLI) loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoadOptions{Path: c.configPath})
	if err != nil {
		return err
	}
	c.Config = cfg

	level := cfg.LogLevel()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	c.Logger.Debug("Loaded configuration", "config", cfg.String())
	return nil
}

// =============================================================================
// Runtime Factory
// =============================================================================

// manager creates the distribution manager for the configured release.
func (c *CLI) manager(progress httputil.Progress) (*distribution.Manager, error) {
	opts := c.Config.DistributionOptions()
	opts.Logger = c.Logger
	opts.Progress = progress
	return distribution.New(opts)
}

func (c *CLI) serverInstaller(mgr *distribution.Manager) server.Installer {
	if c.installer != nil {
		return c.installer
	}
	return mgr
}

// layoutRuntime bundles a layout runner with the resources it owns.
type layoutRuntime struct {
	runner    *layout.Runner
	pool      *server.Pool
	cache     cache.Cache
	stderrLog io.Closer
}

// newRuntime wires the distribution, server pool and cache into a runner.
// Keys are scoped by keyPrefix when it is non-empty.
func (c *CLI) newRuntime(ctx context.Context, noCache bool, keyPrefix string) (*layoutRuntime, error) {
	mgr, err := c.manager(nil)
	if err != nil {
		return nil, err
	}
	var lc cache.Cache = cache.NewNullCache()
	if !noCache {
		if lc, err = c.Config.OpenCache(ctx); err != nil {
			return nil, err
		}
	}

	rt := &layoutRuntime{cache: lc}
	opts := server.Options{Installer: c.serverInstaller(mgr), Logger: componentLogger(c.Logger, "server")}
	if w := c.Config.StderrLog(); w != nil {
		opts.StderrLog = w
		rt.stderrLog = w
	}
	rt.pool = server.NewPool(c.Config.Pool.Size, opts)

	var keyer cache.Keyer = cache.NewDefaultKeyer()
	if keyPrefix != "" {
		keyer = cache.NewScopedKeyer(keyer, keyPrefix)
	}
	rt.runner = layout.NewRunner(rt.pool, lc, keyer, componentLogger(c.Logger, "layout"))
	rt.runner.ServerVersion = mgr.Version()
	if ttl := c.Config.Cache.TTL.Duration; ttl > 0 {
		rt.runner.TTL = ttl
	}
	return rt, nil
}

// Close stops the server processes and releases the cache.
func (r *layoutRuntime) Close() error {
	errs := []error{r.pool.Close(), r.cache.Close()}
	if r.stderrLog != nil {
		errs = append(errs, r.stderrLog.Close())
	}
	return errors.Join(errs...)
}
