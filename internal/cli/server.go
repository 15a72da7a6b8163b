package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/internal/api"
	"github.com/matzehuels/elk/pkg/observability"
	"github.com/matzehuels/elk/pkg/server"
)

// serverCommand runs the ELK server in the foreground.
func (c *CLI) serverCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the ELK server (stdio or socket mode)",
		Long: `Run the ELK server in the foreground.

In stdio mode each line read from stdin is a graph in ELK JSON and each line
written to stdout is its layout. In socket mode the server listens on its own
port and its output is logged. The server is downloaded on first use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.manager(nil)
			if err != nil {
				return err
			}
			opts := server.RunOptions{
				Mode:      mode,
				Installer: c.serverInstaller(mgr),
				Stdin:     c.Stdin,
				Stdout:    c.Stdout,
				Logger:    c.Logger,
			}
			if w := c.Config.StderrLog(); w != nil {
				defer w.Close()
				opts.StderrLog = w
			}
			return server.Run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", server.ModeStdio, "server mode: stdio, socket")
	return cmd
}

// serveCommand serves layouts over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve layouts over HTTP",
		Long: `Serve layouts over HTTP.

Endpoints:
  GET  /health     liveness and version
  GET  /metrics    Prometheus metrics
  POST /layout     graph JSON in, layout JSON out (?format=svg for SVG)
  POST /validate   graph JSON in, list of problems out

Requests share a pool of pool.size server processes and the layout cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.HTTP.Addr
			}
			ctx := cmd.Context()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			observability.SetAll(observability.NewPrometheusHooks(reg))
			defer observability.Reset()

			rt, err := c.newRuntime(ctx, false, "api:")
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := api.New(api.Options{Runner: rt.runner, Gatherer: reg, Logger: c.Logger})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr from the configuration)")
	return cmd
}
