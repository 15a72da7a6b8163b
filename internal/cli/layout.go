package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
	"github.com/matzehuels/elk/pkg/layout"
	"github.com/matzehuels/elk/pkg/render/svg"
)

// layoutOptions holds the flags of the layout and batch commands.
type layoutOptions struct {
	format      string
	inputFormat string
	output      string
	query       string
	noCache     bool
	svg         svg.Options
}

func (o *layoutOptions) validate() error {
	if err := validateFormat(o.format, formatJSON, formatSVG); err != nil {
		return err
	}
	if o.query != "" && o.format != formatJSON {
		return elkerrors.New(elkerrors.ErrCodeInvalidInput, "--query needs --format json")
	}
	return nil
}

func (o *layoutOptions) addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", formatJSON, "output format: json, svg")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the layout cache")
	cmd.Flags().Float64Var(&o.svg.Padding, "padding", 0, "SVG margin around the drawing (default 20)")
	cmd.Flags().BoolVar(&o.svg.HideLabels, "hide-labels", false, "omit labels from SVG output")
}

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var opts layoutOptions

	cmd := &cobra.Command{
		Use:   "layout [graph.json|graph.yaml|-]",
		Short: "Lay out a graph with the ELK server",
		Long: `Lay out a graph with the ELK server.

The graph is read in ELK JSON (or YAML, by extension or --input-format) from
a file or stdin. The layout maps every element id to its position and size,
or to its route for edges. Coordinates are relative to the parent element.

With --format svg the layout is drawn instead. --query applies a JSONPath
expression to the JSON layout, e.g. --query '$.n1.position'.

Layouts are cached; --no-cache forces a fresh run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			input := stdinPath
			if len(args) == 1 {
				input = args[0]
			}
			return c.runLayout(cmd.Context(), input, opts)
		},
	}

	opts.addRenderFlags(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "JSONPath expression applied to the layout")
	cmd.Flags().StringVar(&opts.inputFormat, "input-format", graph.FormatJSON, "stdin format: json, yaml")

	return cmd
}

// runLayout loads the graph, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, opts layoutOptions) error {
	g, err := c.readGraph(input, opts.inputFormat)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}

	rt, err := c.newRuntime(ctx, opts.noCache, "")
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer rt.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %s...", g.ID))
	spinner.Start()

	res, err := rt.runner.Compute(ctx, g)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()

	data, err := c.renderResult(ctx, rt.runner, g, res, opts)
	if err != nil {
		return err
	}
	wrote, err := c.writeOutput(opts.output, data)
	if err != nil {
		return fmt.Errorf("write output %s: %w", opts.output, err)
	}
	if wrote {
		printSuccess("Layout complete")
		printFile(opts.output)
		printStats(g.Stats(), res.Cached, res.Duration)
	}
	return nil
}

// renderResult encodes a layout result in the requested format.
func (c *CLI) renderResult(ctx context.Context, r *layout.Runner, g *graph.Graph, res *layout.Result, opts layoutOptions) ([]byte, error) {
	if opts.format == formatSVG {
		return r.RenderSVG(ctx, g, res, opts.svg)
	}
	data, err := graph.MarshalLayout(res.Layout)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')
	if opts.query != "" {
		return queryJSON(data, opts.query)
	}
	return data, nil
}
