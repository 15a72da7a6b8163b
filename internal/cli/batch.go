package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/pkg/graph"
)

// batchCommand creates the batch command for laying out many graphs.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		opts        layoutOptions
		outputDir   string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch <graph>...",
		Short: "Lay out many graphs concurrently",
		Long: `Lay out many graphs concurrently.

Each input is written to <name>.layout.json (or .svg) next to it, or into
--output-dir. Up to --concurrency server processes run at once (default:
pool.size from the configuration). The first failure stops the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = c.Config.Pool.Size
			}
			return c.runBatch(cmd.Context(), args, opts, outputDir, concurrency)
		},
	}

	opts.addRenderFlags(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "directory for the layouts (default: next to each input)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "parallel layouts (default: pool.size)")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, inputs []string, opts layoutOptions, outputDir string, concurrency int) error {
	graphs := make([]*graph.Graph, len(inputs))
	for i, input := range inputs {
		g, err := graph.ReadGraphFile(input)
		if err != nil {
			return fmt.Errorf("load graph %s: %w", input, err)
		}
		graphs[i] = g
	}

	// The pool bounds the number of server processes.
	c.Config.Pool.Size = concurrency
	rt, err := c.newRuntime(ctx, opts.noCache, "")
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer rt.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %d graphs...", len(graphs)))
	spinner.Start()

	results, err := rt.runner.Batch(ctx, graphs, concurrency)
	if err != nil {
		spinner.StopWithError("Batch failed")
		return err
	}
	spinner.Stop()

	cached := 0
	for i, res := range results {
		data, err := c.renderResult(ctx, rt.runner, graphs[i], res, opts)
		if err != nil {
			return fmt.Errorf("render %s: %w", inputs[i], err)
		}
		path := outputPath(inputs[i], outputDir, opts.format)
		if _, err := c.writeOutput(path, data); err != nil {
			return fmt.Errorf("write output %s: %w", path, err)
		}
		printFile(path)
		printStats(graphs[i].Stats(), res.Cached, res.Duration)
		if res.Cached {
			cached++
		}
	}

	printSuccess("Laid out %d graphs (%d cached)", len(results), cached)
	prog.done("Batch finished", "graphs", len(results), "cached", cached)
	return nil
}
