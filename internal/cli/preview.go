package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/pkg/graph"
	"github.com/matzehuels/elk/pkg/render/nodelink"
)

// previewCommand draws the input graph with Graphviz. It does not need
// Java or the ELK server, which makes it handy for checking graph files.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		format      string
		output      string
		inputFormat string
		opts        nodelink.Options
	)

	cmd := &cobra.Command{
		Use:   "preview [graph.json|graph.yaml|-]",
		Short: "Draw the graph structure with Graphviz (no ELK server)",
		Long: `Draw the structure of a graph with the embedded Graphviz.

Compound nodes become clusters and port edges attach to their nodes. The
result shows what the graph contains, not the ELK layout; use 'layout
--format svg' for that.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, formatSVG, formatDOT); err != nil {
				return err
			}
			input := stdinPath
			if len(args) == 1 {
				input = args[0]
			}
			g, err := c.readGraph(input, inputFormat)
			if err != nil {
				return fmt.Errorf("load graph %s: %w", input, err)
			}
			return c.runPreview(g, format, output, opts)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatSVG, "output format: svg, dot")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&inputFormat, "input-format", graph.FormatJSON, "stdin format: json, yaml")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "list ports and sizes in node labels")
	cmd.Flags().StringVar(&opts.RankDir, "rankdir", "", "Graphviz rank direction (default from elk.direction)")

	return cmd
}

func (c *CLI) runPreview(g *graph.Graph, format, output string, opts nodelink.Options) error {
	dot := nodelink.ToDOT(g, opts)
	data := []byte(dot)
	if format == formatSVG {
		var err error
		if data, err = nodelink.RenderSVG(dot); err != nil {
			return fmt.Errorf("render preview: %w", err)
		}
	}

	wrote, err := c.writeOutput(output, data)
	if err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}
	if wrote {
		printSuccess("Preview complete")
		printFile(output)
	}
	return nil
}
