package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

// validateCommand checks a graph without starting the server.
func (c *CLI) validateCommand() *cobra.Command {
	var inputFormat string

	cmd := &cobra.Command{
		Use:   "validate [graph.json|graph.yaml|-]",
		Short: "Check a graph for structural problems",
		Long: `Check a graph for structural problems without starting the ELK server.

Reported problems include missing ids, duplicate ids, edges without sources
or targets, edges referencing unknown nodes or ports, and negative sizes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := stdinPath
			if len(args) == 1 {
				input = args[0]
			}
			return c.runValidate(input, inputFormat)
		},
	}
	cmd.Flags().StringVar(&inputFormat, "input-format", graph.FormatJSON, "stdin format: json, yaml")
	return cmd
}

func (c *CLI) runValidate(input, inputFormat string) error {
	g, err := c.readGraph(input, inputFormat)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}

	problems := graph.Problems(g)
	if len(problems) == 0 {
		printSuccess("Graph %s is valid", g.ID)
		printStats(g.Stats(), false, 0)
		return nil
	}

	for _, p := range problems {
		printError("%s", p)
	}
	return elkerrors.New(elkerrors.ErrCodeInvalidGraph, "graph %q has %d problem(s)", g.ID, len(problems))
}
