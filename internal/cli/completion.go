package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/pkg/graph"
	"github.com/matzehuels/elk/pkg/server"
)

// flagValues lists the fixed choices of enum-like flags, keyed by command
// name and then flag name. "*" applies to every command with that flag.
var flagValues = map[string]map[string][]string{
	"*":       {"input-format": {graph.FormatJSON, graph.FormatYAML}},
	"layout":  {"format": {formatJSON, formatSVG}},
	"batch":   {"format": {formatJSON, formatSVG}},
	"preview": {"format": {formatSVG, formatDOT}, "rankdir": {"TB", "BT", "LR", "RL"}},
	"server":  {"mode": {server.ModeStdio, server.ModeSocket}},
}

// graphArgCommands take graph files as positional arguments.
var graphArgCommands = map[string]bool{"layout": true, "batch": true, "validate": true, "preview": true}

// registerCompletions attaches flag value and file completions to every
// subcommand of root.
func registerCompletions(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		for _, scope := range []string{"*", cmd.Name()} {
			for name, values := range flagValues[scope] {
				if cmd.Flags().Lookup(name) == nil {
					continue
				}
				_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
			}
		}
		if graphArgCommands[cmd.Name()] {
			cmd.ValidArgsFunction = func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
				return []string{"json", "yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
			}
		}
	}
}

func (c *CLI) completionCommand() *cobra.Command {
	generators := map[string]func(cmd *cobra.Command) error{
		"bash":       func(cmd *cobra.Command) error { return cmd.Root().GenBashCompletionV2(c.Stdout, true) },
		"zsh":        func(cmd *cobra.Command) error { return cmd.Root().GenZshCompletion(c.Stdout) },
		"fish":       func(cmd *cobra.Command) error { return cmd.Root().GenFishCompletion(c.Stdout, true) },
		"powershell": func(cmd *cobra.Command) error { return cmd.Root().GenPowerShellCompletionWithDesc(c.Stdout) },
	}

	return &cobra.Command{
		Use:   "completion bash|zsh|fish|powershell",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for elk. Graph arguments complete to
.json and .yaml files and enum flags such as --format complete to their values.

  source <(elk completion bash)
  elk completion zsh > "${fpath[1]}/_elk"
  elk completion fish > ~/.config/fish/completions/elk.fish
  elk completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generators[args[0]](cmd)
		},
	}
}
