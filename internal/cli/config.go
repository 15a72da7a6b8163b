package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/internal/config"
)

// configCommand shows the effective configuration.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Encode(c.Stdout, c.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			fmt.Fprintln(c.Stdout, path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "env",
		Short: "List the environment variable of every key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range config.Keys(c.Config) {
				fmt.Fprintf(c.Stdout, "%-26s %s\n", k.Env, k.Name)
			}
			return nil
		},
	})

	return cmd
}
