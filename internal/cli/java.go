package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/pkg/java"
)

// javaCommand reports the Java runtime the server would use.
func (c *CLI) javaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "java",
		Short: "Show the Java runtime used by the ELK server",
		Long: `Show the Java runtime used by the ELK server.

JAVA_HOME (or java.home in the configuration) is checked first, then PATH.
The major version must lie within java.min_version and java.max_version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := java.Find(cmd.Context(), c.Config.JavaOptions())
			if err != nil {
				printError("No suitable Java runtime found")
				printDetail("Install Java %d-%d or set JAVA_HOME", c.Config.Java.MinVersion, c.Config.Java.MaxVersion)
				return err
			}
			printSuccess("Java %d", rt.Version)
			printKeyValue("Path", rt.Path)
			printKeyValue("Version", strconv.Itoa(rt.Version))
			printKeyValue("Source", rt.Source)
			return nil
		},
	}
}
