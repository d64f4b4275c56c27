// internal/commands/show.go
package atelier

import "github.com/spf13/cobra"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Group commands for displaying resources",
	Long:  `The 'show' command groups subcommands that display resources or information related to atelier.`,
}

func init() {
	rootCmd.AddCommand(showCmd)
}
