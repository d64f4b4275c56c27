// internal/commands/show_config.go
package atelier

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/atelier/internal/appconfig"
)

var showRaw bool

// showConfigCmd represents the 'show config' command.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the current configuration",
	Long:  `Displays the merged configuration from the config file, environment, and flags. Secrets are masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := GetConfig()
		if showRaw {
			pp.Fprintln(cmd.OutOrStdout(), viper.AllSettings())
			return
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), cfg)
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
	showConfigCmd.Flags().BoolVar(&showRaw, "raw", false, "print viper's raw settings, including unmasked secrets")
}
