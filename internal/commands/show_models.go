// internal/commands/show_models.go
package atelier

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/providers/ollama"
)

var (
	modelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
)

// showModelsCmd lists the models installed on the configured Ollama endpoint.
var showModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List local Ollama models usable as the text model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		models, err := ollama.New(cfg).ListModels(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintln(out, "No models installed.")
			return nil
		}
		current := ""
		if appconfig.TextVendor(cfg.TextModel()) == "ollama" {
			current = cfg.TextModel()
		}
		for _, m := range models {
			if m == current {
				fmt.Fprintf(out, "%s (selected)\n", selectedStyle.Render(m))
				continue
			}
			fmt.Fprintln(out, modelStyle.Render(m))
		}
		return nil
	},
}

func init() {
	showCmd.AddCommand(showModelsCmd)
}
