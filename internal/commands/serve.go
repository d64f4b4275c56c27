// internal/commands/serve.go
package atelier

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/providerfactory"
	"github.com/mwiater/atelier/internal/run"
	"github.com/mwiater/atelier/internal/server"
	"github.com/mwiater/atelier/internal/storage"
)

// serveCmd exposes the pipeline over HTTP with server-sent progress events.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the frame pipeline over HTTP",
	Long: `Serve starts an HTTP service. POST /api/generate streams a run's progress
as server-sent events, and GET /api/runs/{id} reports a run's frame statuses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		set, err := providerfactory.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer set.Close()

		sink, err := storage.FromConfig(cfg)
		if err != nil {
			return err
		}

		srv := server.New(cfg, run.NewCoordinator(set.Sequencer(cfg), run.NewRegistry()), sink)
		logging.LogEvent("serving on %s", cfg.ListenAddr())
		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("serverAddr", serveCmd.Flags().Lookup("addr"))
}
