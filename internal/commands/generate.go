// internal/commands/generate.go
package atelier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/metrics"
	"github.com/mwiater/atelier/internal/pipeline"
	"github.com/mwiater/atelier/internal/providerfactory"
	"github.com/mwiater/atelier/internal/run"
	"github.com/mwiater/atelier/internal/storage"
	"github.com/mwiater/atelier/internal/tui"
)

var (
	plainOutput  bool
	reviseFile   string
	instruction  string
	concepts     []string
	metricsOut   string
	instructions string
)

// generateCmd runs the frame pipeline for a prompt.
var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate HTML/CSS design frames from a prompt",
	Long: `Generate runs the layout, image, review, and critique stages for each frame
and writes the finished frames to the configured output directory.

Use --revise with --instruction to edit an existing frame instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		req, err := buildRequest(cfg, strings.Join(args, " "))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		set, err := providerfactory.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer set.Close()

		coord := run.NewCoordinator(set.Sequencer(cfg), nil)
		gen := func(ctx context.Context, sink pipeline.Sink) (*run.Result, error) {
			return coord.Generate(ctx, req, sink)
		}

		out := cmd.OutOrStdout()
		p := newPrinter(out)
		var res *run.Result
		if plainOutput || color.NoColor {
			res, err = gen(ctx, p.Sink())
		} else {
			if lerr := logging.InitFileOnly(cfg.LogFilePath()); lerr != nil {
				return fmt.Errorf("failed to initialize logger: %w", lerr)
			}
			frames := req.Frames
			if req.Revision != nil || frames <= 0 {
				frames = 1
			}
			res, err = tui.Run(ctx, displayPrompt(req), frames, gen)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if res == nil {
			return errors.New("run produced no result")
		}

		sink, serr := storage.FromConfig(cfg)
		if serr != nil {
			return serr
		}
		// The run context may already be cancelled; completed frames are still saved.
		locations, serr := sink.Save(context.WithoutCancel(ctx), displayPrompt(req), res)
		p.summary(res, locations)
		if serr != nil {
			logging.LogEvent("save frames for run %s: %v", res.ID, serr)
			errorColor.Fprintf(cmd.ErrOrStderr(), "some frames could not be saved: %v\n", serr)
		}

		if cfg.Metrics {
			if err := writeMetrics(out, metricsOut); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().Int("frames", 0, "number of frames to generate (1-12)")
	generateCmd.Flags().Bool("quick", false, "run frames concurrently without critique feedback between them")
	generateCmd.Flags().Bool("noReview", false, "skip the review stage")
	_ = viper.BindPFlag("frames", generateCmd.Flags().Lookup("frames"))
	_ = viper.BindPFlag("quickMode", generateCmd.Flags().Lookup("quick"))
	_ = viper.BindPFlag("disableReview", generateCmd.Flags().Lookup("noReview"))

	generateCmd.Flags().BoolVar(&plainOutput, "plain", false, "print line-oriented progress instead of the interactive board")
	generateCmd.Flags().StringVar(&reviseFile, "revise", "", "HTML file to revise instead of generating new frames")
	generateCmd.Flags().StringVar(&instruction, "instruction", "", "revision instruction (requires --revise)")
	generateCmd.Flags().StringSliceVar(&concepts, "concept", nil, "design concept per frame, overriding the built-in styles")
	generateCmd.Flags().StringVar(&instructions, "instructions", "", "extra instructions appended to every layout prompt")
	generateCmd.Flags().StringVar(&metricsOut, "metricsOut", "", "write recorded call metrics as JSON to this path")
}

// buildRequest merges flags into the configured invocation settings.
func buildRequest(cfg *appconfig.Config, prompt string) (run.Request, error) {
	req := run.RequestFromConfig(cfg, strings.TrimSpace(prompt))
	if len(concepts) > 0 {
		req.Concepts = concepts
	}
	if strings.TrimSpace(instructions) != "" {
		req.CustomInstructions = instructions
	}

	if reviseFile == "" {
		if instruction != "" {
			return run.Request{}, errors.New("--instruction requires --revise")
		}
		if req.Prompt == "" {
			return run.Request{}, errors.New("a prompt is required")
		}
		return req, nil
	}

	if strings.TrimSpace(instruction) == "" {
		return run.Request{}, errors.New("--revise requires --instruction")
	}
	base, err := os.ReadFile(reviseFile)
	if err != nil {
		return run.Request{}, fmt.Errorf("read frame to revise: %w", err)
	}
	if strings.TrimSpace(string(base)) == "" {
		return run.Request{}, fmt.Errorf("frame to revise %q is empty", reviseFile)
	}
	req.Revision = &pipeline.Revision{Instruction: instruction, BaseHTML: string(base)}
	return req, nil
}

func displayPrompt(req run.Request) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	if req.Revision != nil {
		return "revise: " + req.Revision.Instruction
	}
	return ""
}

func writeMetrics(out io.Writer, path string) error {
	agg := metrics.GetInstance()
	fmt.Fprintln(out)
	if err := metrics.WriteSummary(out, agg.Snapshot()); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	if err := agg.Save(path); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	fmt.Fprintf(out, "metrics written to %s\n", path)
	return nil
}
