// internal/commands/printer.go
package atelier

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/mwiater/atelier/internal/pipeline"
	"github.com/mwiater/atelier/internal/run"
)

var (
	stageColor    = color.New(color.FgCyan)
	skipColor     = color.New(color.FgYellow)
	doneColor     = color.New(color.FgGreen, color.Bold)
	errorColor    = color.New(color.FgRed, color.Bold)
	critiqueColor = color.New(color.FgMagenta)
)

// printer writes pipeline events as one line each for non-interactive terminals.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// Sink returns the printer as a pipeline sink.
func (p *printer) Sink() pipeline.Sink {
	return p.print
}

func (p *printer) print(e pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := fmt.Sprintf("[frame %d]", e.FrameIndex)
	switch e.Kind {
	case pipeline.EventStage:
		switch {
		case e.Skipped:
			skipColor.Fprintf(p.out, "%s %-11s skipped: %s\n", prefix, e.Stage, e.Reason)
		case e.Stage == pipeline.StageDone:
			doneColor.Fprintf(p.out, "%s %-11s %3.0f%%\n", prefix, e.Stage, e.Progress*100)
		case e.Stage == pipeline.StageError:
			errorColor.Fprintf(p.out, "%s %-11s %s\n", prefix, e.Stage, e.Reason)
		default:
			line := fmt.Sprintf("%s %-11s %3.0f%%", prefix, e.Stage, e.Progress*100)
			if e.Reason != "" {
				line += " " + e.Reason
			}
			stageColor.Fprintln(p.out, line)
		}
	case pipeline.EventResult:
		fmt.Fprintf(p.out, "%s result %q %s\n", prefix, e.Label, dimensions(e.Width, e.Height))
	case pipeline.EventCritique:
		critiqueColor.Fprintf(p.out, "%s critique:\n", prefix)
		for _, line := range strings.Split(strings.TrimSpace(e.Text), "\n") {
			fmt.Fprintf(p.out, "    %s\n", line)
		}
	case pipeline.EventError:
		errorColor.Fprintf(p.out, "%s error: %s\n", prefix, e.Message)
	}
}

// summary reports how the run ended and where frames were written.
func (p *printer) summary(res *run.Result, locations []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res == nil {
		return
	}
	status := doneColor
	if res.Cancelled || res.Failed() > 0 {
		status = skipColor
	}
	status.Fprintf(p.out, "run %s: %d completed, %d failed", res.ID, res.Completed(), res.Failed())
	if res.Cancelled {
		status.Fprint(p.out, ", cancelled")
	}
	fmt.Fprintln(p.out)
	for _, loc := range locations {
		fmt.Fprintf(p.out, "  %s\n", loc)
	}
}

func dimensions(w, h int) string {
	if w <= 0 || h <= 0 {
		return "(auto)"
	}
	return fmt.Sprintf("(%dx%d)", w, h)
}
