// internal/metrics/report.go
package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders one row per recorded key.
func WriteSummary(out io.Writer, rows []CallMetrics) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No provider calls recorded.")
		return err
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Key,
			strconv.FormatInt(r.TotalRequests, 10),
			strconv.FormatInt(r.Failures, 10),
			strconv.FormatInt(r.EmptyResponses, 10),
			fmt.Sprintf("%.0f", r.LatencyMillis.Mean),
			fmt.Sprintf("%.0f", r.LatencyMillis.Min),
			fmt.Sprintf("%.0f", r.LatencyMillis.Max),
		})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"CALL", "REQUESTS", "FAILED", "EMPTY", "MEAN MS", "MIN MS", "MAX MS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	return nil
}
