package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/tarndb/tarn/internal/stress"
)

// TableFormatter formats output as a borderless table
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	table := f.createTable(w)

	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(table, v)
	case []map[string]interface{}:
		return f.formatMapSlice(table, v)
	case string:
		fmt.Fprintln(w, v)
		return nil
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatReport outputs a stress run report as a per-worker table with a
// summary line.
func (f *TableFormatter) FormatReport(w io.Writer, report *stress.Report) error {
	if report == nil || report.Total.Tasks == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	headers := []string{"WORKER", "TASKS", "OK", "FAILED", "AVG", "MAX"}
	if f.options.Wide {
		headers = append(headers, "MIN", "SUCCESS RATE")
	}

	if !f.options.NoHeaders {
		if colors.Disabled {
			table.SetHeader(headers)
		} else {
			coloredHeaders := make([]string, len(headers))
			for i, h := range headers {
				coloredHeaders[i] = colors.Header(h)
			}
			table.SetHeader(coloredHeaders)
		}
	}

	for _, row := range report.Rows {
		table.Append(f.formatWorkerRow(row, colors))
	}

	table.Render()

	f.printSummary(w, report, colors)

	return nil
}

// formatWorkerRow formats a single worker row
func (f *TableFormatter) formatWorkerRow(row stress.WorkerReport, colors *ColorScheme) []string {
	worker := row.Worker
	if !colors.Disabled {
		worker = colors.Worker(worker)
	}

	failed := fmt.Sprintf("%d", row.Failed)
	if !colors.Disabled {
		failed = colors.StatusColor(row.Failed > 0)(failed)
	}

	avg := row.Avg.Round(time.Microsecond).String()
	max := row.Max.Round(time.Microsecond).String()
	if !colors.Disabled {
		avg = colors.Duration(avg)
		max = colors.Duration(max)
	}

	out := []string{
		worker,
		fmt.Sprintf("%d", row.Tasks),
		fmt.Sprintf("%d", row.OK),
		failed,
		avg,
		max,
	}

	if f.options.Wide {
		out = append(out,
			row.Min.Round(time.Microsecond).String(),
			fmt.Sprintf("%.1f%%", stress.SuccessRate(row)))
	}

	return out
}

// formatMap formats a map as a two-column table (key-value pairs)
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	for k, v := range data {
		table.Append([]string{k, fmt.Sprintf("%v", v)})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	var headers []string
	for k := range data[0] {
		headers = append(headers, strings.ToUpper(k))
	}

	if !f.options.NoHeaders {
		table.SetHeader(headers)
	}

	for _, item := range data {
		var row []string
		for _, h := range headers {
			key := strings.ToLower(h)
			row = append(row, fmt.Sprintf("%v", item[key]))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// createTable creates a new borderless tab-separated table
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints the report totals under the table
func (f *TableFormatter) printSummary(w io.Writer, report *stress.Report, colors *ColorScheme) {
	summary := report.Summarize()
	if report.Total.Failed > 0 && !colors.Disabled {
		summary = colors.Warning(summary)
	}
	fmt.Fprintf(w, "\n%s\n", summary)

	if report.Stats.Dropped > 0 {
		dropped := fmt.Sprintf("Dropped: %d tasks discarded during shutdown", report.Stats.Dropped)
		if !colors.Disabled {
			dropped = colors.Error(dropped)
		}
		fmt.Fprintln(w, dropped)
	}
}
