// Package output provides formatters for displaying tarn CLI command
// results.
//
// The package supports multiple output formats (table, JSON, YAML) and
// provides a unified interface for formatting plain data items and
// stress run reports.
//
// # Basic Usage
//
//	// Create a table formatter
//	formatter := output.NewFormatter(output.FormatTable)
//
//	// Format single data item
//	data := map[string]interface{}{"key": "value"}
//	formatter.Format(os.Stdout, data)
//
//	// Format a stress run report
//	report, _ := stress.Run(ctx, opts, logger)
//	formatter.FormatReport(os.Stdout, report)
//
// # Options
//
// Formatters can be configured with functional options:
//
//	formatter := output.NewFormatter(
//	    output.FormatTable,
//	    output.WithNoColor(true),
//	    output.WithWide(true),
//	)
//
// # Color Support
//
// Colors are automatically enabled for TTY outputs and disabled with
// WithNoColor(true) or when writing to pipes and redirects.
//
// Color scheme:
//   - Worker identities: Cyan, Bold
//   - Success status: Green
//   - Error messages: Red, Bold
//   - Warnings: Yellow
//   - Headers: White, Bold
//   - Durations: Blue
package output
