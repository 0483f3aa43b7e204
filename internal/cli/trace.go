package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanho/flume/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kind     string // optional - filter to a specific action kind
	Limit    int    // optional - max records to print, 0 = all
}

// TraceEvent is one row of the journal timeline.
type TraceEvent struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Payload     string `json:"payload"`
	Time        string `json:"time"`
	Correlation string `json:"correlation"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Database string       `json:"database"`
	Timeline []TraceEvent `json:"timeline"`
	Total    int          `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the action timeline of a journal",
		Long: `Print the committed action timeline of a journal in seq order.

Each row shows the logical seq, the action kind, the canonical payload,
and the correlation id stamped at append time.

Examples:
  flume trace --db ./flume.db
  flume trace --db ./flume.db --kind login/success
  flume trace --db ./flume.db --limit 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to a specific action kind")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to print (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	result := TraceResult{Database: opts.Database, Timeline: []TraceEvent{}}
	err = j.ReplayFunc(ctx, func(r journal.Record) error {
		result.Total++
		if opts.Kind != "" && r.Kind != opts.Kind {
			return nil
		}
		if opts.Limit > 0 && len(result.Timeline) >= opts.Limit {
			return nil
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:         r.Seq,
			ID:          r.ID,
			Kind:        r.Kind,
			Payload:     string(r.Payload),
			Time:        r.Time.UTC().Format(time.RFC3339Nano),
			Correlation: r.Correlation,
		})
		return nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Journal: %s (%d records)\n", result.Database, result.Total)
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no records)")
		return nil
	}

	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, ev.Kind, ev.Payload)
		if verbose {
			fmt.Fprintf(w, "       id: %s\n", truncateID(ev.ID))
			fmt.Fprintf(w, "       at: %s  corr: %s\n", ev.Time, ev.Correlation)
		}
	}
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
