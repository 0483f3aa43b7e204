package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanho/flume/internal/journal"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
}

// VerifyResult holds the verify command output.
type VerifyResult struct {
	Database string `json:"database"`
	Checked  int64  `json:"checked"`
	OK       bool   `json:"ok"`
	FailSeq  int64  `json:"fail_seq,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check journal integrity",
		Long: `Check the integrity of a journal.

Recomputes the content-addressed id of every record and checks that
seqs are strictly increasing. Exits non-zero on the first violation.

Examples:
  flume verify --db ./flume.db
  flume verify --db ./flume.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	result := VerifyResult{Database: opts.Database, OK: true}
	checked, err := j.Verify(ctx)
	result.Checked = checked

	var verr *journal.VerifyError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		result.OK = false
		result.FailSeq = verr.Seq
		result.Reason = verr.Reason
	default:
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
			return werr
		}
	} else {
		w := cmd.OutOrStdout()
		if result.OK {
			fmt.Fprintf(w, "OK: %d records verified\n", result.Checked)
		} else {
			fmt.Fprintf(w, "FAILED at seq %d: %s (%d records verified)\n",
				result.FailSeq, result.Reason, result.Checked)
		}
	}

	if !result.OK {
		return WrapExitError(ExitFailure, "journal verification failed", err)
	}
	return nil
}
