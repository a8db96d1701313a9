package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newJobsCmd implements `kinlink jobs list|cancel JOB_ID`.
// Within this single-shot CLI a job's lifetime is bounded by the
// command invocation that started it; `jobs list` here
// always reports an empty table since no job outlives its command.
func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect or cancel jobs tracked by a running kinlink process",
	}
	cmd.AddCommand(newJobsListCmd(), newJobsCancelCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)
			fmt.Fprintln(cmd.OutOrStdout(), "no jobs running (each kinlink command starts and drains its own job)")
			return nil
		},
	}
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a running job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)
			if !a.jobs.Cancel(args[0]) {
				return &usageError{fmt.Errorf("no running job with ID %s", args[0])}
			}
			return nil
		},
	}
}
