package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDBCmd groups database maintenance: explicit removal (the only way
// persons are ever deleted) and snapshot backup.
func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance: remove a rooted subgraph, snapshot the store",
	}
	cmd.AddCommand(newDBRmCmd(), newDBBackupCmd())
	return cmd
}

func newDBRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm DB_ID",
		Short: "Remove a database, cascading to persons no other database holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			if _, err := a.store.GetDatabase(ctx, args[0]); err != nil {
				return &usageError{fmt.Errorf("no database %s: %w", args[0], err)}
			}
			if err := a.store.DeleteDatabase(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newDBBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup DEST",
		Short: "Snapshot the store to DEST without blocking readers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			if err := a.store.Backup(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up to %s\n", args[0])
			return nil
		},
	}
}
