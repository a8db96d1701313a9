package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinlink/kinlink/internal/graphalgo"
)

// newTreeCmd implements `kinlink tree --db=DB_ID [--sparse]`. DB_ID is
// the database ID printed by `kinlink index`; database rows aren't
// indexed by name in the store, so the CLI addresses databases by ID
// rather than a free-form name.
func newTreeCmd() *cobra.Command {
	var (
		dbID   string
		sparse bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print a database's pedigree, optionally collapsed to favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbID == "" {
				return &usageError{fmt.Errorf("--db is required")}
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			out := cmd.OutOrStdout()

			if sparse {
				nodes, err := graphalgo.SparseTree(ctx, a.store, dbID)
				if err != nil {
					return err
				}
				for _, n := range nodes {
					if flagTSV {
						fmt.Fprintf(out, "%s\t%d\t%s\t%d\t%s\n", n.PersonID, n.GenerationFromRoot, n.LineageFromParent, n.GenerationsSkipped, n.SparseParentID)
					} else {
						fmt.Fprintf(out, "%-28s gen=%-3d %-10s skipped=%-2d parent=%s\n", n.PersonID, n.GenerationFromRoot, n.LineageFromParent, n.GenerationsSkipped, n.SparseParentID)
					}
				}
				return nil
			}

			db, err := a.store.GetDatabase(ctx, dbID)
			if err != nil {
				return err
			}
			memberships, err := a.store.Memberships(ctx, dbID)
			if err != nil {
				return err
			}
			for _, m := range memberships {
				marker := ""
				if m.PersonID == db.RootID {
					marker = " (root)"
				}
				if flagTSV {
					fmt.Fprintf(out, "%s\t%d%s\n", m.PersonID, m.Generation, marker)
				} else {
					fmt.Fprintf(out, "%-28s gen=%d%s\n", m.PersonID, m.Generation, marker)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbID, "db", "", "database ID (required)")
	cmd.Flags().BoolVar(&sparse, "sparse", false, "collapse to the favorites-only sparse tree")
	return cmd
}
