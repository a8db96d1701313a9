package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newSearchCmd implements `kinlink search QUERY` over the
// display-name/birth-name/alias/bio/occupation index.
func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search over person names, aliases, bio, and occupations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			hits, err := a.store.Search(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, h := range hits {
				if flagTSV {
					fmt.Fprintf(out, "%s\t%.4f\t%s\n", h.PersonID, h.Rank, h.Display)
				} else {
					fmt.Fprintf(out, "%-28s %8.4f  %s\n", h.PersonID, h.Rank, h.Display)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}
