package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kinlink/kinlink/internal/graphalgo"
)

// newPathCmd implements `kinlink path FROM TO`.
func newPathCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "path FROM TO",
		Short: "Find a path between two people through a common ancestor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			from, err := a.idmap.Resolve(ctx, args[0], "")
			if err != nil {
				return err
			}
			to, err := a.idmap.Resolve(ctx, args[1], "")
			if err != nil {
				return err
			}

			pathMode := graphalgo.PathMode(mode)
			switch pathMode {
			case graphalgo.Shortest, graphalgo.Longest, graphalgo.Random:
			default:
				return &usageError{fmt.Errorf("--mode must be one of shortest|longest|random, got %q", mode)}
			}

			result, err := graphalgo.Path(ctx, a.store, from, to, pathMode)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no common ancestor found")
				return nil
			}

			out := cmd.OutOrStdout()
			if flagTSV {
				fmt.Fprintf(out, "%s\t%d\t%s\n", result.CommonAncestor, result.TotalDepth, strings.Join(result.Path, ","))
			} else {
				fmt.Fprintf(out, "common ancestor: %s (total depth %d)\n", result.CommonAncestor, result.TotalDepth)
				fmt.Fprintln(out, strings.Join(result.Path, " -> "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(graphalgo.Shortest), "shortest|longest|random")
	return cmd
}
