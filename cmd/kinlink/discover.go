package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinlink/kinlink/internal/discovery"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/provider"
)

// newDiscoverCmd implements `kinlink discover --db=DB_ID --provider=P
// [--bulk]`.
func newDiscoverCmd() *cobra.Command {
	var (
		dbID         string
		providerName string
		bulk         bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find and resolve parent-linkage gaps against a provider",
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

			adapter, err := provider.Build(providerName, provider.Config{})
			if err != nil {
				return &usageError{err}
			}
			matcher := discovery.New(adapter, a.store, a.idmap)

			if !bulk {
				gaps, err := matcher.FindGaps(ctx, dbID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, g := range gaps {
					res, err := matcher.Resolve(ctx, g)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "kinlink: resolving %s: %v\n", g.PersonID, err)
						continue
					}
					printDiscoveryResult(out, res)
				}
				return nil
			}

			delays := a.cfg.ProviderDelays(providerName)
			rateLimit := func(ctx context.Context) {
				t := time.NewTimer(delays.MinDelay)
				defer t.Stop()
				select {
				case <-ctx.Done():
				case <-t.C:
				}
			}

			job, stream, err := a.jobs.Start("discover", func(ctx context.Context, emit func(jobs.Progress)) error {
				return matcher.DiscoverAll(ctx, dbID, rateLimit, emit)
			})
			if err != nil {
				return err
			}
			return printProgress(cmd, job, stream)
		},
	}

	cmd.Flags().StringVar(&dbID, "db", "", "database ID (required)")
	cmd.Flags().StringVar(&providerName, "provider", "familysearch", "provider to discover against")
	cmd.Flags().BoolVar(&bulk, "bulk", false, "run as a cancellable bulk job over every gap")
	return cmd
}

func printDiscoveryResult(out io.Writer, res *discovery.Result) {
	status := "no match"
	if res.Matched {
		status = "matched"
	}
	fmt.Fprintf(out, "%s -> %s (%s, confidence %.2f, %s)\n", res.Gap.PersonID, res.CandidateExternalID, res.CandidateName, res.Confidence, status)
}
