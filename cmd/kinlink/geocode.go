package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinlink/kinlink/internal/geocode"
	"github.com/kinlink/kinlink/internal/jobs"
)

// newGeocodeCmd implements `kinlink geocode --db=DB_ID
// [--reset-not-found]`.
func newGeocodeCmd() *cobra.Command {
	var (
		dbID          string
		resetNotFound bool
	)

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Resolve lat/lng for every place referenced by a database's vital events",
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

			client := geocode.NewNominatimClient("kinlink/1.0 (+https://github.com/kinlink/kinlink)")
			svc := geocode.New(a.store, client, a.cfg.GeocodeMinGap)

			if resetNotFound {
				n, err := svc.ResetNotFound(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d not_found rows to pending\n", n)
				return nil
			}

			places, err := placesForDatabase(ctx, a, dbID)
			if err != nil {
				return err
			}

			job, stream, err := a.jobs.Start("geocode", func(ctx context.Context, emit func(jobs.Progress)) error {
				return svc.GeocodeAll(ctx, places, emit)
			})
			if err != nil {
				return err
			}
			return printProgress(cmd, job, stream)
		},
	}

	cmd.Flags().StringVar(&dbID, "db", "", "database ID (required)")
	cmd.Flags().BoolVar(&resetNotFound, "reset-not-found", false, "reset every not_found row to pending")
	return cmd
}

// placesForDatabase collects the distinct, normalized place texts from
// every vital event recorded for a database's members, for a batch
// geocode run.
func placesForDatabase(ctx context.Context, a *app, dbID string) ([]string, error) {
	memberships, err := a.store.Memberships(ctx, dbID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var places []string
	for _, m := range memberships {
		events, err := a.store.EventsOf(ctx, m.PersonID)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.Place == "" {
				continue
			}
			norm := geocode.Normalize(ev.Place)
			if !seen[norm] {
				seen[norm] = true
				places = append(places, norm)
			}
		}
	}
	return places, nil
}
