package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kinlink/kinlink/internal/crawler"
	"github.com/kinlink/kinlink/internal/ids"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/provider"
)

// newIndexCmd implements `kinlink index ROOT_ID`: a single-root BFS
// crawl that walks ancestors generation by generation and writes
// through to the store.
func newIndexCmd() *cobra.Command {
	var (
		providerName string
		maxGen       int
		ignore       string
		cacheMode    string
		oldest       string
		watchCache   bool
	)

	cmd := &cobra.Command{
		Use:   "index ROOT_ID",
		Short: "Crawl a provider's ancestor chain starting from ROOT_ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rootExternalID := args[0]

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			adapter, err := provider.Build(providerName, provider.Config{})
			if err != nil {
				return &usageError{err}
			}

			mode := crawler.CacheMode(cacheMode)
			switch mode {
			case crawler.CacheAll, crawler.CacheNone, crawler.CacheComplete:
			default:
				return &usageError{fmt.Errorf("--cache must be one of all|complete|none, got %q", cacheMode)}
			}

			var oldestYear *int
			if oldest != "" {
				y, err := parseOldestYear(oldest)
				if err != nil {
					return &usageError{err}
				}
				oldestYear = &y
			}

			ignoreSet := map[string]bool{}
			for _, id := range strings.Split(ignore, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ignoreSet[id] = true
				}
			}

			c := crawler.New(adapter, a.idmap, a.store, a.cfg.ProviderCacheDir(providerName), a.cfg.ProviderDelays(providerName))

			dbID := ids.New()
			opts := crawler.Options{
				DBID:           dbID,
				DBName:         rootExternalID,
				RootExternalID: rootExternalID,
				MaxGenerations: maxGen,
				Ignore:         ignoreSet,
				CacheMode:      mode,
				OldestYear:     oldestYear,
				WatchCache:     watchCache,
			}

			job, stream, err := a.jobs.Start("index", func(ctx context.Context, emit func(jobs.Progress)) error {
				return c.Run(ctx, opts, emit)
			})
			if err != nil {
				return err
			}

			if err := printProgress(cmd, job, stream); err != nil {
				return err
			}

			// c.Run's finalize phase already wrote the Database row (with
			// the resolved root ID) and every membership/generation; report
			// the database ID so follow-up commands (tree, discover,
			// geocode) can address it.
			fmt.Fprintf(cmd.OutOrStdout(), "database %s ready\n", dbID)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "familysearch", "provider to crawl ("+strings.Join(provider.Known(), ", ")+")")
	cmd.Flags().IntVar(&maxGen, "max", 0, "maximum generations to walk (0 = unbounded)")
	cmd.Flags().StringVar(&ignore, "ignore", "", "comma-separated external IDs to skip")
	cmd.Flags().StringVar(&cacheMode, "cache", string(crawler.CacheAll), "cache mode: all|complete|none")
	cmd.Flags().StringVar(&oldest, "oldest", "", "drop ancestors born before this year, e.g. 1700 or \"1700 BC\"")
	cmd.Flags().BoolVar(&watchCache, "watch-cache", false, "watch the provider cache dir and retry permanently-failed IDs if a corrected cache file appears")
	return cmd
}

// parseOldestYear parses the --oldest flag using the same grammar as
// the person codec's year parser: "1700" or "1700 BC".
func parseOldestYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasSuffix(strings.ToUpper(s), "BC")
	numeric := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "BC"), "bc"))
	y, err := strconv.Atoi(numeric)
	if err != nil {
		return 0, fmt.Errorf("--oldest: %q is not a year", s)
	}
	if negative {
		y = -y
	}
	return y, nil
}

// printProgress subscribes to job and prints each progress event until
// the job reaches a terminal phase, formatting as TSV when --tsv is set
//. A terminal error event is returned
// as an error so the command exits 2; a cancellation is a clean
// checkpointed interrupt and exits 0.
func printProgress(cmd *cobra.Command, job *jobs.Job, ch <-chan jobs.Progress) error {
	out := cmd.OutOrStdout()
	var terminal jobs.Progress
	for p := range ch {
		terminal = p
		if flagTSV {
			fmt.Fprintf(out, "%s\t%s\t%d\t%d\t%s\t%s\n", p.Type, p.Kind, p.Current, p.Total, p.CurrentItem, p.Message)
		} else {
			fmt.Fprintf(out, "[%s] %d/%d %s %s\n", p.Type, p.Current, p.Total, p.CurrentItem, p.Message)
		}
	}
	<-job.Done()
	if terminal.Type == string(jobs.PhaseError) {
		return fmt.Errorf("%s job failed: %s", job.Kind, terminal.Message)
	}
	return nil
}
