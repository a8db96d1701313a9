// Command kinlink is the batch indexer and query CLI: it drives the
// crawler, graph algorithms, geocoder, and discovery matcher against
// the embedded store, one subcommand per file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kinlink/kinlink/internal/config"
	"github.com/kinlink/kinlink/internal/identity"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/store"
	"github.com/kinlink/kinlink/internal/store/sqlitestore"
	"github.com/kinlink/kinlink/internal/telemetry"

	// Provider adapters self-register via init().
	_ "github.com/kinlink/kinlink/internal/provider/ancestry"
	_ "github.com/kinlink/kinlink/internal/provider/familysearch"
	_ "github.com/kinlink/kinlink/internal/provider/tdme"
	_ "github.com/kinlink/kinlink/internal/provider/wikitree"
)

// app bundles everything a subcommand needs: the open store, the
// identity map layered over it, the job orchestrator, and resolved
// configuration. One app is built per process invocation.
type app struct {
	cfg               *config.Config
	store             store.Store
	idmap             *identity.Map
	jobs              *jobs.Orchestrator
	shutdownTelemetry func(context.Context) error
}

var (
	flagDataDir string
	flagDBName  string
	flagTSV     bool
	flagOTel    bool
)

func main() {
	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(rootCtx); err != nil {
		fmt.Fprintln(os.Stderr, "kinlink:", err)
		var usage *usageError
		if errors.As(err, &usage) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// usageError marks a cobra-surfaced error as exit-code 1 rather than the default fatal 2.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kinlink",
		Short:         "Personal genealogical knowledge graph crawler and query tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the default data directory")
	cmd.PersistentFlags().StringVar(&flagDBName, "db-name", "", "override the embedded database file name")
	cmd.PersistentFlags().BoolVar(&flagTSV, "tsv", false, "emit tab-separated output instead of tables")
	cmd.PersistentFlags().BoolVar(&flagOTel, "otel", false, "export traces/metrics to stderr via OpenTelemetry")

	cmd.AddCommand(
		newIndexCmd(),
		newSearchCmd(),
		newShowCmd(),
		newPathCmd(),
		newTreeCmd(),
		newDiscoverCmd(),
		newGeocodeCmd(),
		newJobsCmd(),
		newDBCmd(),
	)
	return cmd
}

// openApp loads configuration, opens the store, and wires the identity
// map and job orchestrator, ready for any subcommand's RunE. Callers
// must defer closeApp.
func openApp(ctx context.Context) (*app, error) {
	v := viper.New()
	if flagDataDir != "" {
		v.Set("data-dir", flagDataDir)
	} else if b := config.LoadBootstrap("."); b.DataDir != "" {
		// A config.yaml in the working directory can point at the data
		// directory before the full config layer is loaded from it.
		v.Set("data-dir", b.DataDir)
		if flagDBName == "" && b.DBName != "" {
			v.Set("db-name", b.DBName)
		}
	}
	if flagDBName != "" {
		v.Set("db-name", flagDBName)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, &usageError{err}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("kinlink: creating data dir: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{Enabled: flagOTel})
	if err != nil {
		return nil, fmt.Errorf("kinlink: telemetry init: %w", err)
	}

	s, err := sqlitestore.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("kinlink: opening store: %w", err)
	}

	return &app{
		cfg:               cfg,
		store:             s,
		idmap:             identity.New(s),
		jobs:              jobs.New(),
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// closeApp shuts down any in-flight jobs, then closes the store and flushes telemetry.
func closeApp(ctx context.Context, a *app) {
	a.jobs.Shutdown(5 * time.Second)
	if err := a.store.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "kinlink: closing store:", err)
	}
	if a.shutdownTelemetry != nil {
		_ = a.shutdownTelemetry(ctx)
	}
}
