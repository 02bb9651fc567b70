package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"relayhq/relay/pkg/cli"
	"relayhq/relay/pkg/config"
	"relayhq/relay/pkg/journal"
	"relayhq/relay/pkg/server"
)

type journalQueryOptions struct {
	since  time.Duration
	method string
	target string
	status string
	limit  int
	offset int
	format string
}

func newJournalCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the access journal",
		Long: `Query and prune the access journal configured in the journal section.

Subcommands:
  query   - list recorded requests, newest first
  prune   - delete records older than journal.retention.days`,
	}
	cmd.AddCommand(newJournalQueryCommand(global), newJournalPruneCommand(global))
	return cmd
}

func newJournalQueryCommand(global *globalOptions) *cobra.Command {
	opts := &journalQueryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List recorded requests",
		Long: `List recorded requests, newest first.

Examples:
  # Failures of the last hour
  relay journal query --since 1h --status error

  # Requests to one upstream as CSV
  relay journal query --target http://backend:8080 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.status != "" && opts.status != "success" && opts.status != "error" {
				return fmt.Errorf("invalid --status %q (want success or error)", opts.status)
			}

			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			storage, err := openJournal(cmd, global, cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			q := &journal.Query{
				Method: opts.method,
				Target: opts.target,
				Status: opts.status,
				Limit:  opts.limit,
				Offset: opts.offset,
			}
			if opts.since > 0 {
				since := time.Now().Add(-opts.since)
				q.Since = &since
			}

			records, err := storage.Query(cmd.Context(), q)
			if err != nil {
				return cli.NewCommandError("journal query", err)
			}
			return render(cmd.OutOrStdout(), opts.format, recordsTable(records))
		},
	}

	cmd.Flags().DurationVar(&opts.since, "since", 0, "only records newer than this, e.g. 1h")
	cmd.Flags().StringVar(&opts.method, "method", "", "filter by method")
	cmd.Flags().StringVar(&opts.target, "target", "", "filter by upstream target")
	cmd.Flags().StringVar(&opts.status, "status", "", "filter by outcome: success or error")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "max results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "pagination offset")
	formatFlag(cmd, &opts.format)
	return cmd
}

func newJournalPruneCommand(global *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("days") {
				cfg.Journal.Retention.Days = days
			}
			if cfg.Journal.Retention.Days <= 0 {
				return errors.New("retention is disabled (journal.retention.days is 0)")
			}

			storage, err := openJournal(cmd, global, cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			pruner := journal.NewPruner(storage, journal.RetentionConfig{Days: cfg.Journal.Retention.Days}, global.commandLogger(cmd))
			deleted, err := pruner.Prune(cmd.Context())
			if err != nil {
				return cli.NewCommandError("journal prune", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d records older than %d days\n", deleted, cfg.Journal.Retention.Days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "override journal.retention.days")
	return cmd
}

// openJournal opens the configured SQLite journal and checks that it is
// reachable.
func openJournal(cmd *cobra.Command, global *globalOptions, cfg *config.Config) (journal.Storage, error) {
	if cfg.Journal.Backend == journal.BackendMemory {
		return nil, errors.New("the memory journal only lives inside a running relay")
	}
	storage, err := journal.Open(server.JournalConfig(cfg.Journal), global.commandLogger(cmd))
	if err != nil {
		return nil, cli.NewCommandError("journal", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := storage.PingContext(ctx); err != nil {
		storage.Close()
		return nil, cli.NewCommandError("journal", err)
	}
	return storage, nil
}

func recordsTable(records []*journal.Record) *cli.Table {
	t := &cli.Table{Headers: []string{"time", "method", "path", "target", "status", "duration_ms", "cache", "error"}}
	for _, r := range records {
		cache := ""
		if r.CacheHit {
			cache = "hit"
		}
		t.Append(
			r.Time.Format(time.RFC3339),
			r.Method,
			r.Path,
			r.Target,
			strconv.Itoa(r.Status),
			strconv.FormatInt(r.DurationMs, 10),
			cache,
			r.Error,
		)
	}
	return t
}
