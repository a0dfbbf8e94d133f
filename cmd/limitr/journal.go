package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/journal"
)

type recordTable []journal.Record

func (t recordTable) Header() []string {
	return []string{"TIME", "LIMITER", "ALGORITHM", "ALLOWED", "COST", "REMAINING", "REQUEST_ID"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Limiter,
			r.Algorithm,
			strconv.FormatBool(r.Allowed),
			strconv.FormatUint(r.Cost, 10),
			strconv.FormatUint(r.Remaining, 10),
			r.RequestID,
		})
	}
	return rows
}

func newJournalCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and prune the decision journal",
		Long: `Query or prune the decision journal configured under journal: in the
config file. Only the sqlite and postgres backends persist between runs.`,
	}
	cmd.AddCommand(newJournalQueryCmd(g), newJournalPruneCmd(g))
	return cmd
}

func newJournalQueryCmd(g *globalOptions) *cobra.Command {
	var (
		limiter string
		allowed string
		since   time.Duration
		limit   int
		count   bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List journaled decisions, newest first",
		Long: `List journaled decisions, newest first.

Examples:
  # Last 50 decisions
  limitr journal query

  # Denials of the api limiter in the last hour, as CSV
  limitr journal query --limiter api --allowed=false --since 1h --output csv

  # Count instead of listing
  limitr journal query --limiter api --count`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, _, err := g.formatter()
			if err != nil {
				return err
			}

			filter := journal.Filter{Limiter: limiter, Limit: limit}
			if allowed != "" {
				v, err := strconv.ParseBool(allowed)
				if err != nil {
					return fmt.Errorf("--allowed must be true or false: %w", err)
				}
				filter.Allowed = &v
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			store, err := openJournal(g)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if count {
				n, err := store.Count(ctx, filter)
				if err != nil {
					return cli.NewCommandError("journal query", err)
				}
				fmt.Fprintln(out, n)
				return nil
			}

			records, err := store.Query(ctx, filter)
			if err != nil {
				return cli.NewCommandError("journal query", err)
			}
			return formatter.FormatTo(out, recordTable(records))
		},
	}

	f := cmd.Flags()
	f.StringVar(&limiter, "limiter", "", "only decisions of this limiter")
	f.StringVar(&allowed, "allowed", "", "only allowed (true) or denied (false) decisions")
	f.DurationVar(&since, "since", 0, "only decisions newer than this, e.g. 1h")
	f.IntVar(&limit, "limit", 50, "maximum records to list (0 for all)")
	f.BoolVar(&count, "count", false, "print the number of matching records")
	return cmd
}

func newJournalPruneCmd(g *globalOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journaled decisions past their retention",
		Long: `Delete decisions older than --older-than, or journal.retention.max_age
when the flag is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			maxAge := cfg.Journal.Retention.MaxAge
			if olderThan > 0 {
				maxAge = olderThan
			}

			store, err := openJournalFrom(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			pruner, err := journal.NewPruner(store, maxAge)
			if err != nil {
				return cli.NewCommandError("journal prune", err)
			}
			n, err := pruner.Prune(cmd.Context())
			if err != nil {
				return cli.NewCommandError("journal prune", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d records older than %s\n", n, maxAge)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention window (defaults to journal.retention.max_age)")
	return cmd
}

func openJournal(g *globalOptions) (journal.Store, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return openJournalFrom(cfg)
}

func openJournalFrom(cfg *config.Config) (journal.Store, error) {
	if cfg.Journal.Backend != "sqlite" && cfg.Journal.Backend != journal.BackendPostgres {
		return nil, cli.NewConfigError("journal.backend",
			fmt.Sprintf("backend %q does not persist decisions; configure sqlite or postgres", cfg.Journal.Backend))
	}
	store, err := journal.Open(&cfg.Journal)
	if err != nil {
		return nil, cli.NewCommandError("journal", err)
	}
	return store, nil
}
