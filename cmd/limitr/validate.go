package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/limits"
)

type limiterRow struct {
	Name      string `json:"name" yaml:"name"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Limit     uint64 `json:"limit" yaml:"limit"`
	Rate      uint64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Window    string `json:"window,omitempty" yaml:"window,omitempty"`
}

type validateReport struct {
	Config   string       `json:"config" yaml:"config"`
	Valid    bool         `json:"valid" yaml:"valid"`
	Limiters []limiterRow `json:"limiters" yaml:"limiters"`
}

func (r validateReport) Header() []string {
	return []string{"NAME", "ALGORITHM", "LIMIT", "RATE", "WINDOW"}
}

func (r validateReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Limiters))
	for _, l := range r.Limiters {
		rate := "-"
		if l.Rate > 0 {
			rate = strconv.FormatUint(l.Rate, 10) + "/s"
		}
		window := "-"
		if l.Window != "" {
			window = l.Window
		}
		rows = append(rows, []string{l.Name, l.Algorithm, strconv.FormatUint(l.Limit, 10), rate, window})
	}
	return rows
}

func newValidateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Load the configuration file with environment overrides, validate every
section and build each limiter. Exits with status 2 when the configuration
is unusable.

Examples:
  limitr validate --config limitr.yaml
  limitr validate --config limitr.yaml --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, format, err := g.formatter()
			if err != nil {
				return err
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			report, err := buildValidateReport(g.configPath, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == cli.FormatText {
				fmt.Fprintf(out, "✓ %s is valid (%d limiters)\n\n", g.configPath, len(report.Limiters))
			}
			return formatter.FormatTo(out, report)
		},
	}
}

func buildValidateReport(path string, cfg *config.Config) (validateReport, error) {
	mgr, err := limits.NewManager(cfg.Limiters, limits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return validateReport{}, cli.NewConfigError("limiters", err.Error())
	}

	report := validateReport{Config: path, Valid: true}
	for _, st := range mgr.Statuses() {
		row := limiterRow{
			Name:      st.Name,
			Algorithm: st.Algorithm.String(),
			Limit:     st.Limit,
			Rate:      st.Rate,
		}
		if st.Window > 0 {
			row.Window = st.Window.String()
		}
		report.Limiters = append(report.Limiters, row)
	}
	return report, nil
}
