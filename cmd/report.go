package cmd

import (
	"context"

	"github.com/SteveArevalo/CS499-CapStone/internal/report"
	"github.com/SteveArevalo/CS499-CapStone/internal/repositories"

	"github.com/spf13/cobra"
)

var (
	formatFlag string
	plotFlag   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print adoption reports",
}

var reportAdoptionsCmd = &cobra.Command{
	Use:   "adoptions",
	Short: "Adoptions per breed, most adopted first",
	RunE:  runReportAdoptions,
}

var reportSeasonalCmd = &cobra.Command{
	Use:   "seasonal",
	Short: "Adoptions per calendar month",
	Long: `Adoptions per calendar month of the configured date field
(analytics.seasonal_date_field, date_of_birth by default). --plot also draws
a line chart of adoptions against month.`,
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle through withApp -> plotterFor -> reportSeasonalCmd.
	reportSeasonalCmd.RunE = runReportSeasonal

	for _, c := range []*cobra.Command{reportAdoptionsCmd, reportSeasonalCmd} {
		c.Flags().StringVar(&formatFlag, "format", string(report.FormatTable), "output format (table, csv, json)")
	}
	reportSeasonalCmd.Flags().BoolVar(&plotFlag, "plot", false, "draw a line chart of the result")

	reportCmd.AddCommand(reportAdoptionsCmd, reportSeasonalCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportAdoptions(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		rows, err := a.service.AdoptionsByBreed(ctx)
		if rerr := report.Render(cmd.OutOrStdout(), report.BreedAdoptionsTable(rows), format); rerr != nil {
			return rerr
		}
		return err
	})
}

func runReportSeasonal(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		rows, err := a.service.SeasonalTrends(ctx, plotFlag)
		if rerr := report.Render(cmd.OutOrStdout(), report.MonthlyAdoptionsTable(rows), format); rerr != nil {
			return rerr
		}
		return err
	})
}

// plotterFor returns the chart writer for commands that can plot
func plotterFor(cmd *cobra.Command) repositories.Plotter {
	if cmd == reportSeasonalCmd && plotFlag {
		return report.NewTerminalPlotter(cmd.OutOrStdout())
	}
	return nil
}
