package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bazarkhoj/bazarkhoj/internal/aggregator"
)

func compareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Match products across marketplaces and compare their prices",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCompare,
	}

	cmd.Flags().StringP("region", "r", "", "Daraz region (np, pk, bd, lk)")
	cmd.Flags().IntP("limit", "l", 0, "listings per source")
	cmd.Flags().Float64("min-rating", 0, "drop listings rated below this value")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer func() { _ = d.log.Sync() }()

	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		region = d.cfg.Aggregator.DefaultRegion
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit == 0 {
		limit = d.cfg.Aggregator.DefaultLimit
	}
	minRating, _ := cmd.Flags().GetFloat64("min-rating")

	result, err := d.aggregator.Compare(cmd.Context(), aggregator.Request{
		Query:     strings.Join(args, " "),
		Region:    region,
		Limit:     limit,
		MinRating: minRating,
	})
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: nameColumnWidth},
		{Number: 4, WidthMax: nameColumnWidth},
	})

	t.AppendHeader(table.Row{"Product", "Source", "Price", "Match", "Match Price", "Cheaper"})
	for _, pair := range result.Matches {
		row := table.Row{pair.Left.Name, pair.Left.Source, pair.Left.FormattedPrice, "", "", ""}
		if pair.HasMatch {
			row[3] = pair.Right.Name
			row[4] = pair.Right.FormattedPrice
			if pair.Comparison != nil && pair.Comparison.CheaperSource != "" {
				row[5] = fmt.Sprintf("%s (save %.2f)", pair.Comparison.CheaperSource, pair.Comparison.PriceDifference)
			}
		}
		t.AppendRow(row)
	}
	t.Render()

	for source, summary := range result.PerSource {
		if !summary.Success {
			fmt.Fprintf(os.Stderr, "Warning: %s failed: %s\n", source, summary.Error)
		}
	}
	return nil
}
