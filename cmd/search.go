package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bazarkhoj/bazarkhoj/internal/classifier"
	"github.com/bazarkhoj/bazarkhoj/internal/domain"
	"github.com/bazarkhoj/bazarkhoj/internal/session"
)

const nameColumnWidth = 60

func searchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search all marketplaces and rank results by price",
		Long: `Searches every configured marketplace concurrently and prints the
combined results in a table.

Examples:
  # Search both marketplaces
  bazarkhoj search "running shoes"

  # Fetch three pages from each source
  bazarkhoj search "running shoes" --pages 3

  # Keep only footwear listings from Daraz
  bazarkhoj search "air max" --shoes --source daraz`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringP("region", "r", "", "Daraz region (np, pk, bd, lk)")
	cmd.Flags().IntP("limit", "l", 0, "listings per source per page")
	cmd.Flags().String("sort", "relevance", "sort order (relevance, price_asc, price_desc, newest)")
	cmd.Flags().IntP("pages", "p", 1, "pages to fetch per source")
	cmd.Flags().Bool("shoes", false, "keep footwear listings only")
	cmd.Flags().String("source", "", "show one source only (daraz, jeevee)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer func() { _ = d.log.Sync() }()

	query := strings.Join(args, " ")
	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		region = d.cfg.Aggregator.DefaultRegion
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit == 0 {
		limit = d.cfg.Aggregator.DefaultLimit
	}
	sortOrder, _ := cmd.Flags().GetString("sort")
	pages, _ := cmd.Flags().GetInt("pages")
	shoesOnly, _ := cmd.Flags().GetBool("shoes")
	sourceFilter, _ := cmd.Flags().GetString("source")

	sess := session.New(d.aggregator, d.log, d.metrics, session.Options{
		Limit: limit,
		Sort:  domain.SortOrder(sortOrder),
	})

	if err := sess.Start(cmd.Context(), query, region); err != nil {
		return err
	}
	for page := 1; page < pages && sess.HasMore(); page++ {
		if _, err := sess.LoadMore(cmd.Context()); err != nil {
			return err
		}
	}

	if sourceFilter != "" {
		sess.SetSourceFilter(domain.SourceID(sourceFilter))
	}
	if shoesOnly {
		sess.SetCategoryFilter(classifier.ShoeKeywords)
	}

	renderListings(sess.Listings(), query)
	renderCounts(sess.SourceCounts())
	renderFailures(sess.Failures())
	return nil
}

func renderListings(listings []domain.Listing, query string) {
	if len(listings) == 0 {
		fmt.Printf("No results for %q\n", query)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: nameColumnWidth},
	})

	t.AppendHeader(table.Row{"#", "Source", "Name", "Price", "Discount", "Rating"})
	for i, l := range listings {
		t.AppendRow(table.Row{
			i + 1,
			l.Source,
			l.Name,
			l.FormattedPrice,
			formatDiscount(l.DiscountPercent),
			formatRating(l.Rating),
		})
	}
	t.Render()
}

func renderCounts(counts map[domain.SourceID]int) {
	parts := make([]string, 0, len(counts))
	for _, src := range []domain.SourceID{domain.SourceDaraz, domain.SourceJeevee} {
		if n, ok := counts[src]; ok {
			parts = append(parts, fmt.Sprintf("%s: %d", src, n))
		}
	}
	for src, n := range counts {
		if src != domain.SourceDaraz && src != domain.SourceJeevee {
			parts = append(parts, fmt.Sprintf("%s: %d", src, n))
		}
	}
	if len(parts) > 0 {
		fmt.Println("Sources: " + strings.Join(parts, ", "))
	}
}

func renderFailures(failures []domain.PartialFailure) {
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "Warning: %s failed: %s\n", f.Source, f.Reason)
	}
}

func formatDiscount(pct *int) string {
	if pct == nil {
		return ""
	}
	return fmt.Sprintf("-%d%%", *pct)
}

func formatRating(rating *float64) string {
	if rating == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *rating)
}
