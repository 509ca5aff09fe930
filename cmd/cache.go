package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dataforseo-mcp/internal/cache"
	"github.com/sells-group/dataforseo-mcp/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache contents and freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, svc, err := initCache(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := svc.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		renderStats(os.Stdout, stats)
		return nil
	},
}

// renderStats prints the cache stats summary in fixed-width rows.
func renderStats(w io.Writer, stats *cache.Stats) {
	fmt.Fprintf(w, "Keywords:  %d (%d with volume, %d expired)\n",
		stats.Keywords.Total, stats.Keywords.WithVolume, stats.Keywords.Expired)
	fmt.Fprintf(w, "Rankings:  %d\n", stats.Rankings)
	fmt.Fprintf(w, "Domains:   %d\n", stats.Domains)
	fmt.Fprintf(w, "Locations: %d, languages: %d\n", len(stats.Locations), len(stats.Languages))
	if stats.OldestFetch != nil && stats.NewestFetch != nil {
		fmt.Fprintf(w, "Fetched:   %s .. %s\n",
			stats.OldestFetch.Format(time.RFC3339),
			stats.NewestFetch.Format(time.RFC3339),
		)
	}
	if len(stats.TopByVolume) > 0 {
		fmt.Fprintln(w, "Top keywords by volume:")
		for _, item := range stats.TopByVolume {
			fmt.Fprintf(w, "  %-40s %d\n", item.Keyword, item.Volume)
		}
	}
}

var (
	cacheMatch    string
	cacheLocation string
	cacheLanguage string
	cacheLimit    int
	cacheSortBy   string
)

var cacheSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search cached keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, svc, err := initCache(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := svc.SearchKeywords(cmd.Context(), cache.SearchFilter{
			Match:    cacheMatch,
			Location: cacheLocation,
			Language: cacheLanguage,
			SortBy:   cacheSortBy,
			Limit:    cacheLimit,
		})
		if err != nil {
			return err
		}

		for _, r := range records {
			cpc := "-"
			if r.CPC != nil {
				cpc = fmt.Sprintf("%.2f", *r.CPC)
			}
			fmt.Printf("%-40s vol=%-8d cpc=%-6s %s/%s\n",
				r.Keyword, r.SearchVolume, cpc, r.Location, r.Language)
		}
		fmt.Printf("%d rows\n", len(records))
		return nil
	},
}

var (
	exportFormat string
	exportOut    string
)

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached keywords as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, svc, err := initCache(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		data, err := svc.ExportKeywords(cmd.Context(), cache.SearchFilter{
			Match:    cacheMatch,
			Location: cacheLocation,
			Language: cacheLanguage,
			Limit:    cacheLimit,
		}, exportFormat)
		if err != nil {
			return err
		}

		if exportOut == "" || exportOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(exportOut, data, 0644); err != nil {
			return eris.Wrap(err, "write export file")
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), exportOut)
		return nil
	},
}

var (
	clearTable   string
	clearExpired bool
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete rows from one cache table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, svc, err := initCache(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		deleted, err := svc.ClearCache(cmd.Context(), clearTable, store.ClearFilter{
			Location:    cacheLocation,
			Language:    cacheLanguage,
			Match:       cacheMatch,
			ExpiredOnly: clearExpired,
		})
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d rows from %s\n", deleted, clearTable)
		return nil
	},
}

func init() {
	cacheSearchCmd.Flags().StringVar(&cacheMatch, "match", "", "substring match on keyword")
	cacheSearchCmd.Flags().StringVar(&cacheLocation, "location", "", "location filter")
	cacheSearchCmd.Flags().StringVar(&cacheLanguage, "language", "", "language filter")
	cacheSearchCmd.Flags().StringVar(&cacheSortBy, "sort", "", "sort field (volume, cpc, difficulty, fetched_at)")
	cacheSearchCmd.Flags().IntVar(&cacheLimit, "limit", 50, "max rows")

	cacheExportCmd.Flags().StringVar(&cacheMatch, "match", "", "substring match on keyword")
	cacheExportCmd.Flags().StringVar(&cacheLocation, "location", "", "location filter")
	cacheExportCmd.Flags().StringVar(&cacheLanguage, "language", "", "language filter")
	cacheExportCmd.Flags().IntVar(&cacheLimit, "limit", 0, "max rows (0 = cap)")
	cacheExportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, csv, or xlsx)")
	cacheExportCmd.Flags().StringVar(&exportOut, "out", "-", "output file, - for stdout")

	cacheClearCmd.Flags().StringVar(&clearTable, "table", "", "table to clear (required)")
	cacheClearCmd.Flags().StringVar(&cacheLocation, "location", "", "location filter")
	cacheClearCmd.Flags().StringVar(&cacheLanguage, "language", "", "language filter")
	cacheClearCmd.Flags().StringVar(&cacheMatch, "match", "", "keyword substring filter")
	cacheClearCmd.Flags().BoolVar(&clearExpired, "expired", false, "only delete expired rows")
	cacheClearCmd.MarkFlagRequired("table")

	cacheCmd.AddCommand(cacheStatsCmd, cacheSearchCmd, cacheExportCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
