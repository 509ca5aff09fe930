package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataforseo-mcp/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Listing needs names and descriptions only, no live backends.
		reg := tools.NewRegistry()
		for _, h := range []tools.Handler{
			tools.NewSearchVolumeTool(nil, nil),
			tools.NewKeywordSuggestionsTool(nil, nil),
			tools.NewRankedKeywordsTool(nil, nil),
			tools.NewDomainOverviewTool(nil, nil),
			tools.NewCacheSearchTool(nil),
			tools.NewCacheStatsTool(nil),
			tools.NewCacheExportTool(nil),
			tools.NewCacheClearTool(nil),
		} {
			if err := reg.Register(h); err != nil {
				return err
			}
		}

		for _, h := range reg.List() {
			fmt.Printf("%-22s %s\n", h.Name(), h.Description())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
