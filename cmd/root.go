package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dataforseo-mcp/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dataforseo-mcp",
	Short: "Caching tool server for DataForSEO keyword research",
	Long:  "Serves SEO research tools backed by the DataForSEO API with a read-through cache, so repeated keyword lookups never pay for the same data twice.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
