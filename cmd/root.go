package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/config"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "census-consolidator",
	Short: "Dissolve census blocks into a single boundary",
	Long: `Downloads the TIGER/Line 2010 block shapefiles for the counties covering a
list of census block GEOIDs, merges the selected blocks into one polygon and
writes it as a shapefile or GeoJSON.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if legacy, _ := cmd.Flags().GetBool("legacy-ftp"); legacy {
			cfg.Tiger.BaseURL = tiger.LegacyFTPBaseURL
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if err := cfg.Validate(commandMode(cmd)); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// commandMode returns the name of the top-level subcommand cmd belongs to.
func commandMode(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

func init() {
	rootCmd.PersistentFlags().Bool("legacy-ftp", false, "download archives from the FTP mirror "+tiger.LegacyFTPBaseURL)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
