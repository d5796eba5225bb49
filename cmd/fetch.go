package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/consolidator"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [GEOID...]",
	Short: "Download and extract the county shapefiles without merging",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, _ := cmd.Flags().GetString("file")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		ids, err := collectGEOIDs(args, file)
		if err != nil {
			return err
		}

		opts, err := consolidatorOptions(ctx)
		if err != nil {
			return err
		}
		if concurrency > 0 {
			opts.Concurrency = concurrency
		}

		b, err := consolidator.New(ids, opts)
		if err != nil {
			return err
		}

		zap.L().Info("fetching county archives",
			zap.String("command", "fetch"),
			zap.Strings("counties", b.Counties()),
			zap.Int("concurrency", opts.Concurrency),
		)
		if err := b.Fetch(ctx); err != nil {
			return err
		}

		for _, p := range b.ShapefilePaths() {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("file", "", "read GEOIDs from a .txt, .csv, .json or .xlsx file")
	fetchCmd.Flags().Int("concurrency", 0, "parallel county downloads (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
