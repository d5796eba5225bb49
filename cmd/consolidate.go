package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/consolidator"
	"github.com/sells-group/census-consolidator/internal/output"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [GEOID...]",
	Short: "Dissolve census blocks into one polygon and write it out",
	Long: `Fetches the county block shapefiles for the given GEOIDs (cached in the data
directory), dissolves the requested blocks and writes the result. An --out
path containing ".geojson" produces GeoJSON; anything else a shapefile.`,
	Example: `  census-consolidator consolidate 060371976001008 060371976001009 --out dtla.geojson
  census-consolidator consolidate --file dtla.csv --out dtla.shp`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, _ := cmd.Flags().GetString("file")
		out, _ := cmd.Flags().GetString("out")
		lenient, _ := cmd.Flags().GetBool("lenient")
		requireMatch, _ := cmd.Flags().GetBool("require-match")

		ids, err := collectGEOIDs(args, file)
		if err != nil {
			return err
		}

		opts, err := consolidatorOptions(ctx)
		if err != nil {
			return err
		}
		if lenient {
			opts.Lenient = true
		}
		if requireMatch {
			opts.RequireMatch = true
		}

		log := zap.L().With(zap.String("command", "consolidate"))

		b, err := consolidator.New(ids, opts)
		if err != nil {
			return err
		}
		log.Info("consolidating blocks",
			zap.Int("blocks", len(b.IDs())),
			zap.Strings("counties", b.Counties()),
		)

		res, err := b.Consolidate(ctx)
		if err != nil {
			return eris.Wrap(err, "consolidate")
		}
		if err := b.Write(out); err != nil {
			return eris.Wrap(err, "consolidate: write")
		}

		written := out
		if output.FormatFor(out) == output.FormatShapefile {
			written = output.ShapefilePath(out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d of %d blocks to %s\n", res.Matched, len(b.IDs()), written)
		for _, id := range res.Missing {
			fmt.Fprintf(cmd.OutOrStdout(), "  missing: %s\n", id)
		}
		return nil
	},
}

func init() {
	consolidateCmd.Flags().String("file", "", "read GEOIDs from a .txt, .csv, .json or .xlsx file")
	consolidateCmd.Flags().String("out", "", "output path (.geojson or .shp)")
	consolidateCmd.Flags().Bool("lenient", false, "accept GEOIDs that are not 15 digits")
	consolidateCmd.Flags().Bool("require-match", false, "fail when no requested block is found")
	_ = consolidateCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(consolidateCmd)
}
