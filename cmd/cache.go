package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/cache"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean the local TIGER archive cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached county archives",
	RunE: func(cmd *cobra.Command, _ []string) error {
		verify, _ := cmd.Flags().GetBool("verify")

		c, err := cache.New(cfg.Data.Dir, nil)
		if err != nil {
			return err
		}
		entries, err := c.Entries()
		if err != nil {
			return err
		}

		headers := []string{"Archive", "Bytes", "Extracted", "Fetched"}
		if verify {
			headers = append(headers, "Checksum")
		}
		table := newTable(cmd.OutOrStdout(), headers...)
		for _, e := range entries {
			fetched := "-"
			if e.Meta != nil {
				fetched = e.Meta.FetchedAt.Format(time.RFC3339)
			}
			row := []string{e.Archive, strconv.FormatInt(e.Bytes, 10), strconv.FormatBool(e.Extracted), fetched}
			if verify {
				status := "ok"
				if err := c.Verify(e.Archive); err != nil {
					status = "MISMATCH"
				} else if e.Meta == nil {
					status = "-"
				}
				row = append(row, status)
			}
			table.Append(row)
		}
		table.Render()
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean [COUNTY...]",
	Short: "Remove cached archives and extracted shapefiles",
	Long: `Removes the archive, metadata and extracted files for each given 5-digit
county key. With --all, every cached county is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return eris.New("give one or more county keys, or --all")
		}

		c, err := cache.New(cfg.Data.Dir, nil)
		if err != nil {
			return err
		}

		var archives []string
		if all {
			entries, err := c.Entries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				archives = append(archives, e.Archive)
			}
		} else {
			for _, a := range args {
				archives = append(archives, tiger.ArchiveNames(splitAndTrim(a))...)
			}
		}

		var total int
		for _, archive := range archives {
			n, err := c.Remove(archive)
			if err != nil {
				return err
			}
			total += n
			zap.L().Debug("removed cached archive", zap.String("archive", archive), zap.Int("files", n))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "removed %d files for %d archives\n", total, len(archives))
		return nil
	},
}

func init() {
	cacheListCmd.Flags().Bool("verify", false, "recompute archive checksums")
	cacheCleanCmd.Flags().Bool("all", false, "remove every cached county")
	cacheCmd.AddCommand(cacheListCmd, cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}
