package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sells-group/census-consolidator/internal/geoid"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [GEOID...]",
	Short: "Show the fields, counties and TIGER files for a set of GEOIDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		ids, err := collectGEOIDs(args, file)
		if err != nil {
			return err
		}
		ids = geoid.Dedupe(ids)

		w := cmd.OutOrStdout()
		printGEOIDTable(w, ids)
		fmt.Fprintln(w)

		counties := geoid.Counties(ids)
		printCountyTable(w, counties, cfg.Tiger.BaseURL)
		return nil
	},
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printGEOIDTable(w io.Writer, ids []string) {
	table := newTable(w, "GEOID", "State", "County", "Tract", "Block", "Valid")
	for _, id := range ids {
		g := geoid.Parse(id)
		valid := "yes"
		if geoid.Validate(id) != nil {
			valid = "no"
		}
		state := g.State
		if abbr, ok := tiger.AbbrFromFIPS(g.State); ok {
			state = g.State + " (" + abbr + ")"
		}
		table.Append([]string{id, state, g.County, g.Tract, g.Block, valid})
	}
	table.Render()
}

func printCountyTable(w io.Writer, counties []string, baseURL string) {
	table := newTable(w, "County", "Archive", "Shapefile", "URL")
	for _, c := range counties {
		archive := tiger.ArchiveName(c)
		table.Append([]string{c, archive, tiger.ShapefileName(c), tiger.ArchiveURL(baseURL, archive)})
	}
	table.Render()
}

func init() {
	resolveCmd.Flags().String("file", "", "read GEOIDs from a .txt, .csv, .json or .xlsx file")
	rootCmd.AddCommand(resolveCmd)
}
