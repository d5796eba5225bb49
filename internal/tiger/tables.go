// Package tiger locates Census TIGER/Line 2010 tabulation block archives
// and reads their shapefiles into go-geom geometries.
package tiger

import (
	"fmt"
	"strings"
)

// Year is the TIGER/Line vintage whose block files are consolidated.
const Year = 2010

// DefaultBaseURL serves the 2010 tabulation block archives over HTTPS.
const DefaultBaseURL = "https://www2.census.gov/geo/tiger/TIGER2010/TABBLOCK/2010/"

// LegacyFTPBaseURL is the FTP mirror of DefaultBaseURL.
const LegacyFTPBaseURL = "ftp://ftp2.census.gov/geo/tiger/TIGER2010/TABBLOCK/2010/"

// DefaultGEOIDField is the block identifier attribute in tabblock10 files.
const DefaultGEOIDField = "GEOID10"

const fileStem = "tl_%d_%s_tabblock10"

// ArchiveName returns the ZIP archive name holding a county's blocks,
// e.g. tl_2010_06037_tabblock10.zip.
func ArchiveName(county string) string {
	return fmt.Sprintf(fileStem, Year, county) + ".zip"
}

// ShapefileName returns the .shp name extracted from a county's archive.
func ShapefileName(county string) string {
	return fmt.Sprintf(fileStem, Year, county) + ".shp"
}

// ShapefileForArchive maps an archive name to the shapefile it contains.
func ShapefileForArchive(archive string) string {
	return strings.TrimSuffix(archive, ".zip") + ".shp"
}

// ArchiveNames maps each county to its archive name, preserving order.
func ArchiveNames(counties []string) []string {
	out := make([]string, len(counties))
	for i, c := range counties {
		out[i] = ArchiveName(c)
	}
	return out
}

// ShapefileNames maps each county to its shapefile name, preserving order.
func ShapefileNames(counties []string) []string {
	out := make([]string, len(counties))
	for i, c := range counties {
		out[i] = ShapefileName(c)
	}
	return out
}

// ArchiveURL joins a base URL and an archive name with a single slash.
func ArchiveURL(baseURL, archive string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + archive
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for the 50 states,
// DC and Puerto Rico.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}
