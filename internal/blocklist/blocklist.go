// Package blocklist reads lists of block GEOIDs from files.
//
// Supported inputs: .xlsx workbooks (first column of the first sheet),
// .json files holding an array of strings, and anything else as CSV or
// plain text with one GEOID in the first column of each line. Lines
// starting with '#', blank cells and header rows are skipped.
package blocklist

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/fetcher"
)

// Read returns the GEOIDs listed in the file at path, in file order.
func Read(path string) ([]string, error) {
	return ReadContext(context.Background(), path)
}

// ReadContext is Read with cancellation.
func ReadContext(ctx context.Context, path string) ([]string, error) {
	var (
		cells []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		cells, err = readXLSX(path)
	case ".json":
		cells, err = readJSON(ctx, path)
	default:
		cells, err = readCSV(ctx, path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "blocklist: read %s", path)
	}

	ids := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); isCandidate(c) {
			ids = append(ids, c)
		}
	}

	zap.L().Debug("read block list",
		zap.String("component", "blocklist"),
		zap.String("path", path),
		zap.Int("geoids", len(ids)),
	)
	return ids, nil
}

// isCandidate rejects empty cells and header labels such as "GEOID10".
func isCandidate(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func readXLSX(path string) ([]string, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, err
	}
	return firstColumn(rows), nil
}

// readCSV returns the first field of each record. Records may have
// varying field counts.
func readCSV(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var cells []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return cells, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if len(record) > 0 {
			cells = append(cells, record[0])
		}
	}
}

// readJSON decodes a top-level array of strings. An empty file lists
// nothing.
func readJSON(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "json: cancelled")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	var ids []string
	if err := json.NewDecoder(f).Decode(&ids); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: decode string array")
	}
	return ids, nil
}

func firstColumn(rows [][]string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row[0])
		}
	}
	return out
}
