package consolidator

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-consolidator/internal/fetcher"
	"github.com/sells-group/census-consolidator/internal/geoid"
	"github.com/sells-group/census-consolidator/internal/output"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

func squarePoints(x, y float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y + 1}, {X: x + 1, Y: y}, {X: x, Y: y}}
}

// countyArchive builds a TIGER-style ZIP for county holding one unit
// square block per id, laid out left to right.
func countyArchive(t *testing.T, county string, ids []string) []byte {
	t.Helper()

	dir := t.TempDir()
	shpPath := filepath.Join(dir, tiger.ShapefileName(county))
	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("GEOID10", 15)}))
	for i, id := range ids {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{squarePoints(float64(i), 0)}))
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, id))
	}
	require.NoError(t, tiger.CloseShapefile(w, shpPath))
	require.NoError(t, os.WriteFile(tiger.ProjectionPath(shpPath), []byte(tiger.NAD83WKT), 0o644))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	stem := strings.TrimSuffix(tiger.ShapefileName(county), ".shp")
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		data, err := os.ReadFile(filepath.Join(dir, stem+ext))
		require.NoError(t, err)
		fw, err := zw.Create(stem + ext)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// tigerServer serves county archives by name and counts requests.
func tigerServer(t *testing.T, archives map[string][]byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, ok := archives[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testOptions(t *testing.T, baseURL string) Options {
	return Options{
		DataDir: filepath.Join(t.TempDir(), "data"),
		BaseURL: baseURL + "/geo/tiger/TIGER2010/TABBLOCK/2010/",
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
	}
}

func TestNew_ExampleBlock(t *testing.T) {
	b, err := New([]string{"060371976001008"}, Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, []string{"06037"}, b.Counties())
	assert.Equal(t, []string{"tl_2010_06037_tabblock10.zip"}, b.Archives())
	assert.Equal(t, []string{"tl_2010_06037_tabblock10.shp"}, b.Shapefiles())

	g := b.ParseGEOID("060371976001008")
	assert.Equal(t, geoid.GEOID{State: "06", County: "037", Tract: "197600", Block: "1008"}, g)
}

func TestNew_CountiesDedupedAndOrderIndependent(t *testing.T) {
	ids := []string{"060371976001008", "010010201001000", "060371976001009", "060371976001008"}
	b1, err := New(ids, Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	reversed := []string{ids[3], ids[2], ids[1], ids[0]}
	b2, err := New(reversed, Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, []string{"01001", "06037"}, b1.Counties())
	assert.Equal(t, b1.Counties(), b2.Counties())
	assert.Len(t, b1.IDs(), 3)
}

func TestNew_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "data")
	_, err := New([]string{"060371976001008"}, Options{DataDir: dir})
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestNew_RejectsMalformed(t *testing.T) {
	_, err := New([]string{"0603719760"}, Options{DataDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, eris.Is(err, geoid.ErrMalformed))
}

func TestNew_LenientAcceptsMalformed(t *testing.T) {
	b, err := New([]string{"0603719760"}, Options{DataDir: t.TempDir(), Lenient: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"06037"}, b.Counties())
}

func TestNew_NoIDs(t *testing.T) {
	_, err := New(nil, Options{DataDir: t.TempDir()})
	assert.Error(t, err)
}

func TestConsolidate_EndToEnd(t *testing.T) {
	archive := countyArchive(t, "06037", []string{"060371976001008", "060371976001009", "060371976001010"})
	srv, hits := tigerServer(t, map[string][]byte{tiger.ArchiveName("06037"): archive})

	opts := testOptions(t, srv.URL)
	b, err := New([]string{"060371976001008", "060371976001009"}, opts)
	require.NoError(t, err)

	res, err := b.Consolidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Empty(t, res.Missing)
	assert.Equal(t, 1, res.Geometry.NumPolygons())
	assert.InDelta(t, 2.0, res.Geometry.Area(), 1e-9)
	assert.Equal(t, tiger.NAD83WKT, res.CRS)
	assert.Equal(t, int32(1), hits.Load())

	out := filepath.Join(t.TempDir(), "dtla.geojson")
	require.NoError(t, b.Write(out))
	assert.FileExists(t, out)

	shpOut := filepath.Join(t.TempDir(), "dtla.shp")
	require.NoError(t, b.Write(shpOut))
	assert.Equal(t, output.FormatShapefile, output.FormatFor(shpOut))
	assert.FileExists(t, shpOut)
}

func TestConsolidate_FetchIsIdempotent(t *testing.T) {
	archive := countyArchive(t, "06037", []string{"060371976001008"})
	srv, hits := tigerServer(t, map[string][]byte{tiger.ArchiveName("06037"): archive})
	opts := testOptions(t, srv.URL)

	for i := 0; i < 2; i++ {
		b, err := New([]string{"060371976001008"}, opts)
		require.NoError(t, err)
		_, err = b.Consolidate(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestConsolidate_MultipleCountiesConcurrently(t *testing.T) {
	srv, hits := tigerServer(t, map[string][]byte{
		tiger.ArchiveName("06037"): countyArchive(t, "06037", []string{"060371976001008"}),
		tiger.ArchiveName("01001"): countyArchive(t, "01001", []string{"010010201001000"}),
	})
	opts := testOptions(t, srv.URL)
	opts.Concurrency = 2

	b, err := New([]string{"060371976001008", "010010201001000"}, opts)
	require.NoError(t, err)

	res, err := b.Consolidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, int32(2), hits.Load())
}

func TestConsolidate_NoMatchYieldsEmptyResult(t *testing.T) {
	archive := countyArchive(t, "06037", []string{"060371976001008"})
	srv, _ := tigerServer(t, map[string][]byte{tiger.ArchiveName("06037"): archive})

	b, err := New([]string{"060379999999999"}, testOptions(t, srv.URL))
	require.NoError(t, err)

	res, err := b.Consolidate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, []string{"060379999999999"}, res.Missing)

	require.NoError(t, b.Write(filepath.Join(t.TempDir(), "empty.geojson")))
}

func TestConsolidate_RequireMatch(t *testing.T) {
	archive := countyArchive(t, "06037", []string{"060371976001008"})
	srv, _ := tigerServer(t, map[string][]byte{tiger.ArchiveName("06037"): archive})

	opts := testOptions(t, srv.URL)
	opts.RequireMatch = true
	b, err := New([]string{"060379999999999"}, opts)
	require.NoError(t, err)

	_, err = b.Consolidate(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoBlocksMatched))
	assert.Nil(t, b.Result())
}

func TestConsolidate_DownloadFailure(t *testing.T) {
	srv, _ := tigerServer(t, nil)

	b, err := New([]string{"060371976001008"}, testOptions(t, srv.URL))
	require.NoError(t, err)

	_, err = b.Consolidate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tl_2010_06037_tabblock10.zip")

	entries, err := b.Cache().Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWrite_BeforeConsolidate(t *testing.T) {
	b, err := New([]string{"060371976001008"}, Options{DataDir: t.TempDir()})
	require.NoError(t, err)

	err = b.Write(filepath.Join(t.TempDir(), "out.geojson"))
	assert.True(t, eris.Is(err, ErrNotConsolidated))
}
