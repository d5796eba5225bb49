package tiger

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Block is a single tabulation block read from a TIGER/Line shapefile.
type Block struct {
	GEOID    string
	Geometry *geom.MultiPolygon
}

// ReadBlocks reads every polygon record of a block shapefile. geoidField
// names the identifier attribute (case-insensitive); records with a null
// or non-polygon shape are skipped.
func ReadBlocks(shpPath, geoidField string) ([]Block, error) {
	if geoidField == "" {
		geoidField = DefaultGEOIDField
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	idx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, geoidField) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, eris.Errorf("tiger: field %q not found in %s", geoidField, shpPath)
	}

	var blocks []Block
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := PolygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		id := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		blocks = append(blocks, Block{GEOID: id, Geometry: mp})
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return blocks, nil
}

// CloseShapefile closes w, which was created for shpPath, and moves its
// attribute table to the ".dbf" name readers look for. go-shp v0.1.1
// writes the table to "<base>dbf".
func CloseShapefile(w *shp.Writer, shpPath string) error {
	w.Close()

	base := shapefileBase(shpPath)
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "tiger: finalize attribute table for %s", shpPath)
	}
	return nil
}

// ProjectionPath returns the .prj sidecar path for a shapefile.
func ProjectionPath(shpPath string) string {
	return shapefileBase(shpPath) + ".prj"
}

func shapefileBase(shpPath string) string {
	if strings.HasSuffix(strings.ToLower(shpPath), ".shp") {
		return shpPath[:len(shpPath)-len(".shp")]
	}
	return shpPath
}

// ReadProjection returns the WKT coordinate reference system stored next
// to a shapefile, or "" if the shapefile has no .prj sidecar.
func ReadProjection(shpPath string) (string, error) {
	data, err := os.ReadFile(ProjectionPath(shpPath))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "tiger: read projection")
	}
	return strings.TrimSpace(string(data)), nil
}

// NAD83WKT is the coordinate reference system of TIGER/Line 2010 files.
const NAD83WKT = `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137,298.257222101]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`
