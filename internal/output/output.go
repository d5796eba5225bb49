// Package output writes a consolidated geometry as GeoJSON or as an
// ESRI shapefile.
package output

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/merge"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

// Format is an output encoding.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shapefile"
)

// BlocksField is the shapefile attribute holding the matched block count.
const BlocksField = "BLOCKS"

// FormatFor picks the encoding from the path: any path containing
// ".geojson" (case-sensitive) is GeoJSON, everything else a shapefile.
func FormatFor(path string) Format {
	if strings.Contains(path, ".geojson") {
		return FormatGeoJSON
	}
	return FormatShapefile
}

// ShapefilePath returns the .shp path a shapefile write to path produces.
func ShapefilePath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		return path
	}
	return path + ".shp"
}

// Write serializes res to path, overwriting existing files.
func Write(path string, res *merge.Result) error {
	if path == "" {
		return eris.New("output: path is required")
	}
	if res == nil {
		return eris.New("output: nothing to write")
	}

	format := FormatFor(path)
	zap.L().Info("writing consolidated geometry",
		zap.String("component", "output"),
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("blocks", res.Matched),
	)

	if format == FormatGeoJSON {
		return writeGeoJSON(path, res)
	}
	return writeShapefile(ShapefilePath(path), res)
}

// EncodeGeoJSON renders res as a FeatureCollection with one feature in
// EPSG:4326 longitude/latitude. NAD83 coordinates are passed through
// unchanged; the datum shift is below the precision of block boundaries.
func EncodeGeoJSON(res *merge.Result) ([]byte, error) {
	feature := &geojson.Feature{
		Properties: map[string]any{
			"blocks":    res.Matched,
			"requested": res.Requested,
			"missing":   nonNil(res.Missing),
		},
	}
	if !res.Empty() {
		feature.Geometry = tiger.OrientRFC7946(res.Geometry)
	}

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{feature}}
	data, err := json.MarshalIndent(fc, "", "    ")
	if err != nil {
		return nil, eris.Wrap(err, "output: encode geojson")
	}
	return data, nil
}

func writeGeoJSON(path string, res *merge.Result) error {
	data, err := EncodeGeoJSON(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "output: write %s", path)
	}
	return nil
}

func writeShapefile(path string, res *merge.Result) (err error) {
	// go-shp stamps every record with the writer's shape type.
	shapeType := shp.ShapeType(shp.POLYGON)
	if res.Empty() {
		shapeType = shp.NULL
	}

	w, err := shp.Create(path, shapeType)
	if err != nil {
		return eris.Wrapf(err, "output: create shapefile %s", path)
	}
	defer func() {
		if cerr := tiger.CloseShapefile(w, path); err == nil {
			err = cerr
		}
	}()

	if err := w.SetFields([]shp.Field{shp.NumberField(BlocksField, 10)}); err != nil {
		return eris.Wrap(err, "output: set fields")
	}

	row := w.Write(tiger.MultiPolygonToShape(res.Geometry))
	if err := w.WriteAttribute(int(row), 0, res.Matched); err != nil {
		return eris.Wrap(err, "output: write attribute")
	}

	if res.CRS != "" {
		if err := os.WriteFile(tiger.ProjectionPath(path), []byte(res.CRS), 0o644); err != nil {
			return eris.Wrap(err, "output: write projection")
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
