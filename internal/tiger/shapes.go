package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// PolygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile outer rings wind clockwise and holes counter-clockwise; each hole
// is attached to the outer ring that contains it. Returns nil for empty
// or degenerate input.
func PolygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var outers []*geom.Polygon
	var holes []*geom.LinearRing

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if end-start < 4 {
			zap.L().Debug("tiger: skipping degenerate polygon ring", zap.Int32("part", i))
			continue
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		flat := flatCoords(coords)

		if xy.IsRingCounterClockwise(geom.XY, flat) {
			holes = append(holes, geom.NewLinearRingFlat(geom.XY, flat))
			continue
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		outers = append(outers, poly)
	}

	for _, hole := range holes {
		owner := containingPolygon(outers, hole)
		if owner == nil {
			// Orphan hole: keep it as an island rather than dropping area.
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(reverseRing(hole)); err == nil {
				outers = append(outers, poly)
			}
			continue
		}
		if err := owner.Push(hole); err != nil {
			zap.L().Debug("tiger: skipping malformed hole", zap.Error(err))
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range outers {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon part", zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// containingPolygon returns the outer polygon whose shell contains the
// first vertex of ring.
func containingPolygon(outers []*geom.Polygon, ring *geom.LinearRing) *geom.Polygon {
	first := ring.Coord(0)
	for _, poly := range outers {
		if xy.IsPointInRing(geom.XY, first, poly.LinearRing(0).FlatCoords()) {
			return poly
		}
	}
	return nil
}

// MultiPolygonToShape converts a geometry to a shapefile shape. Shells are
// written clockwise and holes counter-clockwise. An empty geometry becomes
// a null shape.
func MultiPolygonToShape(mp *geom.MultiPolygon) shp.Shape {
	if mp == nil || mp.Empty() {
		return &shp.Null{}
	}

	var parts [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for r := 0; r < poly.NumLinearRings(); r++ {
			flat := poly.LinearRing(r).FlatCoords()
			ccw := xy.IsRingCounterClockwise(geom.XY, flat)
			// Shell (r == 0) must be clockwise, holes counter-clockwise.
			if (r == 0) == ccw {
				flat = reverseFlat(flat)
			}
			parts = append(parts, shpPoints(flat))
		}
	}

	polygon := shp.Polygon(*shp.NewPolyLine(parts))
	return &polygon
}

// OrientRFC7946 returns a copy of mp whose shells wind counter-clockwise
// and holes clockwise, as GeoJSON recommends.
func OrientRFC7946(mp *geom.MultiPolygon) *geom.MultiPolygon {
	out := geom.NewMultiPolygon(geom.XY)
	if mp == nil {
		return out
	}
	for i := 0; i < mp.NumPolygons(); i++ {
		src := mp.Polygon(i)
		dst := geom.NewPolygon(geom.XY)
		for r := 0; r < src.NumLinearRings(); r++ {
			flat := append([]float64(nil), src.LinearRing(r).FlatCoords()...)
			ccw := xy.IsRingCounterClockwise(geom.XY, flat)
			if (r == 0) != ccw {
				flat = reverseFlat(flat)
			}
			_ = dst.Push(geom.NewLinearRingFlat(geom.XY, flat))
		}
		_ = out.Push(dst)
	}
	return out
}

func shpPoints(flat []float64) []shp.Point {
	pts := make([]shp.Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	return pts
}

func reverseRing(r *geom.LinearRing) *geom.LinearRing {
	return geom.NewLinearRingFlat(geom.XY, reverseFlat(r.FlatCoords()))
}

// reverseFlat reverses the vertex order of XY flat coordinates.
func reverseFlat(flat []float64) []float64 {
	out := make([]float64, len(flat))
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		out[2*i] = flat[2*(n-1-i)]
		out[2*i+1] = flat[2*(n-1-i)+1]
	}
	return out
}

// flatCoords converts a slice of Coord to flat coordinate pairs for go-geom.
func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
