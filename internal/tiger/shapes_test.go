package tiger

import (
	"math"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

func reversed(pts []shp.Point) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i := range pts {
		out[i] = pts[len(pts)-1-i]
	}
	return out
}

func TestPolygonToMultiPolygon_Single(t *testing.T) {
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(-80, 25)}))

	mp := PolygonToMultiPolygon(&poly)
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.InDelta(t, 1.0, math.Abs(mp.Area()), 1e-9)
}

func TestPolygonToMultiPolygon_HoleAttached(t *testing.T) {
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0}}
	hole := reversed(square(1, 1))
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{outer, hole}))

	mp := PolygonToMultiPolygon(&poly)
	require.NotNil(t, mp)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.InDelta(t, 15.0, math.Abs(mp.Area()), 1e-9)
}

func TestPolygonToMultiPolygon_TwoIslands(t *testing.T) {
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(0, 0), square(5, 5)}))

	mp := PolygonToMultiPolygon(&poly)
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestPolygonToMultiPolygon_Empty(t *testing.T) {
	assert.Nil(t, PolygonToMultiPolygon(nil))
	assert.Nil(t, PolygonToMultiPolygon(&shp.Polygon{}))
}

func TestMultiPolygonToShape_Orientation(t *testing.T) {
	// Counter-clockwise shell with a clockwise hole: both must flip.
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 4, 0, 4, 4, 0, 4, 0, 0,
		1, 1, 1, 2, 2, 2, 2, 1, 1, 1,
	}, []int{10, 20})
	require.NoError(t, mp.Push(poly))

	shape := MultiPolygonToShape(mp)
	out, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	require.Equal(t, int32(2), out.NumParts)

	shell := flatFromPoints(out.Points[out.Parts[0]:out.Parts[1]])
	hole := flatFromPoints(out.Points[out.Parts[1]:])
	assert.False(t, xy.IsRingCounterClockwise(geom.XY, shell))
	assert.True(t, xy.IsRingCounterClockwise(geom.XY, hole))

	back := PolygonToMultiPolygon(out)
	require.NotNil(t, back)
	assert.InDelta(t, 15.0, math.Abs(back.Area()), 1e-9)
}

func TestMultiPolygonToShape_Empty(t *testing.T) {
	_, ok := MultiPolygonToShape(geom.NewMultiPolygon(geom.XY)).(*shp.Null)
	assert.True(t, ok)
	_, ok = MultiPolygonToShape(nil).(*shp.Null)
	assert.True(t, ok)
}

func TestOrientRFC7946(t *testing.T) {
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(0, 0)}))
	mp := PolygonToMultiPolygon(&poly)
	require.NotNil(t, mp)

	out := OrientRFC7946(mp)
	assert.True(t, xy.IsRingCounterClockwise(geom.XY, out.Polygon(0).LinearRing(0).FlatCoords()))
	// Input untouched.
	assert.False(t, xy.IsRingCounterClockwise(geom.XY, mp.Polygon(0).LinearRing(0).FlatCoords()))
}

func TestReverseFlat(t *testing.T) {
	assert.Equal(t, []float64{5, 6, 3, 4, 1, 2}, reverseFlat([]float64{1, 2, 3, 4, 5, 6}))
}

func flatFromPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
