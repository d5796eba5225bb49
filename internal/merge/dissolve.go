package merge

import (
	"math"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/census-consolidator/internal/tiger"
)

// Dissolve unions the geometries of blocks into a single MultiPolygon.
// Block attributes are discarded. No blocks yields an empty MultiPolygon.
func Dissolve(blocks []tiger.Block) (*geom.MultiPolygon, error) {
	polys := make([]polyclip.Polygon, 0, len(blocks))
	for _, b := range blocks {
		if p := toPolyclip(b.Geometry); len(p) > 0 {
			polys = append(polys, p)
		}
	}
	return fromPolyclip(unionAll(polys))
}

// unionAll reduces polys pairwise so each round halves the input, keeping
// intermediate results small.
func unionAll(polys []polyclip.Polygon) polyclip.Polygon {
	if len(polys) == 0 {
		return nil
	}
	for len(polys) > 1 {
		next := make([]polyclip.Polygon, 0, (len(polys)+1)/2)
		for i := 0; i+1 < len(polys); i += 2 {
			next = append(next, polys[i].Construct(polyclip.UNION, polys[i+1]))
		}
		if len(polys)%2 == 1 {
			next = append(next, polys[len(polys)-1])
		}
		polys = next
	}
	return polys[0]
}

// toPolyclip flattens every ring of mp into open polyclip contours.
func toPolyclip(mp *geom.MultiPolygon) polyclip.Polygon {
	if mp == nil {
		return nil
	}
	var out polyclip.Polygon
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for r := 0; r < poly.NumLinearRings(); r++ {
			if c := toContour(poly.LinearRing(r).FlatCoords()); len(c) >= 3 {
				out = append(out, c)
			}
		}
	}
	return out
}

func toContour(flat []float64) polyclip.Contour {
	c := make(polyclip.Contour, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		c = append(c, polyclip.Point{X: flat[i], Y: flat[i+1]})
	}
	// polyclip contours are implicitly closed.
	if n := len(c); n > 1 && c[0] == c[n-1] {
		c = c[:n-1]
	}
	return c
}

// ring is a closed contour with its nesting depth among all contours.
type ring struct {
	flat  []float64
	area  float64
	depth int
}

// fromPolyclip rebuilds polygons from unioned contours. A contour nested
// inside an even number of others is a shell; odd nesting marks a hole of
// the innermost enclosing shell.
func fromPolyclip(p polyclip.Polygon) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY)

	rings := make([]*ring, 0, len(p))
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		flat := make([]float64, 0, 2*len(c)+2)
		for _, pt := range c {
			flat = append(flat, pt.X, pt.Y)
		}
		flat = append(flat, c[0].X, c[0].Y)

		area := math.Abs(geom.NewLinearRingFlat(geom.XY, flat).Area())
		if area == 0 {
			continue
		}
		rings = append(rings, &ring{flat: flat, area: area})
	}

	// Larger rings first so the first enclosing shell found is the innermost.
	sort.SliceStable(rings, func(i, j int) bool { return rings[i].area > rings[j].area })

	samples := make([]geom.Coord, len(rings))
	for i, r := range rings {
		samples[i] = samplePoint(r.flat)
	}
	parents := make([]int, len(rings))
	for i := range rings {
		parents[i] = -1
		for j := 0; j < i; j++ {
			if xy.IsPointInRing(geom.XY, samples[i], rings[j].flat) {
				rings[i].depth++
				parents[i] = j
			}
		}
	}

	polys := make(map[int]*geom.Polygon)
	var order []int
	for i, r := range rings {
		if r.depth%2 != 0 {
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, r.flat)); err != nil {
			return nil, eris.Wrap(err, "merge: build shell")
		}
		polys[i] = poly
		order = append(order, i)
	}

	for i, r := range rings {
		if r.depth%2 == 0 {
			continue
		}
		shell, ok := polys[parents[i]]
		if !ok {
			continue
		}
		if err := shell.Push(geom.NewLinearRingFlat(geom.XY, r.flat)); err != nil {
			return nil, eris.Wrap(err, "merge: attach hole")
		}
	}

	for _, i := range order {
		if err := mp.Push(polys[i]); err != nil {
			return nil, eris.Wrap(err, "merge: build multipolygon")
		}
	}
	return tiger.OrientRFC7946(mp), nil
}

// samplePoint returns the midpoint of the ring's first edge, which is less
// likely than a vertex to sit on a neighbouring ring.
func samplePoint(flat []float64) geom.Coord {
	return geom.Coord{(flat[0] + flat[2]) / 2, (flat[1] + flat[3]) / 2}
}
