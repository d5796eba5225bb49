// Package merge loads block shapefiles, keeps the requested blocks and
// dissolves them into one consolidated geometry.
package merge

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/tiger"
)

// Result is the single consolidated row produced by Merge.
type Result struct {
	Geometry  *geom.MultiPolygon
	Requested int
	Matched   int
	Missing   []string
	CRS       string
}

// Empty reports whether the consolidated geometry has no area.
func (r *Result) Empty() bool {
	return r == nil || r.Geometry == nil || r.Geometry.Empty()
}

// Load reads every shapefile in paths and concatenates their blocks.
func Load(paths []string, geoidField string) ([]tiger.Block, error) {
	log := zap.L().With(zap.String("component", "merge"))

	var all []tiger.Block
	for _, p := range paths {
		log.Debug("reading shapefile", zap.String("path", p))
		blocks, err := tiger.ReadBlocks(p, geoidField)
		if err != nil {
			return nil, eris.Wrapf(err, "merge: load %s", p)
		}
		log.Debug("loaded blocks", zap.String("path", p), zap.Int("blocks", len(blocks)))
		all = append(all, blocks...)
	}
	return all, nil
}

// Filter keeps the blocks whose GEOID is in ids, in input order.
func Filter(blocks []tiger.Block, ids []string) []tiger.Block {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []tiger.Block
	for _, b := range blocks {
		if _, ok := want[b.GEOID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// missing returns the requested ids absent from matched, sorted and
// deduplicated.
func missing(ids []string, matched []tiger.Block) []string {
	found := make(map[string]struct{}, len(matched))
	for _, b := range matched {
		found[b.GEOID] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Merge loads, filters and dissolves. A request that matches no blocks
// still yields a Result, with an empty geometry.
func Merge(paths []string, ids []string, geoidField string) (*Result, error) {
	log := zap.L().With(zap.String("component", "merge"))

	blocks, err := Load(paths, geoidField)
	if err != nil {
		return nil, err
	}

	log.Debug("filtering blocks", zap.Int("loaded", len(blocks)), zap.Int("requested", len(ids)))
	matched := Filter(blocks, ids)

	log.Debug("dissolving blocks", zap.Int("matched", len(matched)))
	geometry, err := Dissolve(matched)
	if err != nil {
		return nil, err
	}

	crs := tiger.NAD83WKT
	if len(paths) > 0 {
		prj, err := tiger.ReadProjection(paths[0])
		if err != nil {
			return nil, eris.Wrap(err, "merge: read projection")
		}
		if prj != "" {
			crs = prj
		}
	}

	res := &Result{
		Geometry:  geometry,
		Requested: len(ids),
		Matched:   len(matched),
		Missing:   missing(ids, matched),
		CRS:       crs,
	}

	log.Info("merge complete",
		zap.Int("requested", res.Requested),
		zap.Int("matched", res.Matched),
		zap.Int("missing", len(res.Missing)),
		zap.Int("polygons", geometry.NumPolygons()),
	)
	return res, nil
}
