// Package consolidator turns a list of census block GEOIDs into a single
// dissolved geometry: it resolves the county archives, fetches and
// extracts them into a local cache, merges the requested blocks and
// writes the result.
package consolidator

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/census-consolidator/internal/cache"
	"github.com/sells-group/census-consolidator/internal/fetcher"
	"github.com/sells-group/census-consolidator/internal/geoid"
	"github.com/sells-group/census-consolidator/internal/merge"
	"github.com/sells-group/census-consolidator/internal/output"
	"github.com/sells-group/census-consolidator/internal/resilience"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

// DefaultDataDir is the cache directory used when Options.DataDir is empty.
const DefaultDataDir = "data"

var (
	// ErrNoBlocksMatched is returned by Consolidate when RequireMatch is set
	// and none of the requested blocks exist in the downloaded shapefiles.
	ErrNoBlocksMatched = eris.New("no requested blocks matched")

	// ErrNotConsolidated is returned by Write before Consolidate succeeds.
	ErrNotConsolidated = eris.New("nothing consolidated yet")
)

// Options configures a BlockConsolidator.
type Options struct {
	DataDir    string
	BaseURL    string
	GEOIDField string

	// Fetcher downloads archives. Defaults to HTTP(S) and anonymous FTP.
	Fetcher fetcher.Fetcher

	// Concurrency bounds parallel county downloads; values below 1 mean 1.
	Concurrency int

	// Lenient accepts GEOIDs that are not 15 digits instead of rejecting them.
	Lenient bool

	// RequireMatch makes an empty dissolve an error.
	RequireMatch bool
}

// BlockConsolidator dissolves a fixed set of census blocks.
type BlockConsolidator struct {
	ids        []string
	counties   []string
	archives   []string
	shapefiles []string

	opts   Options
	cache  *cache.Cache
	result *merge.Result
}

// DefaultFetcher routes http, https and ftp URLs to their fetchers. Each
// download is attempted once.
func DefaultFetcher() fetcher.Fetcher {
	return fetcher.NewRouter().
		Register(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Retry: resilience.NoRetry()}), "http", "https").
		Register(fetcher.NewFTPFetcher(fetcher.FTPOptions{Retry: resilience.NoRetry()}), "ftp")
}

// New resolves ids into counties, archive names and shapefile names, and
// opens the cache directory, creating it if needed.
func New(ids []string, opts Options) (*BlockConsolidator, error) {
	if len(ids) == 0 {
		return nil, eris.New("consolidator: at least one GEOID is required")
	}
	if !opts.Lenient {
		if err := geoid.ValidateAll(ids); err != nil {
			return nil, eris.Wrap(err, "consolidator")
		}
	}

	if opts.DataDir == "" {
		opts.DataDir = DefaultDataDir
	}
	if opts.BaseURL == "" {
		opts.BaseURL = tiger.DefaultBaseURL
	}
	if opts.GEOIDField == "" {
		opts.GEOIDField = tiger.DefaultGEOIDField
	}
	if opts.Fetcher == nil {
		opts.Fetcher = DefaultFetcher()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	c, err := cache.New(opts.DataDir, opts.Fetcher)
	if err != nil {
		return nil, err
	}

	ids = geoid.Dedupe(ids)
	counties := geoid.Counties(ids)

	zap.L().Debug("resolved block GEOIDs",
		zap.String("component", "consolidator"),
		zap.Int("blocks", len(ids)),
		zap.Strings("counties", counties),
	)

	return &BlockConsolidator{
		ids:        ids,
		counties:   counties,
		archives:   tiger.ArchiveNames(counties),
		shapefiles: tiger.ShapefileNames(counties),
		opts:       opts,
		cache:      c,
	}, nil
}

// IDs returns the deduplicated block GEOIDs.
func (b *BlockConsolidator) IDs() []string { return b.ids }

// Counties returns the distinct county keys, sorted.
func (b *BlockConsolidator) Counties() []string { return b.counties }

// Archives returns the archive file name for each county.
func (b *BlockConsolidator) Archives() []string { return b.archives }

// Shapefiles returns the shapefile name for each county.
func (b *BlockConsolidator) Shapefiles() []string { return b.shapefiles }

// ShapefilePaths returns the local shapefile paths in the cache directory.
func (b *BlockConsolidator) ShapefilePaths() []string {
	paths := make([]string, len(b.shapefiles))
	for i, name := range b.shapefiles {
		paths[i] = b.cache.Path(name)
	}
	return paths
}

// Cache returns the archive cache backing this consolidator.
func (b *BlockConsolidator) Cache() *cache.Cache { return b.cache }

// ParseGEOID decomposes id into its state, county, tract and block fields.
func (b *BlockConsolidator) ParseGEOID(id string) geoid.GEOID {
	return geoid.Parse(id)
}

// Result returns the last consolidated geometry, or nil.
func (b *BlockConsolidator) Result() *merge.Result { return b.result }

// Fetch ensures every county archive is downloaded and extracted.
func (b *BlockConsolidator) Fetch(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "consolidator"))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)

	for i, archive := range b.archives {
		archive := archive
		shapefile := b.shapefiles[i]
		g.Go(func() error {
			url := tiger.ArchiveURL(b.opts.BaseURL, archive)
			if _, _, err := b.cache.EnsureArchive(gctx, archive, url); err != nil {
				return eris.Wrapf(err, "consolidator: fetch %s", archive)
			}
			if _, _, err := b.cache.EnsureExtracted(gctx, archive, shapefile); err != nil {
				return eris.Wrapf(err, "consolidator: extract %s", archive)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("county archives ready", zap.Int("counties", len(b.archives)))
	return nil
}

// Consolidate fetches the county shapefiles and dissolves the requested
// blocks into one geometry.
func (b *BlockConsolidator) Consolidate(ctx context.Context) (*merge.Result, error) {
	if err := b.Fetch(ctx); err != nil {
		return nil, err
	}

	res, err := merge.Merge(b.ShapefilePaths(), b.ids, b.opts.GEOIDField)
	if err != nil {
		return nil, eris.Wrap(err, "consolidator: merge")
	}

	if res.Matched == 0 {
		if b.opts.RequireMatch {
			return nil, eris.Wrapf(ErrNoBlocksMatched, "consolidator: 0 of %d blocks found in field %s", len(b.ids), b.opts.GEOIDField)
		}
		zap.L().Warn("no requested blocks matched; check the GEOID vintage and field name",
			zap.String("component", "consolidator"),
			zap.String("geoid_field", b.opts.GEOIDField),
			zap.Int("requested", len(b.ids)),
		)
	}

	b.result = res
	return res, nil
}

// Write serializes the consolidated geometry to path. A path containing
// ".geojson" produces GeoJSON; anything else a shapefile.
func (b *BlockConsolidator) Write(path string) error {
	if b.result == nil {
		return ErrNotConsolidated
	}
	return output.Write(path, b.result)
}
