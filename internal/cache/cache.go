// Package cache keeps downloaded TIGER/Line archives and their extracted
// shapefiles in a flat local directory, keyed by file name.
//
// Concurrency: within a process, concurrent requests for the same archive
// are collapsed into one download or extraction. Across processes, every
// file is written under a temporary name and renamed into place, so readers
// never observe a partial archive or shapefile. Two processes racing on the
// same key may both download; the last rename wins with identical content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/census-consolidator/internal/fetcher"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

const metaSuffix = ".meta.yaml"

// Meta is the sidecar record written next to each downloaded archive.
type Meta struct {
	Source    string    `yaml:"source"`
	Bytes     int64     `yaml:"bytes"`
	SHA256    string    `yaml:"sha256"`
	FetchedAt time.Time `yaml:"fetched_at"`
}

// Entry describes one cached archive.
type Entry struct {
	Archive   string
	Bytes     int64
	Extracted bool
	Meta      *Meta
}

// Cache is a directory of archives and extracted shapefiles.
type Cache struct {
	dir     string
	fetcher fetcher.Fetcher
	group   singleflight.Group
	now     func() time.Time
}

// New opens the cache at dir, creating the directory if needed.
func New(dir string, f fetcher.Fetcher) (*Cache, error) {
	if dir == "" {
		return nil, eris.New("cache: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "cache: create dir")
	}
	return &Cache{dir: dir, fetcher: f, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the local path of a cached file.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// EnsureArchive makes sure archive is present locally, downloading it from
// url on a miss. It returns the local path and whether a download happened.
func (c *Cache) EnsureArchive(ctx context.Context, archive, url string) (string, bool, error) {
	path := c.Path(archive)
	log := zap.L().With(
		zap.String("component", "cache"),
		zap.String("archive", archive),
	)

	if exists(path) {
		log.Debug("archive already cached, skipping download", zap.String("path", path))
		return path, false, nil
	}
	if c.fetcher == nil {
		return "", false, eris.Errorf("cache: %s not cached and no fetcher configured", archive)
	}

	v, err, _ := c.group.Do("archive:"+archive, func() (any, error) {
		if exists(path) {
			return false, nil
		}
		log.Info("downloading archive", zap.String("url", url), zap.String("path", path))
		if err := c.download(ctx, archive, url); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return "", false, err
	}
	return path, v.(bool), nil
}

func (c *Cache) download(ctx context.Context, archive, url string) error {
	tmp := c.tempPath(archive)
	defer func() { _ = os.Remove(tmp) }()

	n, err := c.fetcher.DownloadToFile(ctx, url, tmp)
	if err != nil {
		return eris.Wrapf(err, "cache: download %s", archive)
	}

	sum, err := fileSHA256(tmp)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, c.Path(archive)); err != nil {
		return eris.Wrapf(err, "cache: commit %s", archive)
	}

	meta := Meta{Source: url, Bytes: n, SHA256: sum, FetchedAt: c.now().UTC()}
	if err := c.writeMeta(archive, meta); err != nil {
		zap.L().Warn("cache: failed to write archive metadata", zap.String("archive", archive), zap.Error(err))
	}
	return nil
}

// EnsureExtracted makes sure shapefile has been extracted from archive,
// unzipping every entry into the cache directory on a miss. It returns the
// shapefile path and whether an extraction happened. An archive that lacks
// the shapefile is only logged; opening the returned path then fails.
func (c *Cache) EnsureExtracted(ctx context.Context, archive, shapefile string) (string, bool, error) {
	shpPath := c.Path(shapefile)
	log := zap.L().With(
		zap.String("component", "cache"),
		zap.String("archive", archive),
	)

	if exists(shpPath) {
		log.Debug("shapefile already extracted", zap.String("path", shpPath))
		return shpPath, false, nil
	}

	if err := ctx.Err(); err != nil {
		return "", false, eris.Wrap(err, "cache: extract cancelled")
	}

	_, err, _ := c.group.Do("extract:"+archive, func() (any, error) {
		if exists(shpPath) {
			return nil, nil
		}
		listed, err := fetcher.ListZIP(c.Path(archive))
		if err != nil {
			return nil, eris.Wrapf(err, "cache: read %s", archive)
		}
		if !slices.Contains(listed, shapefile) {
			log.Warn("archive does not contain expected shapefile",
				zap.String("shapefile", shapefile),
				zap.Strings("entries", listed),
			)
		}

		log.Info("extracting archive", zap.String("dir", c.dir))
		files, err := fetcher.ExtractZIPFlat(c.Path(archive), c.dir, ".shp")
		if err != nil {
			return nil, eris.Wrapf(err, "cache: extract %s", archive)
		}
		log.Debug("archive extracted", zap.Int("files", len(files)))
		return nil, nil
	})
	if err != nil {
		return "", false, err
	}

	return shpPath, true, nil
}

// ReadMeta returns the sidecar metadata for archive, or nil if none exists.
func (c *Cache) ReadMeta(archive string) (*Meta, error) {
	data, err := os.ReadFile(c.Path(archive + metaSuffix))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: read metadata")
	}

	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "cache: parse metadata for %s", archive)
	}
	return &m, nil
}

func (c *Cache) writeMeta(archive string, m Meta) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "cache: marshal metadata")
	}
	name := archive + metaSuffix
	tmp := c.tempPath(name)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "cache: write metadata")
	}
	if err := os.Rename(tmp, c.Path(name)); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "cache: commit metadata")
	}
	return nil
}

// Verify recomputes the checksum of a cached archive and compares it with
// its sidecar. Archives without metadata verify trivially.
func (c *Cache) Verify(archive string) error {
	m, err := c.ReadMeta(archive)
	if err != nil || m == nil {
		return err
	}
	sum, err := fileSHA256(c.Path(archive))
	if err != nil {
		return err
	}
	if sum != m.SHA256 {
		return eris.Errorf("cache: %s checksum mismatch: have %s, recorded %s", archive, sum, m.SHA256)
	}
	return nil
}

// Entries lists cached archives sorted by name.
func (c *Cache) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, eris.Wrap(err, "cache: read dir")
	}

	var out []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".zip") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "cache: stat %s", name)
		}
		meta, err := c.ReadMeta(name)
		if err != nil {
			zap.L().Warn("cache: unreadable metadata", zap.String("archive", name), zap.Error(err))
		}
		out = append(out, Entry{
			Archive:   name,
			Bytes:     info.Size(),
			Extracted: exists(c.Path(tiger.ShapefileForArchive(name))),
			Meta:      meta,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Archive < out[j].Archive })
	return out, nil
}

// Remove deletes an archive, its metadata and every extracted component
// sharing its file stem. It returns the number of files removed.
func (c *Cache) Remove(archive string) (int, error) {
	stem := strings.TrimSuffix(archive, ".zip") + "."
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, eris.Wrap(err, "cache: read dir")
	}

	var removed int
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasPrefix(de.Name(), stem) {
			continue
		}
		if err := os.Remove(c.Path(de.Name())); err != nil {
			return removed, eris.Wrapf(err, "cache: remove %s", de.Name())
		}
		removed++
	}
	return removed, nil
}

func (c *Cache) tempPath(name string) string {
	return filepath.Join(c.dir, "."+name+"."+uuid.NewString()+".part")
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "cache: open for checksum")
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrap(err, "cache: checksum")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
