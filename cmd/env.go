package main

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/blocklist"
	"github.com/sells-group/census-consolidator/internal/consolidator"
	"github.com/sells-group/census-consolidator/internal/fetcher"
	"github.com/sells-group/census-consolidator/internal/resilience"
)

// newFetcher builds the scheme router from configuration. The S3 fetcher is
// only set up when the base URL points at a bucket, since it resolves AWS
// credentials on creation.
func newFetcher(ctx context.Context) (fetcher.Fetcher, error) {
	retry := resilience.NewPolicy("tiger.download", cfg.Fetch.MaxAttempts)

	router := fetcher.NewRouter().
		Register(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    cfg.Fetch.Timeout(),
			RatePerSec: cfg.Fetch.RatePerSec,
			Retry:      retry,
		}), "http", "https").
		Register(fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: cfg.Fetch.Timeout(),
			Retry:   retry,
		}), "ftp")

	u, err := url.Parse(cfg.Tiger.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse tiger.base_url")
	}
	if strings.EqualFold(u.Scheme, "s3") {
		s3f, err := fetcher.NewS3FetcherFromConfig(ctx, fetcher.S3Options{
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Retry:    retry,
		})
		if err != nil {
			return nil, err
		}
		router.Register(s3f, "s3")
	}

	return router, nil
}

// consolidatorOptions maps configuration onto consolidator options.
func consolidatorOptions(ctx context.Context) (consolidator.Options, error) {
	f, err := newFetcher(ctx)
	if err != nil {
		return consolidator.Options{}, err
	}
	return consolidator.Options{
		DataDir:      cfg.Data.Dir,
		BaseURL:      cfg.Tiger.BaseURL,
		GEOIDField:   cfg.Tiger.GEOIDField,
		Fetcher:      f,
		Concurrency:  cfg.Fetch.Concurrency,
		Lenient:      !cfg.Merge.StrictGEOIDs,
		RequireMatch: cfg.Merge.RequireMatch,
	}, nil
}

// collectGEOIDs merges positional GEOIDs (comma or space separated) with
// those listed in file.
func collectGEOIDs(args []string, file string) ([]string, error) {
	var ids []string
	for _, a := range args {
		ids = append(ids, splitAndTrim(a)...)
	}

	if file != "" {
		fromFile, err := blocklist.Read(file)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}

	if len(ids) == 0 {
		return nil, eris.New("no GEOIDs given: pass them as arguments or with --file")
	}

	zap.L().Debug("collected block GEOIDs", zap.Int("count", len(ids)))
	return ids, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
