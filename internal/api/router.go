// Package api exposes block resolution and consolidation over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/consolidator"
)

// MaxGEOIDs caps the number of blocks accepted by one request.
const MaxGEOIDs = 10000

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness check
//   - GET /v1/resolve?geoid=... - County, archive and shapefile names
//   - POST /v1/consolidate - Dissolved blocks as GeoJSON
//
// opts is the template for every consolidation; requests share its cache
// directory.
func NewRouter(opts consolidator.Options, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	h := &handler{opts: opts}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/resolve", h.resolve)
		r.Post("/consolidate", h.consolidate)
	})

	return r
}

// requestLogger logs each request on completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Info("api request",
			zap.String("component", "api"),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
