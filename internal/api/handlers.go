package api

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/consolidator"
	"github.com/sells-group/census-consolidator/internal/geoid"
	"github.com/sells-group/census-consolidator/internal/output"
	"github.com/sells-group/census-consolidator/internal/tiger"
)

type handler struct {
	opts consolidator.Options
}

// BlockInfo is the decomposition of one requested GEOID.
type BlockInfo struct {
	GEOID  string `json:"geoid"`
	State  string `json:"state"`
	County string `json:"county"`
	Tract  string `json:"tract"`
	Block  string `json:"block"`
	Valid  bool   `json:"valid"`
}

// ResolveResponse lists the resources a set of GEOIDs maps to.
type ResolveResponse struct {
	Blocks     []BlockInfo `json:"blocks"`
	Counties   []string    `json:"counties"`
	Archives   []string    `json:"archives"`
	Shapefiles []string    `json:"shapefiles"`
}

// ConsolidateRequest is the body of POST /v1/consolidate.
type ConsolidateRequest struct {
	GEOIDs []string `json:"geoids"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	ids := r.URL.Query()["geoid"]
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "geoid query parameter is required")
		return
	}
	if len(ids) > MaxGEOIDs {
		writeError(w, http.StatusRequestEntityTooLarge, "too many geoids")
		return
	}

	resp := ResolveResponse{Blocks: make([]BlockInfo, 0, len(ids))}
	for _, id := range ids {
		g := geoid.Parse(id)
		resp.Blocks = append(resp.Blocks, BlockInfo{
			GEOID:  id,
			State:  g.State,
			County: g.County,
			Tract:  g.Tract,
			Block:  g.Block,
			Valid:  geoid.Validate(id) == nil,
		})
	}
	resp.Counties = geoid.Counties(ids)
	resp.Archives = tiger.ArchiveNames(resp.Counties)
	resp.Shapefiles = tiger.ShapefileNames(resp.Counties)

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) consolidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ConsolidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.GEOIDs) == 0 {
		writeError(w, http.StatusBadRequest, "geoids is required")
		return
	}
	if len(req.GEOIDs) > MaxGEOIDs {
		writeError(w, http.StatusRequestEntityTooLarge, "too many geoids")
		return
	}

	b, err := consolidator.New(req.GEOIDs, h.opts)
	if err != nil {
		if eris.Is(err, geoid.ErrMalformed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "consolidator unavailable")
		zap.L().Error("api: create consolidator", zap.Error(err))
		return
	}

	res, err := b.Consolidate(r.Context())
	if err != nil {
		if eris.Is(err, consolidator.ErrNoBlocksMatched) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		zap.L().Error("api: consolidate", zap.Strings("counties", b.Counties()), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to consolidate blocks")
		return
	}

	data, err := output.EncodeGeoJSON(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode geometry")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
