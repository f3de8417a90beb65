package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/rs/zerolog"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/broadcast"
	"github.com/ironinsights/iron-insights/internal/filter"
	"github.com/ironinsights/iron-insights/internal/router"
)

// Handler serves the Iron Insights HTTP and websocket surface (spec.md §6),
// delegating request routing (cache, engines, encoding) to
// internal/router.Router the way the teacher's Handler delegated to a
// *store.PositionStore and *eval.TablebasePool.
type Handler struct {
	router *router.Router
	hub    *broadcast.Hub
	log    zerolog.Logger
}

// NewRouter builds the HTTP handler chain: CORS outermost, then RequestID,
// then AccessLog, wrapping a ServeMux of the routes from spec.md §6.
func NewRouter(log zerolog.Logger, r *router.Router, hub *broadcast.Hub) http.Handler {
	h := &Handler{router: r, hub: hub, log: log}

	mux := http.NewServeMux()
	mux.Handle("/healthz", http.HandlerFunc(h.health))
	mux.Handle("/readyz", http.HandlerFunc(h.health))
	mux.Handle("/api/visualize", http.HandlerFunc(h.visualize))
	mux.Handle("/api/visualize-arrow", http.HandlerFunc(h.visualizeArrow))
	mux.Handle("/api/visualize-arrow-stream", http.HandlerFunc(h.visualizeArrowStream))
	mux.Handle("/api/stats", http.HandlerFunc(h.stats))
	mux.Handle("/api/percentiles-duckdb", http.HandlerFunc(h.percentiles))
	mux.Handle("/api/weight-distribution-duckdb", http.HandlerFunc(h.weightDistribution))
	mux.Handle("/api/competitive-analysis-duckdb", http.HandlerFunc(h.competitiveAnalysis))
	mux.Handle("/api/summary-stats-duckdb", http.HandlerFunc(h.summaryStats))
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return CORS(RequestID(AccessLog(log, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeRequest parses the filter JSON body shared by every query
// endpoint (spec.md §6 "Filter JSON").
func decodeRequest(r *http.Request) (*filter.Request, error) {
	var req filter.Request
	if r.Body == nil {
		req.Normalize()
		return &req, nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "malformed filter JSON", err)
	}
	if req.BodyweightKg != nil && (*req.BodyweightKg < 30 || *req.BodyweightKg > 300) {
		return nil, apperr.New(apperr.BadRequest, "bodyweight must be within [30, 300] kg")
	}
	req.Normalize()
	return &req, nil
}

// visualize serves POST /api/visualize: the textual (all arrays inline)
// response for clients that cannot parse columnar IPC (spec.md §6).
func (h *Handler) visualize(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.router.Visualize(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("visualize")
		writeError(w, err)
		return
	}

	payload, err := decodeEntry(result.Entry.Encoded)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "decode cached payload", err))
		return
	}

	writeJSON(w, toVisualizeResponse(payload, result.Entry, result.Entry.ProcessingTime.Milliseconds(), result.Cached))
}

// visualizeArrow serves POST /api/visualize-arrow: the raw columnar IPC
// bytes plus the scalar metadata headers from spec.md §6.
func (h *Handler) visualizeArrow(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.router.Visualize(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("visualize-arrow")
		writeError(w, err)
		return
	}

	writeArrowHeaders(w, result)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(result.Entry.Encoded)
}

// visualizeArrowStream serves POST /api/visualize-arrow-stream: the same
// columnar payload as visualize-arrow, flushed as it is written so a
// large result does not wait for a single buffered write (spec.md §6
// "flushed as a multi-batch stream for large results"). The encoder
// produces one batch per request; streaming here means the single batch
// is flushed immediately rather than held until the handler returns.
func (h *Handler) visualizeArrowStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.router.Visualize(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("visualize-arrow-stream")
		writeError(w, err)
		return
	}

	writeArrowHeaders(w, result)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(result.Entry.Encoded)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeArrowHeaders(w http.ResponseWriter, result router.VisualizeResult) {
	if result.Entry.UserPercentileRaw != nil {
		w.Header().Set("X-User-Percentile", formatFloat(*result.Entry.UserPercentileRaw))
	}
	if result.Entry.UserPercentileDots != nil {
		w.Header().Set("X-User-Dots-Percentile", formatFloat(*result.Entry.UserPercentileDots))
	}
	w.Header().Set("X-Processing-Time-Ms", formatInt(result.Entry.ProcessingTime.Milliseconds()))
	w.Header().Set("X-Total-Records", formatInt(int64(result.Entry.RecordCount)))
	w.Header().Set("X-Cached", formatBool(result.Cached))
}

// stats serves GET /api/stats: record count, cache size, uptime
// (spec.md §6).
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	hits, misses, size := h.router.CacheStats()
	writeJSON(w, StatsResponse{
		RecordCount:   h.router.Dataset().Len(),
		CacheSize:     size,
		CacheHits:     hits,
		CacheMisses:   misses,
		UptimeSeconds: h.router.Uptime().Seconds(),
		SQLEnabled:    h.router.HasSQLEngine(),
	})
}

// percentiles serves GET /api/percentiles-duckdb.
func (h *Handler) percentiles(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequestFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.router.Percentiles(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toGroupPercentilesResponse(rows))
}

// weightDistribution serves POST /api/weight-distribution-duckdb.
func (h *Handler) weightDistribution(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.router.WeightDistribution(r.Context(), req, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toWeightDistributionResponse(rows))
}

// competitiveAnalysis serves POST /api/competitive-analysis-duckdb.
func (h *Handler) competitiveAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		filter.Request
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "malformed request body", err))
		return
	}
	req := body.Request
	req.Normalize()

	pos, err := h.router.CompetitivePosition(r.Context(), &req, body.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toCompetitivePositionResponse(pos))
}

// summaryStats serves GET /api/summary-stats-duckdb.
func (h *Handler) summaryStats(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequestFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.router.SummaryStats(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toSummaryStatsResponse(rows))
}

// decodeRequestFromQuery builds a filter.Request from URL query
// parameters for the GET-method SQL endpoints, which have no body.
func decodeRequestFromQuery(r *http.Request) (*filter.Request, error) {
	q := r.URL.Query()
	req := &filter.Request{
		Sex:         q.Get("sex"),
		LiftType:    q.Get("lift_type"),
		WeightClass: q.Get("weight_class"),
		YearsFilter: q.Get("years_filter"),
		Federation:  q.Get("federation"),
	}
	if eq := q["equipment"]; len(eq) > 0 {
		req.Equipment = eq
	}
	req.Normalize()
	return req, nil
}

func formatFloat(v float64) string { return jsonNumber(v) }
func formatInt(v int64) string     { return jsonNumber(v) }
func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
