package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/cache"
	"github.com/ironinsights/iron-insights/internal/ipc"
	"github.com/ironinsights/iron-insights/internal/sqlengine"
	"github.com/ironinsights/iron-insights/internal/vector"
)

// HistBinResponse mirrors vector.HistBin for the textual JSON surface.
type HistBinResponse struct {
	BinLo float64 `json:"bin_lo"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// ScatterPointResponse mirrors vector.ScatterPoint for the textual JSON surface.
type ScatterPointResponse struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Sex string  `json:"sex"`
}

// UserLiftSplitResponse mirrors vector.UserLiftSplit.
type UserLiftSplitResponse struct {
	Squat    float64 `json:"squat_kg"`
	Bench    float64 `json:"bench_kg"`
	Deadlift float64 `json:"deadlift_kg"`
}

// VisualizeResponse is the body of POST /api/visualize (spec.md §6).
type VisualizeResponse struct {
	RawHistogram       []HistBinResponse      `json:"raw_histogram"`
	DotsHistogram      []HistBinResponse      `json:"dots_histogram"`
	RawScatter         []ScatterPointResponse `json:"raw_scatter"`
	DotsScatter        []ScatterPointResponse `json:"dots_scatter"`
	UserPercentileRaw  *float64               `json:"user_percentile_raw,omitempty"`
	UserPercentileDots *float64               `json:"user_percentile_dots,omitempty"`
	UserLiftSplit      *UserLiftSplitResponse `json:"user_lift_split,omitempty"`
	RecordCount        int                    `json:"record_count"`
	ProcessingTimeMs   int64                  `json:"processing_time_ms"`
	Cached             bool                   `json:"cached"`
}

// toVisualizeResponse builds the textual JSON response from the decoded
// array payload plus the scalar fields carried on the cache entry. The
// scalars (user percentiles, lift split, record count) cannot be read off
// p: the columnar IPC format encodes only the four array fields, so
// ipc.Decode never reconstructs them (spec.md §4.8).
func toVisualizeResponse(p *vector.Payload, entry cache.Entry, processingTimeMs int64, cached bool) VisualizeResponse {
	resp := VisualizeResponse{
		RawHistogram:       make([]HistBinResponse, len(p.RawHistogram)),
		DotsHistogram:      make([]HistBinResponse, len(p.DotsHistogram)),
		RawScatter:         make([]ScatterPointResponse, len(p.RawScatter)),
		DotsScatter:        make([]ScatterPointResponse, len(p.DotsScatter)),
		UserPercentileRaw:  entry.UserPercentileRaw,
		UserPercentileDots: entry.UserPercentileDots,
		RecordCount:        entry.RecordCount,
		ProcessingTimeMs:   processingTimeMs,
		Cached:             cached,
	}
	if entry.UserLiftSplit != nil {
		resp.UserLiftSplit = &UserLiftSplitResponse{Squat: entry.UserLiftSplit.Squat, Bench: entry.UserLiftSplit.Bench, Deadlift: entry.UserLiftSplit.Deadlift}
	}
	for i, b := range p.RawHistogram {
		resp.RawHistogram[i] = HistBinResponse{BinLo: b.BinLo, Value: b.Value, Count: b.Count}
	}
	for i, b := range p.DotsHistogram {
		resp.DotsHistogram[i] = HistBinResponse{BinLo: b.BinLo, Value: b.Value, Count: b.Count}
	}
	for i, s := range p.RawScatter {
		resp.RawScatter[i] = ScatterPointResponse{X: s.X, Y: s.Y, Sex: s.Sex}
	}
	for i, s := range p.DotsScatter {
		resp.DotsScatter[i] = ScatterPointResponse{X: s.X, Y: s.Y, Sex: s.Sex}
	}
	return resp
}

// decodeEntry decodes a cache.Entry's IPC bytes back into a vector.Payload
// for the textual JSON endpoints; the arrow endpoints send the encoded
// bytes straight through instead.
func decodeEntry(encoded []byte) (*vector.Payload, error) {
	return ipc.Decode(encoded)
}

// StatsResponse is the body of GET /api/stats (spec.md §6).
type StatsResponse struct {
	RecordCount   int     `json:"record_count"`
	CacheSize     int     `json:"cache_size"`
	CacheHits     uint64  `json:"cache_hits"`
	CacheMisses   uint64  `json:"cache_misses"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	SQLEnabled    bool    `json:"sql_engine_enabled"`
}

// GroupPercentilesResponse mirrors sqlengine.GroupPercentiles.
type GroupPercentilesResponse struct {
	Sex       string  `json:"sex"`
	Equipment string  `json:"equipment"`
	Count     int64   `json:"count"`
	P25       float64 `json:"p25"`
	P50       float64 `json:"p50"`
	P75       float64 `json:"p75"`
	P90       float64 `json:"p90"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
}

func toGroupPercentilesResponse(rows []sqlengine.GroupPercentiles) []GroupPercentilesResponse {
	out := make([]GroupPercentilesResponse, len(rows))
	for i, r := range rows {
		out[i] = GroupPercentilesResponse{
			Sex: r.Sex, Equipment: r.Equipment, Count: r.Count,
			P25: r.P25, P50: r.P50, P75: r.P75, P90: r.P90, P95: r.P95, P99: r.P99,
		}
	}
	return out
}

// WeightDistributionResponse mirrors sqlengine.WeightDistributionBin.
type WeightDistributionResponse struct {
	BinLo float64 `json:"bin_lo"`
	BinHi float64 `json:"bin_hi"`
	Count int64   `json:"count"`
}

func toWeightDistributionResponse(rows []sqlengine.WeightDistributionBin) []WeightDistributionResponse {
	out := make([]WeightDistributionResponse, len(rows))
	for i, r := range rows {
		out[i] = WeightDistributionResponse{BinLo: r.BinLo, BinHi: r.BinHi, Count: r.Count}
	}
	return out
}

// CompetitivePositionResponse mirrors sqlengine.CompetitivePosition.
type CompetitivePositionResponse struct {
	Rank       int64   `json:"rank"`
	Total      int64   `json:"total"`
	Percentile float64 `json:"percentile"`
}

func toCompetitivePositionResponse(r sqlengine.CompetitivePosition) CompetitivePositionResponse {
	return CompetitivePositionResponse{Rank: r.Rank, Total: r.Total, Percentile: r.Percentile}
}

// SummaryStatsResponse mirrors sqlengine.SummaryStats.
type SummaryStatsResponse struct {
	LiftType string  `json:"lift_type"`
	N        int64   `json:"n"`
	Mean     float64 `json:"mean"`
	Stdev    float64 `json:"stdev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

func toSummaryStatsResponse(rows []sqlengine.SummaryStats) []SummaryStatsResponse {
	out := make([]SummaryStatsResponse, len(rows))
	for i, r := range rows {
		out[i] = SummaryStatsResponse{LiftType: r.Lift, N: r.N, Mean: r.Mean, Stdev: r.Stdev, Min: r.Min, Max: r.Max}
	}
	return out
}

// errorResponse is the JSON body written for a taxonomy error (spec.md §7).
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err via apperr and writes the matching HTTP status
// and JSON body (spec.md §7 "Propagation policy").
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.Status())
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: kind.String()})
}
