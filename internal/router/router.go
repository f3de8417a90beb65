// Package router composes the pieces spec.md §4.6 names into a single
// request path: dataset snapshot lookup, result-cache lookup with
// single-flight build deduplication, engine dispatch (vector or SQL),
// and columnar IPC encoding. It mirrors the composition shape of the
// teacher's Handler in internal/httpapi/router_tablebase.go, generalized
// from one position store to the dataset store plus two query engines.
package router

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/cache"
	"github.com/ironinsights/iron-insights/internal/config"
	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
	"github.com/ironinsights/iron-insights/internal/ipc"
	"github.com/ironinsights/iron-insights/internal/sqlengine"
	"github.com/ironinsights/iron-insights/internal/vector"
)

// Router is the single request-path entry point used by internal/httpapi.
// sql is nil when the SQL engine failed to initialize at startup;
// SQL-path methods report EngineUnavailable in that case while vector-path
// methods keep serving (spec.md §7).
type Router struct {
	store  *dataset.Store
	vector *vector.Engine
	sql    *sqlengine.Engine
	cache  *cache.Cache
	cfg    config.QueryConfig
	log    zerolog.Logger

	startedAt time.Time
}

// New builds a Router. sql may be nil.
func New(store *dataset.Store, vectorEngine *vector.Engine, sqlEngine *sqlengine.Engine, c *cache.Cache, cfg config.QueryConfig, log zerolog.Logger) *Router {
	return &Router{
		store:     store,
		vector:    vectorEngine,
		sql:       sqlEngine,
		cache:     c,
		cfg:       cfg,
		log:       log,
		startedAt: time.Now(),
	}
}

// SetSQLEngine installs or replaces the SQL engine, e.g. after it becomes
// available on a later dataset reload.
func (r *Router) SetSQLEngine(e *sqlengine.Engine) { r.sql = e }

// HasSQLEngine reports whether SQL-path methods are currently servable.
func (r *Router) HasSQLEngine() bool { return r.sql != nil }

// Dataset returns the current dataset snapshot.
func (r *Router) Dataset() *dataset.Dataset { return r.store.Get() }

// Uptime reports how long the router has been serving requests.
func (r *Router) Uptime() time.Duration { return time.Since(r.startedAt) }

// CacheStats exposes the result cache's hit/miss/size counters for /api/stats.
func (r *Router) CacheStats() (hits, misses uint64, size int) { return r.cache.Stats() }

// VisualizeResult is the outcome of a Visualize call: the cached (or
// freshly built) entry plus whether it was served from cache.
type VisualizeResult struct {
	Entry  cache.Entry
	Cached bool
}

// Visualize runs the vector engine's filter-and-aggregate path behind the
// result cache, deduplicating concurrent identical requests via
// single-flight (spec.md §4.6, §4.7).
func (r *Router) Visualize(ctx context.Context, req *filter.Request) (VisualizeResult, error) {
	ds := r.store.Get()
	r.cache.SetDatasetFingerprint(ds.Fingerprint())

	fp := cache.Fingerprint(req, r.cfg.HistogramBins, ds.Fingerprint())

	entry, cached, err := r.cache.GetOrBuild(fp, func() (cache.Entry, error) {
		start := time.Now()
		view := filter.Apply(ds, req)
		payload := r.vector.Visualize(view, req, fp)

		encoded, err := ipc.Encode(payload)
		if err != nil {
			return cache.Entry{}, apperr.Wrap(apperr.Internal, "encode visualize payload", err)
		}

		return cache.Entry{
			Encoded:            encoded,
			UserPercentileRaw:  payload.UserPercentileRaw,
			UserPercentileDots: payload.UserPercentileDots,
			UserLiftSplit:      payload.UserLiftSplit,
			RecordCount:        payload.RecordCount,
			ProcessingTime:     time.Since(start),
		}, nil
	})
	if err != nil {
		return VisualizeResult{}, err
	}
	return VisualizeResult{Entry: entry, Cached: cached}, nil
}

// Percentiles runs the SQL engine's grouped percentile query.
func (r *Router) Percentiles(ctx context.Context, req *filter.Request) ([]sqlengine.GroupPercentiles, error) {
	if r.sql == nil {
		return nil, apperr.New(apperr.EngineUnavailable, "SQL engine not initialized")
	}
	return r.sql.PercentilesBy(ctx, r.store.Get(), req)
}

// WeightDistribution runs the SQL engine's bucketed weight histogram query.
func (r *Router) WeightDistribution(ctx context.Context, req *filter.Request, bins int) ([]sqlengine.WeightDistributionBin, error) {
	if r.sql == nil {
		return nil, apperr.New(apperr.EngineUnavailable, "SQL engine not initialized")
	}
	if bins <= 0 {
		bins = r.cfg.HistogramBins
	}
	return r.sql.WeightDistribution(ctx, r.store.Get(), req, bins)
}

// CompetitivePosition runs the SQL engine's rank/percentile query for a
// single user-supplied value.
func (r *Router) CompetitivePosition(ctx context.Context, req *filter.Request, value float64) (sqlengine.CompetitivePosition, error) {
	if r.sql == nil {
		return sqlengine.CompetitivePosition{}, apperr.New(apperr.EngineUnavailable, "SQL engine not initialized")
	}
	return r.sql.CompetitivePosition(ctx, r.store.Get(), req, value)
}

// SummaryStats runs the SQL engine's per-lift descriptive statistics query.
func (r *Router) SummaryStats(ctx context.Context, req *filter.Request) ([]sqlengine.SummaryStats, error) {
	if r.sql == nil {
		return nil, apperr.New(apperr.EngineUnavailable, "SQL engine not initialized")
	}
	return r.sql.SummaryStats(ctx, r.store.Get(), req)
}
