// Package sqlengine answers grouped-percentile, distribution, rank, and
// summary-statistic queries (spec.md §4.5) by bulk-loading the columnar
// dataset into an in-memory SQLite table and dispatching SQL over a
// single serialized connection, modeled on the teacher's
// internal/eval.TablebasePool worker dispatch.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/dataset"
)

// Config sizes the SQL engine's worker pool. MemoryLimitBytes is stored
// but not applied: the in-memory database's memory use is not bounded.
type Config struct {
	Threads          int
	MemoryLimitBytes int64
}

// Engine owns a single in-memory SQLite connection holding a
// denormalized copy of the current dataset. Queries are serialized
// through mu, mirroring spec.md §4.5's "single connection protected by
// a mutex"; each query still runs on its own goroutine via Dispatch so a
// slow query never blocks the caller's context cancellation.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu sync.Mutex
	db *sql.DB

	work chan func()
	wg   sync.WaitGroup
}

// Open creates a fresh in-memory SQLite database, loads ds into it, and
// starts the worker pool that serializes query dispatch.
func Open(ctx context.Context, ds *dataset.Dataset, cfg Config, log zerolog.Logger) (*Engine, error) {
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}

	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, apperr.Wrap(apperr.EngineUnavailable, "open sqlite", err)
	}
	db.SetMaxOpenConns(1)

	e := &Engine{
		cfg:  cfg,
		log:  log,
		db:   db,
		work: make(chan func(), 64),
	}

	if err := e.loadDataset(ctx, ds); err != nil {
		db.Close()
		return nil, err
	}

	for i := 0; i < cfg.Threads; i++ {
		e.wg.Add(1)
		go e.runWorker(i)
	}

	return e, nil
}

// Close stops the worker pool and releases the in-memory database.
func (e *Engine) Close() error {
	close(e.work)
	e.wg.Wait()
	return e.db.Close()
}

func (e *Engine) runWorker(id int) {
	defer e.wg.Done()
	log := e.log.With().Int("sql_worker_id", id).Logger()
	for job := range e.work {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("sql worker recovered from panic")
				}
			}()
			job()
		}()
	}
}

// Dispatch submits a query job to the worker pool and blocks until it
// completes or ctx is cancelled.
func (e *Engine) Dispatch(ctx context.Context, fn func(*sql.DB) error) error {
	done := make(chan error, 1)
	job := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		done <- fn(e.db)
	}
	select {
	case e.work <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload replaces the in-memory table's contents with ds, used after a
// dataset hot-reload (internal/dataset.Store's reload callback).
func (e *Engine) Reload(ctx context.Context, ds *dataset.Dataset) error {
	return e.loadDataset(ctx, ds)
}

func (e *Engine) loadDataset(ctx context.Context, ds *dataset.Dataset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadDatasetLocked(ctx, e.db, ds)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS lifters (
	sex TEXT NOT NULL,
	equipment TEXT NOT NULL,
	bodyweight_kg REAL NOT NULL,
	squat_kg REAL,
	bench_kg REAL,
	deadlift_kg REAL,
	total_kg REAL,
	squat_dots REAL,
	bench_dots REAL,
	deadlift_dots REAL,
	total_dots REAL,
	weight_class TEXT NOT NULL,
	federation TEXT NOT NULL,
	year INTEGER NOT NULL
)`

func (e *Engine) loadDatasetLocked(ctx context.Context, db *sql.DB, ds *dataset.Dataset) error {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS lifters`); err != nil {
		return apperr.Wrap(apperr.Internal, "drop lifters table", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return apperr.Wrap(apperr.Internal, "create lifters table", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "begin load transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lifters
		(sex, equipment, bodyweight_kg, squat_kg, bench_kg, deadlift_kg, total_kg,
		 squat_dots, bench_dots, deadlift_dots, total_dots, weight_class, federation, year)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "prepare load statement", err)
	}
	defer stmt.Close()

	for i := 0; i < ds.Len(); i++ {
		_, err := stmt.ExecContext(ctx,
			ds.Sex[i].String(), ds.Equipment[i], ds.BodyweightKg[i],
			nullable(ds.Squat[i]), nullable(ds.Bench[i]), nullable(ds.Deadlift[i]), nullable(ds.Total[i]),
			nullableDOTS(ds.SquatDOTS[i]), nullableDOTS(ds.BenchDOTS[i]), nullableDOTS(ds.DeadliftDOTS[i]), nullableDOTS(ds.TotalDOTS[i]),
			ds.WeightClass[i], ds.Federation[i], ds.Year[i],
		)
		if err != nil {
			return apperr.Wrap(apperr.Internal, fmt.Sprintf("insert row %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Internal, "commit load transaction", err)
	}
	e.log.Info().Int("rows", ds.Len()).Msg("sql engine dataset loaded")
	return nil
}

// nullable converts a NaN/non-finite sentinel value into a SQL NULL so
// aggregates ignore absent lifts instead of corrupting them.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	return v
}

// nullableDOTS is nullable's counterpart for DOTS columns, which use a
// sentinel value rather than NaN to mark an absent score.
func nullableDOTS(v float64) any {
	if dataset.IsInvalidDOTS(v) || v <= 0 {
		return nil
	}
	return v
}
