package dataset

import (
	"context"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Store holds the current Dataset generation behind an atomic pointer so
// readers never block and never observe a torn table, the same
// lock-free-read shape used for the vector index snapshot pointer in the
// vecgo reference engine.
type Store struct {
	current atomic.Pointer[Dataset]
	path    string
	log     zerolog.Logger

	onReload func(*Dataset)
}

// NewStore loads path (or synthesizes a sample if absent) and returns a
// Store ready for concurrent reads.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	ds, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, log: log}
	s.current.Store(ds)
	return s, nil
}

// Get returns the current Dataset. Safe to call from any goroutine.
func (s *Store) Get() *Dataset { return s.current.Load() }

// OnReload registers a callback invoked with the new Dataset every time
// Reload swaps it in. Only one callback is supported; a second call
// replaces the first.
func (s *Store) OnReload(fn func(*Dataset)) { s.onReload = fn }

// Reload re-reads the dataset file and, if its fingerprint changed,
// swaps it in and invokes the registered callback (cmd/server registers one
// that clears the result cache, spec.md §4.7 "Dataset invalidation").
func (s *Store) Reload() error {
	next, err := Load(s.path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("dataset reload failed, keeping previous generation")
		return err
	}
	prev := s.current.Load()
	if prev != nil && prev.Fingerprint() == next.Fingerprint() {
		return nil
	}
	s.current.Store(next)
	s.log.Info().
		Uint64("fingerprint", next.Fingerprint()).
		Int("rows", next.Len()).
		Msg("dataset reloaded")
	if s.onReload != nil {
		s.onReload(next)
	}
	return nil
}

// Watch runs until ctx is cancelled, calling Reload whenever the dataset
// file is written or renamed into place. Modeled on the teacher's
// directory-watching ingest.Worker, generalized from polling to
// fsnotify-driven events.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("cannot watch dataset path, reload disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if err := s.Reload(); err != nil {
					s.log.Warn().Err(err).Msg("dataset watch reload error")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("dataset watcher error")
		}
	}
}
