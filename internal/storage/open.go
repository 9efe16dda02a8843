package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/StarReviews/internal/cache"
	"github.com/aimerfeng/StarReviews/internal/config"
	"github.com/aimerfeng/StarReviews/internal/database"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Open builds the backend selected by cfg.Storage.Backend. The returned
// close func releases the underlying connection and is never nil.
func Open(ctx context.Context, cfg *config.Config) (KeyValue, func(), error) {
	var (
		kv      KeyValue
		closeFn = func() {}
	)

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		kv = NewMemory(cfg.Storage.QuotaBytes)

	case config.BackendRedis:
		r, err := cache.NewFromURL(cfg.Redis.URL)
		if err != nil {
			return nil, closeFn, err
		}
		// no prefix: the list lives under the bare storage key
		kv = NewRedis(r, "")
		closeFn = func() { _ = r.Close() }

	case config.BackendPostgres:
		if err := database.RunMigrations(cfg.Database.URL, database.Migrations, database.MigrationsPath); err != nil {
			return nil, closeFn, err
		}
		db, err := database.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, closeFn, err
		}
		kv = NewPostgres(db.Pool)
		closeFn = db.Close

	default:
		return nil, closeFn, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	log.Info().Str("backend", cfg.Storage.Backend).Str("key", cfg.Storage.Key).Msg("Review storage ready")

	return NewInstrumented(kv, cfg.Storage.Backend), closeFn, nil
}

// Instrumented records operation latency and failures for another store
type Instrumented struct {
	next    KeyValue
	backend string
}

// NewInstrumented wraps kv with Prometheus instrumentation
func NewInstrumented(kv KeyValue, backend string) *Instrumented {
	return &Instrumented{next: kv, backend: backend}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	monitoring.RecordStorageOp(s.backend, op, time.Since(start))
	if err != nil && !errors.Is(err, ErrNotFound) {
		monitoring.RecordStorageError(s.backend, op)
	}
}

func (s *Instrumented) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	value, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	return value, err
}

func (s *Instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value)
	s.observe("set", start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *Instrumented) Health(ctx context.Context) error {
	return s.next.Health(ctx)
}
