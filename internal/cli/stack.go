// Package cli wires configuration into a running engine and hosts the
// interactive demos used by cmd/guidance.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/guidance"
	"github.com/aretw0/guidance/internal/config"
	"github.com/aretw0/guidance/pkg/adapters/file"
	httpapi "github.com/aretw0/guidance/pkg/adapters/http"
	"github.com/aretw0/guidance/pkg/adapters/memory"
	"github.com/aretw0/guidance/pkg/adapters/redis"
	"github.com/aretw0/guidance/pkg/adapters/sqlite"
	"github.com/aretw0/guidance/pkg/escalation"
	"github.com/aretw0/guidance/pkg/observability"
	"github.com/aretw0/guidance/pkg/persistence/middleware"
	"github.com/aretw0/guidance/pkg/ports"
)

// Stack is an engine plus the infrastructure it was built on.
type Stack struct {
	Engine   *guidance.Engine
	Metrics  *prometheus.Registry
	Streams  *httpapi.StreamManager
	Archive  *sqlite.Archive
	Config   config.Config
	closers  []func() error
	isClosed bool
}

// NewStack builds an engine from cfg: store, locker, archive, escalation
// policy, metrics and event streaming.
func NewStack(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	st := &Stack{
		Config:  cfg,
		Metrics: prometheus.NewRegistry(),
		Streams: httpapi.NewStreamManager(),
	}
	st.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	st.Streams.SetLogger(logger)

	metrics := observability.NewMetrics(st.Metrics)
	hooks := metrics.Hooks().Merge(st.Streams.Hooks())

	opts := []guidance.Option{
		guidance.WithLogger(logger),
		guidance.WithLifecycleHooks(hooks),
		guidance.WithPolicy(escalation.Policy{SeverityThreshold: cfg.Escalation.SeverityThreshold}),
	}

	var store ports.SessionStore
	switch cfg.Store.Driver {
	case config.StoreRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		st.closers = append(st.closers, rs.Close)
		store = rs
		opts = append(opts, guidance.WithLocker(redis.NewLocker(rs.Client(), rc.Prefix), cfg.Session.LockTTL))
		logger.Info("using redis session store", "addr", rc.Addr, "db", rc.DB)
	case config.StoreFile:
		store = file.New(cfg.Store.File.Path)
		logger.Info("using file session store", "path", cfg.Store.File.Path)
	default:
		store = memory.NewStore()
		logger.Info("using in-memory session store")
	}

	storeMW, err := storeMiddlewares(cfg.Store)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if len(storeMW) > 0 {
		logger.Info("encrypting sessions at rest", "fallback_keys", len(cfg.Store.FallbackKeys))
	}
	opts = append(opts, guidance.WithStore(middleware.Chain(store, storeMW...)))

	if cfg.Archive.Driver == config.ArchiveSQLite {
		archive, err := sqlite.Open(cfg.Archive.Path)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("error opening archive: %w", err)
		}
		st.Archive = archive
		st.closers = append(st.closers, archive.Close)

		var archiver ports.Archiver = archive
		if len(cfg.Archive.MaskFields) > 0 {
			archiver = middleware.NewPIIMiddleware(cfg.Archive.MaskFields)(archiver)
		}
		opts = append(opts, guidance.WithArchiver(archiver))
		logger.Info("archiving terminal sessions", "path", cfg.Archive.Path, "masked", cfg.Archive.MaskFields)
	}

	engine, err := guidance.New(opts...)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	st.Engine = engine
	return st, nil
}

func storeMiddlewares(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	if cfg.EncryptionKey == "" {
		return nil, nil
	}
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, err
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return []middleware.Middleware{middleware.NewEncryptionMiddleware(enc)}, nil
}

// Close releases the store and archive connections.
func (st *Stack) Close() error {
	if st.isClosed {
		return nil
	}
	st.isClosed = true
	var errs []error
	for i := len(st.closers) - 1; i >= 0; i-- {
		errs = append(errs, st.closers[i]())
	}
	return errors.Join(errs...)
}
