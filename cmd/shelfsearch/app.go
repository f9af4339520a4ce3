package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/config"
	dbPostgres "github.com/kailas-cloud/shelfsearch/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/shelfsearch/internal/db/redis"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
	"github.com/kailas-cloud/shelfsearch/internal/metrics"
	"github.com/kailas-cloud/shelfsearch/internal/repository/catalog"
	"github.com/kailas-cloud/shelfsearch/internal/repository/embcache"
	"github.com/kailas-cloud/shelfsearch/internal/repository/index"
	"github.com/kailas-cloud/shelfsearch/internal/repository/pgvector"
	"github.com/kailas-cloud/shelfsearch/internal/transport/gemini"
	natsTransport "github.com/kailas-cloud/shelfsearch/internal/transport/nats"
	openaiTransport "github.com/kailas-cloud/shelfsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/shelfsearch/internal/usecase/embedding"
	fallbackuc "github.com/kailas-cloud/shelfsearch/internal/usecase/fallback"
	healthuc "github.com/kailas-cloud/shelfsearch/internal/usecase/health"
	responduc "github.com/kailas-cloud/shelfsearch/internal/usecase/respond"
	searchuc "github.com/kailas-cloud/shelfsearch/internal/usecase/search"
	statsuc "github.com/kailas-cloud/shelfsearch/internal/usecase/stats"
	syncuc "github.com/kailas-cloud/shelfsearch/internal/usecase/sync"
)

// vectorIndex is what the composition root needs from either index driver.
type vectorIndex interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, entries []document.Entry) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Query(ctx context.Context, vector []float32, f filter.Expression, k int) ([]result.Candidate, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Driver() string
}

// app holds the wired services and the resources to release on exit.
type app struct {
	engine  domain.EngineConfig
	search  *searchuc.Service
	sync    *syncuc.Service
	respond *responduc.Service
	health  *healthuc.Service
	stats   *statsuc.Service
	events  *natsTransport.Consumer
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// build wires the engine from cfg. On error every resource opened so far is released.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{engine: cfg.EngineConfig()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	weights, err := document.NewWeightTable(a.engine.FieldWeights)
	if err != nil {
		return nil, fmt.Errorf("field weights: %w", err)
	}

	catalogDB, err := dbPostgres.Connect(ctx, dbPostgres.Config{
		URL:             cfg.Catalog.URL,
		MaxOpenConns:    cfg.Catalog.MaxOpenConns,
		MaxIdleConns:    cfg.Catalog.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Catalog.ConnMaxLifetimeSec) * time.Second,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}
	a.closers = append(a.closers, func() { _ = catalogDB.Close() })

	records := catalog.New(catalogDB)
	if cfg.Catalog.InitSchema {
		if err := records.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("init catalog schema: %w", err)
		}
	}
	logger.Info("Connected to catalog")

	vidx, redisStore, err := a.openIndex(ctx, cfg, catalogDB, logger)
	if err != nil {
		return nil, err
	}
	if err := vidx.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector index: %w", err)
	}
	logger.Info("Vector index ready", zap.String("driver", vidx.Driver()))

	embedder, err := a.buildEmbedder(ctx, cfg, redisStore, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	fallback := fallbackuc.New(records, a.engine, logger)
	a.search = searchuc.New(vidx, records, fallback, embedder, a.engine, logger)
	a.sync = syncuc.New(records, vidx, embedder, document.NewBuilder(weights), a.engine, logger)
	a.respond = buildResponder(cfg, logger)
	a.health = healthuc.New(vidx, records, embedder, a.engine.CallTimeout)
	a.stats = statsuc.New(vidx, records, weights, cfg.Embedding.Model, cfg.Embedding.Dimensions, a.engine.CallTimeout)

	if cfg.Events.Enabled() {
		consumer, err := natsTransport.Connect(natsTransport.Config{
			URL:        cfg.Events.NATSURL,
			Stream:     cfg.Events.Stream,
			Subject:    cfg.Events.Subject,
			Durable:    cfg.Events.Durable,
			RetryDelay: time.Duration(cfg.Events.RetryDelayMS) * time.Millisecond,
		}, a.sync, logger)
		if err != nil {
			return nil, fmt.Errorf("connect record events: %w", err)
		}
		a.events = consumer
		a.closers = append(a.closers, consumer.Close)
	}

	return a, nil
}

// openIndex connects the configured vector index driver. The Redis store is
// returned too so the embedding cache can share it; it is nil for pgvector.
func (a *app) openIndex(
	ctx context.Context, cfg config.Config, catalogDB *dbPostgres.DB, logger *zap.Logger,
) (vectorIndex, *dbRedis.Store, error) {
	if !cfg.Index.UsesRedis() {
		pg := catalogDB
		if cfg.Index.URL != cfg.Catalog.URL {
			var err error
			pg, err = dbPostgres.Connect(ctx, dbPostgres.DefaultConfig(cfg.Index.URL))
			if err != nil {
				return nil, nil, fmt.Errorf("connect pgvector: %w", err)
			}
			a.closers = append(a.closers, func() { _ = pg.Close() })
		}
		return pgvector.New(pg, cfg.Index.Table, cfg.Embedding.Dimensions), nil, nil
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Index.Addrs,
		Username: cfg.Index.Username,
		Password: cfg.Index.Password,
		DB:       cfg.Index.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s store: %w", cfg.Index.Driver, err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
		return nil, nil, fmt.Errorf("%s not ready: %w", cfg.Index.Driver, err)
	}
	logger.Info("Connected to vector store", zap.Strings("addrs", cfg.Index.Addrs))

	return index.New(store, index.Config{
		KeyPrefix:      cfg.Index.KeyPrefix,
		Dimensions:     cfg.Embedding.Dimensions,
		M:              cfg.Index.HNSWM,
		EFConstruction: cfg.Index.HNSWEFConstruct,
	}), store, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func (a *app) buildEmbedder(
	ctx context.Context, cfg config.Config, indexStore *dbRedis.Store, logger *zap.Logger,
) (*embeddinguc.InstrumentedEmbedder, error) {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		User:       cfg.Embedding.User,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache.Enabled {
		cacheStore := indexStore
		if len(cfg.Embedding.Cache.Addrs) > 0 {
			s, err := dbRedis.NewStore(dbRedis.Config{
				Addrs:    cfg.Embedding.Cache.Addrs,
				Password: cfg.Embedding.Cache.Password,
			})
			if err != nil {
				return nil, fmt.Errorf("create embedding cache store: %w", err)
			}
			a.closers = append(a.closers, s.Close)
			if err := s.WaitForReady(ctx, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
				return nil, fmt.Errorf("embedding cache not ready: %w", err)
			}
			cacheStore = s
		}
		embedder = embcache.New(base, cacheStore, embcache.Config{
			KeyPrefix:  cfg.Index.KeyPrefix,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			TTL:        time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions, logger,
	), nil
}

// buildResponder registers the openai agent always and gemini when it has a key.
func buildResponder(cfg config.Config, logger *zap.Logger) *responduc.Service {
	agents := map[string]responduc.Completer{
		responduc.AgentOpenAI: openaiTransport.NewChatResponder(&openaiTransport.Config{
			APIKey:  cfg.Responder.OpenAI.APIKey,
			BaseURL: cfg.Responder.OpenAI.BaseURL,
			Model:   cfg.Responder.OpenAI.Model,
		}, cfg.Responder.OpenAI.MaxTokens),
	}
	if cfg.Responder.Gemini.APIKey != "" {
		agents[responduc.AgentGemini] = gemini.New(gemini.Config{
			APIKey:  cfg.Responder.Gemini.APIKey,
			BaseURL: cfg.Responder.Gemini.BaseURL,
			Model:   cfg.Responder.Gemini.Model,
		})
	}

	timeout := time.Duration(cfg.Responder.TimeoutSec) * time.Second
	svc := responduc.New(agents, cfg.Responder.DefaultAgent, timeout, logger)
	logger.Info("Responder agents", zap.Strings("agents", svc.Agents()),
		zap.String("default", cfg.Responder.DefaultAgent))
	return svc
}
