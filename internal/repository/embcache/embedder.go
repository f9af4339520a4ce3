// Package embcache keeps embedding vectors of document texts in Redis so a
// full rebuild only pays the provider for records whose text changed.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/db"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config scopes cache keys and their lifetime.
type Config struct {
	// KeyPrefix namespaces cache keys, e.g. "shelfsearch:".
	KeyPrefix string
	// Model and Dimensions are part of the key, so a provider change
	// never serves vectors of the wrong shape.
	Model      string
	Dimensions int
	// TTL of a cached vector; zero keeps it forever.
	TTL time.Duration
}

// Embedder is a read-through cache in front of another domain.Embedder.
// Store failures degrade to a miss; only inner errors reach the caller.
type Embedder struct {
	inner    domain.Embedder
	store    store
	cfg      Config
	prefix   string
	outcomes *prometheus.CounterVec
	logger   *zap.Logger
}

// New wraps inner. outcomes counts lookups by "result" label and may be nil.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	outcomes *prometheus.CounterVec,
	logger *zap.Logger,
) *Embedder {
	return &Embedder{
		inner:    inner,
		store:    s,
		cfg:      cfg,
		prefix:   cfg.KeyPrefix + "emb:" + cfg.Model + ":" + strconv.Itoa(cfg.Dimensions) + ":",
		outcomes: outcomes,
		logger:   logger,
	}
}

// Embed returns the cached vector for text or embeds and stores it.
// A hit reports zero tokens.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.key(text)
	if vec, ok := e.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	e.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed serves hits from the cache and sends each distinct missing
// text to the inner embedder once. Embeddings keep input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	embeddings := make([][]float32, len(texts))
	first := make(map[string]int, len(texts)) // text -> first input position
	var dups [][2]int                         // {position, first position}
	var misses []string
	var missAt []int
	var missKeys []string

	for i, text := range texts {
		if j, seen := first[text]; seen {
			dups = append(dups, [2]int{i, j})
			continue
		}
		first[text] = i
		key := e.key(text)
		if vec, ok := e.lookup(ctx, key); ok {
			embeddings[i] = vec
			continue
		}
		misses = append(misses, text)
		missAt = append(missAt, i)
		missKeys = append(missKeys, key)
	}

	var res domain.BatchEmbeddingResult
	if len(misses) > 0 {
		var err error
		res, err = domain.EmbedAll(ctx, e.inner, misses)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(misses), err)
		}
		for j, i := range missAt {
			embeddings[i] = res.Embeddings[j]
			e.save(ctx, missKeys[j], res.Embeddings[j])
		}
	}
	for _, d := range dups {
		embeddings[d[0]] = embeddings[d[1]]
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.prefix + hex.EncodeToString(sum[:])
}

func (e *Embedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := e.store.Get(ctx, key)
	switch {
	case db.IsMissing(err):
		e.count("miss")
		return nil, false
	case err != nil:
		e.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		e.count("error")
		return nil, false
	}

	vec, err := db.DecodeVector(data)
	if err != nil || len(vec) == 0 || (e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions) {
		e.logger.Debug("Discarding stale cached embedding",
			zap.String("key", key), zap.Int("bytes", len(data)), zap.Error(err))
		e.count("stale")
		return nil, false
	}

	e.count("hit")
	return vec, true
}

func (e *Embedder) save(ctx context.Context, key string, vec []float32) {
	if err := e.store.SetWithTTL(ctx, key, db.EncodeVector(vec), e.cfg.TTL); err != nil {
		e.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (e *Embedder) count(result string) {
	if e.outcomes != nil {
		e.outcomes.WithLabelValues(result).Inc()
	}
}
