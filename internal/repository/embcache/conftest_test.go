package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/db"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
)

// fakeEmbedder returns vec(text) for every text and records what it was asked.
type fakeEmbedder struct {
	dims    int
	err     error
	single  []string
	batches [][]string
}

func (f *fakeEmbedder) vec(text string) []float32 {
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.single = append(f.single, text)
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec(text), PromptTokens: 3, TotalTokens: 3}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = f.vec(t)
		out.PromptTokens += 3
		out.TotalTokens += 3
	}
	return out, nil
}

// memStore is an in-memory byte cache.
type memStore struct {
	data   map[string][]byte
	ttl    time.Duration
	getErr error
	setErr error
	gets   int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.ttl = ttl
	m.data[key] = value
	return nil
}

func newTestEmbedder(t *testing.T) (*Embedder, *fakeEmbedder, *memStore) {
	t.Helper()
	inner := &fakeEmbedder{dims: 3}
	ms := newMemStore()
	cfg := Config{KeyPrefix: "shop:", Model: "small", Dimensions: 3, TTL: time.Hour}
	return New(inner, ms, cfg, nil, zap.NewNop()), inner, ms
}
