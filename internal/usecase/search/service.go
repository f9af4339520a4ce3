// Package search runs semantic product search with keyword fallback.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/score"
	"github.com/kailas-cloud/shelfsearch/internal/metrics"
)

// Service is the search engine. It keeps no per-request state between calls.
type Service struct {
	index    VectorIndex
	records  RecordReader
	fallback Fallback
	embedder domain.Embedder
	scorer   score.Scorer
	cfg      domain.EngineConfig
	logger   *zap.Logger
}

// New creates a search service. cfg must already be validated.
func New(
	index VectorIndex, records RecordReader, fallback Fallback,
	embedder domain.Embedder, cfg domain.EngineConfig, logger *zap.Logger,
) *Service {
	return &Service{
		index:    index,
		records:  records,
		fallback: fallback,
		embedder: embedder,
		scorer:   score.New(),
		cfg:      cfg,
		logger:   logger,
	}
}

// WithScorer replaces the default relevance scorer.
func (s *Service) WithScorer(sc score.Scorer) *Service {
	s.scorer = sc
	return s
}

// Search returns one page of hydrated records for q.
//
// An embedding failure aborts with domain.ErrEmbeddingUnavailable. A vector
// index failure or an empty vector page is answered by the keyword fallback;
// domain.ErrRecordStoreUnavailable is returned only when that fails too.
func (s *Service) Search(ctx context.Context, q request.Query) (result.Page, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	if q.Limit() > s.cfg.MaxLimit {
		return result.Page{}, fmt.Errorf("limit %d exceeds maximum %d: %w",
			q.Limit(), s.cfg.MaxLimit, domain.ErrInvalidPagination)
	}

	text := document.Normalize(q.Text())
	if text == "" {
		return result.Page{}, fmt.Errorf("query has no searchable characters: %w", domain.ErrInvalidQuery)
	}

	cctx, cancel := s.cfg.CallContext(ctx)
	emb, err := s.embedder.Embed(cctx, text)
	cancel()
	if err != nil {
		return result.Page{}, fmt.Errorf("embed query: %w", domain.Unavailable(domain.ErrEmbeddingUnavailable, err))
	}

	page, reason, vecErr := s.searchVector(ctx, q, emb.Embedding)
	if reason == result.ReasonNone {
		metrics.SearchRequestsTotal.WithLabelValues(string(result.SourceVector)).Inc()
		return page, nil
	}

	s.logger.Info("Serving search from keyword fallback",
		zap.String("reason", string(reason)),
		zap.Int("page", q.Page()),
		zap.Error(vecErr),
	)
	metrics.SearchFallbackTotal.WithLabelValues(string(reason)).Inc()

	fb, err := s.fallback.Search(ctx, q)
	if err != nil {
		if vecErr != nil {
			return result.Page{}, fmt.Errorf("no data source answered: %w: %w", err, vecErr)
		}
		return result.Page{}, fmt.Errorf("fallback search: %w", err)
	}
	fb.Source = result.SourceFallback
	fb.FallbackReason = reason
	metrics.SearchRequestsTotal.WithLabelValues(string(result.SourceFallback)).Inc()
	return fb, nil
}

// searchVector runs the vector path. A non-empty reason means the page is
// unusable and the fallback must answer; the error, if any, explains why.
func (s *Service) searchVector(
	ctx context.Context, q request.Query, vector []float32,
) (result.Page, result.FallbackReason, error) {
	cctx, cancel := s.cfg.CallContext(ctx)
	candidates, err := s.index.Query(cctx, vector, q.Filters(), q.FetchSize(s.cfg.OverFetch))
	cancel()
	if err != nil {
		return result.Page{}, result.ReasonIndexUnavailable, domain.Unavailable(domain.ErrVectorIndexUnavailable, err)
	}
	if len(candidates) == 0 {
		return result.Page{}, result.ReasonNoCandidates, nil
	}

	candidates = s.prune(candidates, q)
	if len(candidates) == 0 {
		return result.Page{}, result.ReasonThreshold, nil
	}

	s.rank(candidates, q)

	pageStart, pageEnd := result.Window(len(candidates), q.Page(), q.Limit())
	window := candidates[pageStart:pageEnd]
	if len(window) == 0 {
		return result.Page{}, result.ReasonPageEmpty, nil
	}

	hits, recs, err := s.hydrate(ctx, window)
	if err != nil {
		return result.Page{}, result.ReasonHydrationEmpty, err
	}
	if len(recs) == 0 {
		return result.Page{}, result.ReasonHydrationEmpty, nil
	}

	return result.Page{
		Records: recs,
		Hits:    hits,
		Total:   len(candidates),
		Page:    q.Page(),
		Limit:   q.Limit(),
		Filters: q.Filters(),
		Source:  result.SourceVector,
	}, result.ReasonNone, nil
}

// prune drops candidates farther than the effective threshold; <= 0 keeps all.
func (s *Service) prune(candidates []result.Candidate, q request.Query) []result.Candidate {
	maxDistance := s.cfg.DefaultMaxDistance
	if md := q.MaxDistance(); md != nil {
		maxDistance = *md
	}
	if maxDistance <= 0 {
		return candidates
	}
	return slices.DeleteFunc(candidates, func(c result.Candidate) bool {
		return c.Distance > maxDistance
	})
}

// rank scores candidates and orders them by score desc, distance asc, id asc.
func (s *Service) rank(candidates []result.Candidate, q request.Query) {
	tokens := document.Tokens(q.Text())
	for i := range candidates {
		c := &candidates[i]
		c.Score = s.scorer.Score(c.Distance, c.Metadata, q.Filters(), tokens)
	}
	slices.SortFunc(candidates, func(a, b result.Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// hydrate loads the window's records in score order, dropping ids the record
// store no longer knows.
func (s *Service) hydrate(
	ctx context.Context, window []result.Candidate,
) ([]result.Candidate, []record.Record, error) {
	ids := make([]string, len(window))
	for i, c := range window {
		ids[i] = c.ID
	}

	cctx, cancel := s.cfg.CallContext(ctx)
	found, err := s.records.GetByIDs(cctx, ids)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("hydrate: %w", domain.Unavailable(domain.ErrRecordStoreUnavailable, err))
	}

	byID := make(map[string]record.Record, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	hits := make([]result.Candidate, 0, len(window))
	recs := make([]record.Record, 0, len(window))
	for _, c := range window {
		r, ok := byID[c.ID]
		if !ok {
			s.logger.Debug("Dropping stale index entry", zap.String("id", c.ID))
			continue
		}
		hits = append(hits, c)
		recs = append(recs, r)
	}
	return hits, recs, nil
}
