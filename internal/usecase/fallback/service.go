// Package fallback answers queries lexically when the vector path yields nothing.
package fallback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/keyword"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
)

// Service ranks keyword matches from the record store.
type Service struct {
	store  KeywordStore
	cfg    domain.EngineConfig
	logger *zap.Logger
}

// New creates a fallback search service.
func New(store KeywordStore, cfg domain.EngineConfig, logger *zap.Logger) *Service {
	return &Service{store: store, cfg: cfg, logger: logger}
}

// Search returns one page of records matching any query token under the query's
// filters, ranked by matched token count, then recency, then id.
// No match yields an empty page; the only error is an unavailable record store.
func (s *Service) Search(ctx context.Context, q request.Query) (result.Page, error) {
	page := result.Page{
		Page:    q.Page(),
		Limit:   q.Limit(),
		Filters: q.Filters(),
		Source:  result.SourceFallback,
	}

	pred := keyword.NewPredicate(q.Text(), q.Filters(), q.Page(), q.Limit())
	if pred.IsEmpty() {
		return page, nil
	}

	cctx, cancel := s.cfg.CallContext(ctx)
	matches, err := s.store.Keyword(cctx, pred)
	cancel()
	if err != nil {
		return page, fmt.Errorf("keyword search: %w", domain.Unavailable(domain.ErrRecordStoreUnavailable, err))
	}

	page.Total = matches.Total
	for _, m := range matches.Hits {
		page.Records = append(page.Records, m.Record)
		page.Hits = append(page.Hits, result.Candidate{
			ID:       m.Record.ID,
			Score:    float64(m.Matched),
			Metadata: document.Snapshot(m.Record),
		})
	}

	s.logger.Debug("Keyword fallback served",
		zap.Int("tokens", len(pred.Tokens)),
		zap.Int("matches", page.Total),
		zap.Int("returned", len(page.Records)),
	)
	return page, nil
}
