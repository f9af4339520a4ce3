// Package sync keeps the vector index in step with the record store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	dsync "github.com/kailas-cloud/shelfsearch/internal/domain/sync"
	"github.com/kailas-cloud/shelfsearch/internal/metrics"
)

// Service rebuilds or patches the vector index from catalog records.
// It holds no mutable state; concurrent calls are safe as far as the collaborators are.
type Service struct {
	records  RecordStore
	index    VectorIndex
	embedder domain.Embedder
	builder  *document.Builder
	cfg      domain.EngineConfig
	logger   *zap.Logger
}

// New creates a sync service. cfg must already be validated.
func New(
	records RecordStore, index VectorIndex, embedder domain.Embedder,
	builder *document.Builder, cfg domain.EngineConfig, logger *zap.Logger,
) *Service {
	return &Service{
		records:  records,
		index:    index,
		embedder: embedder,
		builder:  builder,
		cfg:      cfg,
		logger:   logger,
	}
}

// FullSync clears the index and rebuilds it from every record.
// Per-record failures land in the report; a failed clear or a broken record
// stream aborts the run and returns the report accumulated so far.
func (s *Service) FullSync(ctx context.Context) (dsync.Report, error) {
	start := time.Now()
	var report dsync.Report
	defer func() {
		report.Duration = time.Since(start)
		metrics.SyncDuration.WithLabelValues(string(dsync.ModeFull)).Observe(report.Duration.Seconds())
	}()

	expected := s.countRecords(ctx)

	cctx, cancel := s.cfg.ClearContext(ctx)
	err := s.index.Clear(cctx)
	cancel()
	if err != nil {
		return report, fmt.Errorf("clear index: %w", domain.Unavailable(domain.ErrVectorIndexUnavailable, err))
	}
	report.Cleared = true
	s.logger.Info("Vector index cleared, rebuilding", zap.Int("expected_records", expected))

	for batch, err := range s.records.ListAll(ctx, s.cfg.SyncBatchSize) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, fmt.Errorf("cleared, %d of %d rebuilt: %w", report.Indexed, expected, ctxErr)
		}
		if err != nil {
			return report, fmt.Errorf("stream records after %d: %w",
				report.Total(), domain.Unavailable(domain.ErrRecordStoreUnavailable, err))
		}
		s.syncBatch(ctx, batch, &report)
	}

	s.logger.Info("Full sync completed",
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// countRecords returns the catalog size for progress messages, -1 when unknown.
func (s *Service) countRecords(ctx context.Context) int {
	cctx, cancel := s.cfg.CallContext(ctx)
	defer cancel()
	n, err := s.records.Count(cctx)
	if err != nil {
		s.logger.Warn("Record count unavailable", zap.Error(err))
		return -1
	}
	return n
}

// syncBatch embeds and upserts one batch, degrading to per-record calls on failure.
func (s *Service) syncBatch(ctx context.Context, batch []record.Record, report *dsync.Report) {
	docs := make([]document.Weighted, len(batch))
	texts := make([]string, len(batch))
	for i, rec := range batch {
		docs[i] = s.builder.Build(rec)
		texts[i] = docs[i].Text
	}

	entries := s.embedBatch(ctx, docs, texts, report)
	if len(entries) == 0 {
		return
	}

	cctx, cancel := s.cfg.CallContext(ctx)
	err := s.index.Upsert(cctx, entries)
	cancel()
	if err == nil {
		s.indexed(report, len(entries))
		return
	}

	s.logger.Warn("Batch upsert failed, retrying per record", zap.Int("batch_size", len(entries)), zap.Error(err))
	for _, e := range entries {
		cctx, cancel := s.cfg.CallContext(ctx)
		err := s.index.Upsert(cctx, []document.Entry{e})
		cancel()
		if err != nil {
			s.failed(report, e.ID, domain.Unavailable(domain.ErrVectorIndexUnavailable, err))
			continue
		}
		s.indexed(report, 1)
	}
}

func (s *Service) embedBatch(
	ctx context.Context, docs []document.Weighted, texts []string, report *dsync.Report,
) []document.Entry {
	cctx, cancel := s.cfg.CallContext(ctx)
	res, err := domain.EmbedAll(cctx, s.embedder, texts)
	cancel()

	entries := make([]document.Entry, 0, len(docs))
	if err == nil {
		for i, d := range docs {
			entries = append(entries, toEntry(d, res.Embeddings[i]))
		}
		return entries
	}

	s.logger.Warn("Batch embedding failed, retrying per record", zap.Int("batch_size", len(docs)), zap.Error(err))
	for _, d := range docs {
		cctx, cancel := s.cfg.CallContext(ctx)
		one, err := s.embedder.Embed(cctx, d.Text)
		cancel()
		if err != nil {
			s.failed(report, d.ID, domain.Unavailable(domain.ErrEmbeddingUnavailable, err))
			continue
		}
		entries = append(entries, toEntry(d, one.Embedding))
	}
	return entries
}

func (s *Service) indexed(report *dsync.Report, n int) {
	report.Indexed += n
	metrics.SyncRecordsTotal.WithLabelValues(string(dsync.ModeFull), "indexed").Add(float64(n))
}

func (s *Service) failed(report *dsync.Report, id string, err error) {
	report.Fail(id, err)
	metrics.SyncRecordsTotal.WithLabelValues(string(dsync.ModeFull), "failed").Inc()
	s.logger.Warn("Record not indexed", zap.String("id", id), zap.Error(err))
}

// SyncOne re-indexes a single record. A missing record returns
// domain.ErrRecordNotFound; any other failure wraps domain.ErrSyncFailed.
func (s *Service) SyncOne(ctx context.Context, id string) error {
	start := time.Now()
	err := s.syncOne(ctx, id)
	s.observe(dsync.ModeOne, start, err)
	return err
}

func (s *Service) syncOne(ctx context.Context, id string) error {
	cctx, cancel := s.cfg.CallContext(ctx)
	rec, err := s.records.GetByID(cctx, id)
	cancel()
	if errors.Is(err, domain.ErrRecordNotFound) {
		return fmt.Errorf("sync %s: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("sync %s: %w: %w", id, domain.ErrSyncFailed,
			domain.Unavailable(domain.ErrRecordStoreUnavailable, err))
	}

	doc := s.builder.Build(rec)

	cctx, cancel = s.cfg.CallContext(ctx)
	res, err := s.embedder.Embed(cctx, doc.Text)
	cancel()
	if err != nil {
		return fmt.Errorf("sync %s: %w: %w", id, domain.ErrSyncFailed,
			domain.Unavailable(domain.ErrEmbeddingUnavailable, err))
	}

	cctx, cancel = s.cfg.CallContext(ctx)
	err = s.index.Upsert(cctx, []document.Entry{toEntry(doc, res.Embedding)})
	cancel()
	if err != nil {
		return fmt.Errorf("sync %s: %w: %w", id, domain.ErrSyncFailed,
			domain.Unavailable(domain.ErrVectorIndexUnavailable, err))
	}
	return nil
}

// RemoveOne deletes a record's entry. Removing an absent entry succeeds.
func (s *Service) RemoveOne(ctx context.Context, id string) error {
	start := time.Now()

	cctx, cancel := s.cfg.CallContext(ctx)
	err := s.index.Remove(cctx, id)
	cancel()
	if err != nil {
		err = fmt.Errorf("remove %s: %w: %w", id, domain.ErrSyncFailed,
			domain.Unavailable(domain.ErrVectorIndexUnavailable, err))
	}

	s.observe(dsync.ModeRemove, start, err)
	return err
}

func (s *Service) observe(mode dsync.Mode, start time.Time, err error) {
	outcome := "indexed"
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "failed"
		s.logger.Warn("Incremental sync failed", zap.String("mode", string(mode)), zap.Error(err))
	case mode == dsync.ModeRemove:
		outcome = "removed"
	}
	metrics.SyncRecordsTotal.WithLabelValues(string(mode), outcome).Inc()
	metrics.SyncDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
}

func toEntry(d document.Weighted, vec []float32) document.Entry {
	return document.Entry{ID: d.ID, Text: d.Text, Vector: vec, Metadata: d.Metadata}
}
