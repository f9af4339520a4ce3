package chi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain/search/request"
)

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	page := s.cfg.DefaultPage
	if req.Page != nil {
		page = *req.Page
	}
	limit := s.cfg.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	filters, err := filtersFromRequest(req.Filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	q, err := request.New(req.Query, filters, req.MaxDistance, page, limit, req.Agent)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var answer, agent string
	if s.responder != nil {
		reply := s.responder.Respond(r.Context(), q.Text(), res.Records, q.Agent())
		answer, agent = reply.Text, reply.Agent
	}

	writeJSON(w, http.StatusOK, pageToResponse(res, answer, agent, req.Filters))
}

// Debug query defaults.
const (
	debugQuery = "lip balm"
	debugLimit = 5
)

// Debug handles POST /debug: one small search page with every hit's scoring
// detail and the index stats, without a conversational reply.
func (s *Server) Debug(w http.ResponseWriter, r *http.Request) {
	var req debugRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		req.Query = debugQuery
	}

	filters, err := filtersFromRequest(req.Filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	q, err := request.New(req.Query, filters, nil, 1, debugLimit, "")
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	page := pageToResponse(res, "", "", req.Filters)
	writeJSON(w, http.StatusOK, debugResponse{
		Query:          q.Text(),
		Filters:        page.FiltersApplied,
		ProductsFound:  len(page.Products),
		TotalAvailable: res.Total,
		Source:         page.Source,
		FallbackReason: page.FallbackReason,
		Products:       page.Products,
		HitsMeta:       page.HitsMeta,
		Stats:          statsToResponse(s.stats.GetReport(r.Context())),
	})
}

// FullSync handles POST /sync. The rebuild outlives a disconnected client so
// the index is never left half-built by a dropped request.
func (s *Server) FullSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.sync.FullSync(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Warn("Full sync aborted",
			zap.Bool("cleared", report.Cleared),
			zap.Int("indexed", report.Indexed),
			zap.Int("failed", report.Failed),
		)
		s.handleDomainError(w, err)
		return
	}

	msg := "Full sync completed successfully!"
	if report.Failed > 0 {
		msg = fmt.Sprintf("Full sync completed with %d failed records", report.Failed)
	}
	writeJSON(w, http.StatusOK, reportToResponse(report, msg))
}

// SyncProduct handles POST /sync-product.
func (s *Server) SyncProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	if err := s.sync.SyncOne(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productMessage{Message: "Product synced successfully!", ProductID: id})
}

// DeleteProduct handles POST /delete-product.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	if err := s.sync.RemoveOne(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productMessage{Message: "Product deleted successfully!", ProductID: id})
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsToResponse(s.stats.GetReport(r.Context())))
}

func (s *Server) productID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return "", false
	}
	id := req.id()
	if id == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "product_id is required")
		return "", false
	}
	return id, true
}
