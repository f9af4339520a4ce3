package chi

import (
	"context"

	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
	dsync "github.com/kailas-cloud/shelfsearch/internal/domain/sync"
	healthuc "github.com/kailas-cloud/shelfsearch/internal/usecase/health"
	"github.com/kailas-cloud/shelfsearch/internal/usecase/respond"
	statsuc "github.com/kailas-cloud/shelfsearch/internal/usecase/stats"
)

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, q request.Query) (result.Page, error)
}

// Syncer rebuilds and maintains the vector index.
type Syncer interface {
	FullSync(ctx context.Context) (dsync.Report, error)
	SyncOne(ctx context.Context, id string) error
	RemoveOne(ctx context.Context, id string) error
}

// Responder writes the conversational reply for a result page.
type Responder interface {
	Respond(ctx context.Context, query string, recs []record.Record, agent string) respond.Reply
}

// HealthChecker reports collaborator availability.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// StatsReporter reports index and catalog sizes.
type StatsReporter interface {
	GetReport(ctx context.Context) statsuc.Report
}
