package app

import (
	"context"
	"time"

	"github.com/datallboy/hydrofetch/internal/archive"
	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/engine"
	"github.com/datallboy/hydrofetch/internal/infra/config"
	"github.com/datallboy/hydrofetch/internal/infra/logger"
	"github.com/datallboy/hydrofetch/internal/retry"
)

// HistoryStore records batches. The API only reads from it.
type HistoryStore interface {
	SaveBatch(ctx context.Context, rec domain.BatchRecord) (string, error)
	SaveOutcomes(ctx context.Context, batchID string, outcomes []domain.Outcome) error
	ListBatches(ctx context.Context, limit int) ([]domain.BatchRecord, error)
	GetBatch(ctx context.Context, id string) (domain.BatchRecord, error)
	ListOutcomes(ctx context.Context, batchID string) ([]domain.OutcomeRecord, error)
}

type Archiver interface {
	Archive(ctx context.Context, outputDir string, outcomes []domain.Outcome) (archive.Result, error)
}

// Context holds the core environment and shared resources for hydrofetch.
// Optional collaborators are nil when not configured.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Store   HistoryStore
	Archive Archiver

	// Fetcher is shared by every source, so the connection pool is too
	Fetcher engine.Fetcher
	Policy  retry.Policy

	Now func() time.Time
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config:  cfg,
		Logger:  log,
		Fetcher: engine.NewHTTPFetcher(engine.DefaultHTTPOptions()),
		Policy:  retry.Default(),
		Now:     time.Now,
	}
}
