package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultImportTimeout bounds a single batch when no timeout is configured.
const DefaultImportTimeout = 5 * time.Minute

// ErrBatchTooLarge is returned when a batch holds more items than allowed.
var ErrBatchTooLarge = errors.New("batch too large")

// ServiceConfig tunes the import service.
type ServiceConfig struct {
	MaxBatchSize         int           // 0 means unlimited
	ImportTimeout        time.Duration // per batch
	MaxConcurrentBatches int
	MaxWaitTime          time.Duration
}

// ImportRequest is one batch submitted by an operator.
type ImportRequest struct {
	Operator  string
	BizID     *int64
	Templates []ImportItem
}

// Service provides the core business logic for template imports.
type Service struct {
	store    Store
	importer *Importer
	limiter  *BatchLimiter

	maxBatchSize int
	timeout      time.Duration
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg ServiceConfig, opts ...ImporterOption) *Service {
	timeout := cfg.ImportTimeout
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}
	return &Service{
		store:        store,
		importer:     NewImporter(store, opts...),
		limiter:      NewBatchLimiter(cfg.MaxConcurrentBatches, cfg.MaxWaitTime),
		maxBatchSize: cfg.MaxBatchSize,
		timeout:      timeout,
	}
}

// ImportTemplates runs req as one atomic batch.
func (s *Service) ImportTemplates(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if s.maxBatchSize > 0 && len(req.Templates) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d templates, limit is %d", ErrBatchTooLarge, len(req.Templates), s.maxBatchSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.importer.ImportBatch(ctx, req.Operator, req.Templates, req.BizID)
}

// GetTemplate returns the persisted template with id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns templates ordered by creation time, newest first.
func (s *Service) ListTemplates(ctx context.Context, limit, offset int) ([]Template, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTemplates(ctx, limit, offset)
}

// LimiterStatus reports how many batches are running.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running batches finish or ctx is done.
// Used during graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
