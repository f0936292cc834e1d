package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/cache"
)

const (
	reportKeyPrefix = "report"
	latestKey       = "report:latest"
)

// CacheReportStore keeps run reports in a cache.Service so the API can
// serve them. It is both a sink and a reader.
type CacheReportStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewCacheReportStore stores reports for ttl; zero means the cache default.
func NewCacheReportStore(c cache.Service, ttl time.Duration) *CacheReportStore {
	return &CacheReportStore{cache: c, ttl: ttl}
}

func (s *CacheReportStore) Name() string { return "cache" }

func (s *CacheReportStore) Write(ctx context.Context, r *models.RunReport) error {
	if r == nil || r.RunID == "" {
		return models.NewInvalidInput("run_id", "report has no run id")
	}
	if err := s.cache.Set(ctx, cache.GenerateKey(reportKeyPrefix, r.RunID), r, s.ttl); err != nil {
		return fmt.Errorf("cache report %s: %w", r.RunID, err)
	}
	if err := s.cache.Set(ctx, latestKey, r.RunID, s.ttl); err != nil {
		return fmt.Errorf("cache latest pointer: %w", err)
	}
	return nil
}

func (s *CacheReportStore) Latest(ctx context.Context) (*models.RunReport, error) {
	var id string
	if err := s.cache.Get(ctx, latestKey, &id); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("latest report: %w", models.ErrNotFound)
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *CacheReportStore) Get(ctx context.Context, runID string) (*models.RunReport, error) {
	var r models.RunReport
	if err := s.cache.Get(ctx, cache.GenerateKey(reportKeyPrefix, runID), &r); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("report %s: %w", runID, models.ErrNotFound)
		}
		return nil, err
	}
	return &r, nil
}
