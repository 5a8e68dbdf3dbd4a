package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

type ReportRepository struct {
	store store.RecordStore
}

func NewReportRepository(s store.RecordStore) *ReportRepository {
	return &ReportRepository{store: s}
}

// Save persists a finished report under its id.
func (r *ReportRepository) Save(ctx context.Context, report *models.AnalyticsReport) error {
	path := store.Join(store.ReportsPrefix, report.ID.String())
	if err := r.store.Write(ctx, path, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// ListRecent returns up to limit reports, most recently generated first.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) ([]models.AnalyticsReport, error) {
	if limit <= 0 {
		limit = 20
	}
	reports := []models.AnalyticsReport{}
	err := r.store.List(ctx, store.ReportsPrefix, func(path string, raw []byte) error {
		var rep models.AnalyticsReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			return fmt.Errorf("failed to decode report at %s: %w", path, err)
		}
		reports = append(reports, rep)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt)
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// Cleanup deletes reports generated before the retention cutoff and
// returns how many were removed.
func (r *ReportRepository) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	expired := []string{}
	err := r.store.List(ctx, store.ReportsPrefix, func(path string, raw []byte) error {
		var rep models.AnalyticsReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			return nil
		}
		if rep.GeneratedAt.Before(cutoff) {
			expired = append(expired, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan reports: %w", err)
	}

	deleted := 0
	for _, path := range expired {
		if err := r.store.Delete(ctx, path); err != nil {
			return deleted, fmt.Errorf("failed to delete expired report: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
