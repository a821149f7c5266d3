package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"gorm.io/gorm"
)

// UsageRepository is the Postgres-backed usage ledger.
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage ledger repository
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Append inserts one usage event. Rows are never updated or deleted.
func (r *UsageRepository) Append(ctx context.Context, event *domain.UsageEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append usage event: %w", err)
	}
	return nil
}

// CountSince counts a user's events of one feature at or after since.
func (r *UsageRepository) CountSince(ctx context.Context, userID string, feature domain.Feature, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.UsageEvent{}).
		Where("user_id = ? AND feature = ? AND created_at >= ?", userID, feature, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return n, nil
}

// CountByFeatureSince counts a user's events at or after since, grouped by feature.
func (r *UsageRepository) CountByFeatureSince(ctx context.Context, userID string, since time.Time) (map[domain.Feature]int64, error) {
	var rows []struct {
		Feature domain.Feature
		Total   int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.UsageEvent{}).
		Select("feature, count(*) as total").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("feature").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count usage by feature: %w", err)
	}

	counts := make(map[domain.Feature]int64, len(rows))
	for _, row := range rows {
		counts[row.Feature] = row.Total
	}
	return counts, nil
}
