package repository

import (
	"context"

	"gorm.io/gorm"

	"socialsync/internal/model"
)

// PlatformMetricCount events of one platform
type PlatformMetricCount struct {
	Platform model.Platform `json:"platform"`
	Count    int64          `json:"count"`
}

// MetricQuery filter for metric aggregation; a nil MetricType counts every type
type MetricQuery struct {
	EntityType string
	EntityID   string
	MetricType *model.MetricType
}

// MetricRepository engagement metric repository. Append-only: there is no update or delete.
type MetricRepository interface {
	// Append one metric
	Append(ctx context.Context, metric *model.EngagementMetric) error

	// CountByPlatform counts metrics matching q grouped by platform
	CountByPlatform(ctx context.Context, q MetricQuery) ([]PlatformMetricCount, error)
}

type metricRepository struct {
	db *gorm.DB
}

// NewMetricRepository creates a metric repository
func NewMetricRepository(db *gorm.DB) MetricRepository {
	return &metricRepository{db: db}
}

func (r *metricRepository) Append(ctx context.Context, metric *model.EngagementMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

func (r *metricRepository) CountByPlatform(ctx context.Context, q MetricQuery) ([]PlatformMetricCount, error) {
	query := r.db.WithContext(ctx).
		Model(&model.EngagementMetric{}).
		Select("platform, COUNT(*) AS count").
		Where("entity_type = ? AND entity_id = ?", q.EntityType, q.EntityID)
	if q.MetricType != nil {
		query = query.Where("metric_type = ?", *q.MetricType)
	}

	var rows []PlatformMetricCount
	err := query.Group("platform").Order("platform").Scan(&rows).Error
	return rows, err
}
