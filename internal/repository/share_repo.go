package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"socialsync/internal/model"
)

// PlatformShareCount successful shares and their clicks for one platform
type PlatformShareCount struct {
	Platform model.Platform `json:"platform"`
	Count    int64          `json:"count"`
	Clicks   int64          `json:"clicks"`
}

// ShareRepository share record repository interface
type ShareRepository interface {
	// Create share record
	Create(ctx context.Context, record *model.ShareRecord) error

	// Update persists the completed record
	Update(ctx context.Context, record *model.ShareRecord) error

	// Get share record by ID
	Get(ctx context.Context, id string) (*model.ShareRecord, error)

	// IncrementClicks adds one click, reporting whether the record exists
	IncrementClicks(ctx context.Context, id string) (bool, error)

	// CountByPlatform successful shares of one content item grouped by platform
	CountByPlatform(ctx context.Context, contentType, contentID string) ([]PlatformShareCount, error)
}

// shareRepository share repository implementation
type shareRepository struct {
	db *gorm.DB
}

// NewShareRepository creates a share repository
func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepository{db: db}
}

// Create creates share record
func (r *shareRepository) Create(ctx context.Context, record *model.ShareRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update updates share record
func (r *shareRepository) Update(ctx context.Context, record *model.ShareRecord) error {
	return r.db.WithContext(ctx).
		Model(record).
		Select("success", "remote_post_id", "error", "updated_at").
		Updates(record).Error
}

// Get gets share record by ID
func (r *shareRepository) Get(ctx context.Context, id string) (*model.ShareRecord, error) {
	var record model.ShareRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// IncrementClicks increments click count atomically
func (r *shareRepository) IncrementClicks(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ShareRecord{}).
		Where("id = ?", id).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByPlatform counts successful shares and sums their clicks
func (r *shareRepository) CountByPlatform(ctx context.Context, contentType, contentID string) ([]PlatformShareCount, error) {
	var rows []PlatformShareCount
	err := r.db.WithContext(ctx).
		Model(&model.ShareRecord{}).
		Select("platform, COUNT(*) AS count, COALESCE(SUM(clicks), 0) AS clicks").
		Where("content_type = ? AND content_id = ? AND success = ?", contentType, contentID, true).
		Group("platform").
		Order("platform").
		Scan(&rows).Error
	return rows, err
}
