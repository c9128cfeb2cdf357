package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialsync/internal/model"
)

// CatalogRepository platform catalog entry repository interface
type CatalogRepository interface {
	// Upsert inserts or updates the (sku, platform) row and returns the stored entry
	Upsert(ctx context.Context, entry *model.PlatformCatalogEntry) (*model.PlatformCatalogEntry, error)

	// Get entry by sku and platform
	Get(ctx context.Context, sku string, platform model.Platform) (*model.PlatformCatalogEntry, error)

	// ListBySKU all platform entries of one SKU
	ListBySKU(ctx context.Context, sku string) ([]*model.PlatformCatalogEntry, error)

	// Delete removes the (sku, platform) row, reporting whether one existed
	Delete(ctx context.Context, sku string, platform model.Platform) (bool, error)
}

// catalogRepository catalog repository implementation
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a catalog repository
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// Upsert keeps the stored remote id when the incoming entry carries none,
// so a failed sync never loses the id of an earlier successful one.
func (r *catalogRepository) Upsert(ctx context.Context, entry *model.PlatformCatalogEntry) (*model.PlatformCatalogEntry, error) {
	columns := []string{"last_synced_at", "last_sync_status", "last_error", "updated_at"}
	if entry.PlatformProductID != "" {
		columns = append(columns, "platform_product_id")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(entry).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, entry.SKU, entry.Platform)
}

// Get gets entry by sku and platform
func (r *catalogRepository) Get(ctx context.Context, sku string, platform model.Platform) (*model.PlatformCatalogEntry, error) {
	var entry model.PlatformCatalogEntry
	err := r.db.WithContext(ctx).
		Where("sku = ? AND platform = ?", sku, platform).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListBySKU lists entries of a SKU ordered by platform
func (r *catalogRepository) ListBySKU(ctx context.Context, sku string) ([]*model.PlatformCatalogEntry, error) {
	var entries []*model.PlatformCatalogEntry
	err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("platform").
		Find(&entries).Error
	return entries, err
}

// Delete deletes the (sku, platform) entry
func (r *catalogRepository) Delete(ctx context.Context, sku string, platform model.Platform) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("sku = ? AND platform = ?", sku, platform).
		Delete(&model.PlatformCatalogEntry{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
