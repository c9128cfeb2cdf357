package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialsync/internal/model"
)

// ConnectionRepository platform connection repository interface
type ConnectionRepository interface {
	// Upsert stores the grant, replacing any earlier one for (user, platform)
	Upsert(ctx context.Context, conn *model.PlatformConnection) error

	// Get gets the grant of a user for a platform
	Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)

	// Revoke marks the grant revoked, reporting whether one existed
	Revoke(ctx context.Context, userID string, platform model.Platform) (bool, error)

	// ListByUser grants held by a user
	ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
}

type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a connection repository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Upsert creates or replaces the grant
func (r *connectionRepository) Upsert(ctx context.Context, conn *model.PlatformConnection) error {
	conn.Revoked = false
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token_sealed", "refresh_token_sealed", "scopes", "expires_at", "revoked", "updated_at",
		}),
	}).Create(conn).Error
}

// Get gets grant by user and platform
func (r *connectionRepository) Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	var conn model.PlatformConnection
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// Revoke revokes grant
func (r *connectionRepository) Revoke(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.PlatformConnection{}).
		Where("user_id = ? AND platform = ? AND revoked = ?", userID, platform, false).
		Update("revoked", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByUser lists grants of a user ordered by platform
func (r *connectionRepository) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	var conns []*model.PlatformConnection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("platform").
		Find(&conns).Error
	return conns, err
}
