package model

import (
	"time"
)

// SyncStatus outcome of the last sync against one platform
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// PlatformCatalogEntry platform-side record of one SKU. One row per (sku, platform).
type PlatformCatalogEntry struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU               string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_catalog_sku_platform,priority:1" json:"sku"`
	Platform          Platform   `gorm:"type:varchar(32);not null;uniqueIndex:uk_catalog_sku_platform,priority:2;index" json:"platform"`
	PlatformProductID string     `gorm:"type:varchar(128)" json:"platform_product_id,omitempty"`
	LastSyncedAt      time.Time  `gorm:"not null" json:"last_synced_at"`
	LastSyncStatus    SyncStatus `gorm:"type:varchar(16);not null;index" json:"last_sync_status"`
	LastError         *string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName set name
func (PlatformCatalogEntry) TableName() string {
	return "platform_catalog_entries"
}

// MarkSynced records a successful publish
func (e *PlatformCatalogEntry) MarkSynced(remoteID string, at time.Time) {
	if remoteID != "" {
		e.PlatformProductID = remoteID
	}
	e.LastSyncedAt = at
	e.LastSyncStatus = SyncStatusSuccess
	e.LastError = nil
}

// MarkFailed records a failed sync. The remote id from earlier syncs is kept.
func (e *PlatformCatalogEntry) MarkFailed(cause error, at time.Time) {
	msg := cause.Error()
	e.LastSyncedAt = at
	e.LastSyncStatus = SyncStatusFailed
	e.LastError = &msg
}

// Synced reports whether the last sync succeeded
func (e *PlatformCatalogEntry) Synced() bool {
	return e.LastSyncStatus == SyncStatusSuccess
}
