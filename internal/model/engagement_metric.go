package model

import (
	"time"
)

// MetricType kind of engagement event
type MetricType string

const (
	MetricShare      MetricType = "share"
	MetricClick      MetricType = "click"
	MetricImpression MetricType = "impression"
	MetricConversion MetricType = "conversion"
)

// Valid reports whether m is a known metric type
func (m MetricType) Valid() bool {
	switch m {
	case MetricShare, MetricClick, MetricImpression, MetricConversion:
		return true
	}
	return false
}

// EngagementMetric immutable engagement event. Corrections are new rows.
type EngagementMetric struct {
	ID         int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	EntityType string     `gorm:"type:varchar(32);not null;index:idx_metric_entity,priority:1" json:"entity_type"`
	EntityID   string     `gorm:"type:varchar(64);not null;index:idx_metric_entity,priority:2" json:"entity_id"`
	MetricType MetricType `gorm:"type:varchar(16);not null;index:idx_metric_entity,priority:3" json:"metric_type"`
	Platform   Platform   `gorm:"type:varchar(32);not null" json:"platform"`
	UserID     *string    `gorm:"type:varchar(64)" json:"user_id,omitempty"`
	Timestamp  time.Time  `gorm:"not null;index" json:"timestamp"`
}

// TableName set name
func (EngagementMetric) TableName() string {
	return "engagement_metrics"
}
