package model

import (
	"time"
)

// PlatformConnection OAuth grant a user holds for one platform. Tokens are sealed at rest.
type PlatformConnection struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_connection_user_platform,priority:1" json:"user_id"`
	Platform           Platform   `gorm:"type:varchar(32);not null;uniqueIndex:uk_connection_user_platform,priority:2" json:"platform"`
	AccessTokenSealed  []byte     `gorm:"type:blob;not null" json:"-"`
	RefreshTokenSealed []byte     `gorm:"type:blob" json:"-"`
	Scopes             string     `gorm:"type:varchar(255)" json:"scopes,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Revoked            bool       `gorm:"not null;default:false" json:"revoked"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName set name
func (PlatformConnection) TableName() string {
	return "platform_connections"
}

// Usable reports whether the grant can still be used at now
func (c *PlatformConnection) Usable(now time.Time) bool {
	if c.Revoked || len(c.AccessTokenSealed) == 0 {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}
