package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ShareRecord one share request. Created pending, completed once, never deleted.
type ShareRecord struct {
	ID           string        `gorm:"type:char(36);primaryKey" json:"id"`
	UserID       string        `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Platform     Platform      `gorm:"type:varchar(32);not null;index:idx_share_content,priority:3" json:"platform"`
	ContentType  string        `gorm:"type:varchar(32);not null;index:idx_share_content,priority:1" json:"content_type"`
	ContentID    string        `gorm:"type:varchar(64);not null;index:idx_share_content,priority:2" json:"content_id"`
	Message      string        `gorm:"type:text" json:"message"`
	Success      bool          `gorm:"not null;default:false" json:"success"`
	RemotePostID *string       `gorm:"type:varchar(128)" json:"remote_post_id,omitempty"`
	Error        *ShareFailure `gorm:"type:text" json:"error,omitempty"`
	Clicks       int64         `gorm:"not null;default:0" json:"clicks"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName set name
func (ShareRecord) TableName() string {
	return "share_records"
}

// MarkSucceeded sets the remote post id; RemotePostID is set iff Success
func (r *ShareRecord) MarkSucceeded(remotePostID string) {
	r.Success = true
	r.RemotePostID = &remotePostID
	r.Error = nil
}

// MarkFailed stores the failure and clears any remote post id
func (r *ShareRecord) MarkFailed(failure ShareFailure) {
	r.Success = false
	r.RemotePostID = nil
	r.Error = &failure
}

// ShareFailure structured error persisted on a failed share
type ShareFailure struct {
	Message  string   `json:"message"`
	Code     string   `json:"code,omitempty"`
	Platform Platform `json:"platform"`
}

// Value implement driver.Valuer interface
func (f ShareFailure) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implement sql.Scanner interface
func (f *ShareFailure) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*f = ShareFailure{}
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("cannot scan %T into ShareFailure", value)
	}
}
