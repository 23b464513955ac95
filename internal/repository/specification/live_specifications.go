package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByChannelID struct {
	ChannelID string
}

func (s ByChannelID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("channel_id = ?", s.ChannelID)
}

// WithBroadcaster keeps sessions whose broadcaster slot is claimed.
type WithBroadcaster struct{}

func (s WithBroadcaster) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("active_broadcaster_id IS NOT NULL")
}

type ActiveOnly struct{}

func (s ActiveOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}
