package model

import (
	"time"

	"github.com/google/uuid"
)

// LiveSession ids are generated in Go so the same model migrates on
// PostgreSQL and on the embedded test store.
type LiveSession struct {
	Id                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name                string    `gorm:"type:text;not null"`
	Description         *string   `gorm:"type:text"`
	OwnerId             string    `gorm:"type:varchar(128);not null;index"`
	OwnerName           *string   `gorm:"type:text"`
	OwnerPhoto          *string   `gorm:"type:text"`
	ActiveBroadcasterId *string   `gorm:"type:varchar(128);index"`
	BroadcastStartedAt  *time.Time
	LastBroadcastAt     *time.Time
	SessionType         string    `gorm:"type:varchar(20);not null;index"`
	IsBroadcastChannel  bool      `gorm:"not null"`
	ChannelId           *string   `gorm:"type:varchar(128);uniqueIndex"`
	ChannelOwnerId      *string   `gorm:"type:varchar(128)"`
	ChannelOwnerName    *string   `gorm:"type:text"`
	MemberCount         int       `gorm:"not null;default:0"`
	ViewerCount         int       `gorm:"not null;default:0"`
	ChatEnabled         bool      `gorm:"not null"`
	DonationsEnabled    bool      `gorm:"not null"`
	IsActive            bool      `gorm:"not null;index"`
	Version             int64     `gorm:"not null"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (LiveSession) TableName() string {
	return "live_sessions"
}

type LiveSessionMember struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_live_member_session_user"`
	UserId      string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_live_member_session_user"`
	Role        string    `gorm:"type:varchar(20);not null"`
	JoinedAt    time.Time `gorm:"not null"`
	ContactHint *string   `gorm:"type:text"`
}

func (LiveSessionMember) TableName() string {
	return "live_session_members"
}

type LiveChatMessage struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId      uuid.UUID `gorm:"type:uuid;not null;index:idx_live_chat_session_created,priority:1"`
	Text           string    `gorm:"type:text;not null"`
	UserId         string    `gorm:"type:varchar(128);not null"`
	UserName       string    `gorm:"type:text;not null"`
	UserPhoto      *string   `gorm:"type:text"`
	IsAdmin        bool      `gorm:"not null"`
	IsOwner        bool      `gorm:"not null"`
	IsPremium      bool      `gorm:"not null"`
	IsDonation     bool      `gorm:"not null"`
	DonationAmount *int64
	SentAt         time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_live_chat_session_created,priority:2"`
}

func (LiveChatMessage) TableName() string {
	return "live_chat_messages"
}

// LiveModels lists every table owned by the live service, in migration order.
func LiveModels() []interface{} {
	return []interface{}{
		&LiveSession{},
		&LiveSessionMember{},
		&LiveChatMessage{},
	}
}
