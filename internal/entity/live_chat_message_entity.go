package entity

import (
	"time"

	"github.com/google/uuid"
)

// LiveChatMessage is append-only. SentAt is assigned by the sender for
// optimistic display; CreatedAt comes from the store and is authoritative.
type LiveChatMessage struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	Text           string
	UserId         string
	UserName       string
	UserPhoto      *string
	IsAdmin        bool
	IsOwner        bool
	IsPremium      bool
	IsDonation     bool
	DonationAmount *int64
	SentAt         time.Time
	CreatedAt      time.Time
}
