package entity

import (
	"time"

	"live-relay-be/internal/errs"

	"github.com/google/uuid"
)

type SessionType string

const (
	SessionTypeOfficial  SessionType = "official"
	SessionTypeCommunity SessionType = "community"
)

func (t SessionType) Valid() bool {
	return t == SessionTypeOfficial || t == SessionTypeCommunity
}

// BroadcasterSlot is either empty or claimed by exactly one user. The zero
// value is the empty slot. A claimed slot can only change hands by going
// through Clear or Release first.
type BroadcasterSlot struct {
	holder string
}

func EmptySlot() BroadcasterSlot {
	return BroadcasterSlot{}
}

func ClaimedBy(userId string) BroadcasterSlot {
	return BroadcasterSlot{holder: userId}
}

func (s BroadcasterSlot) IsEmpty() bool {
	return s.holder == ""
}

func (s BroadcasterSlot) Holder() (string, bool) {
	return s.holder, s.holder != ""
}

func (s BroadcasterSlot) IsHeldBy(userId string) bool {
	return s.holder != "" && s.holder == userId
}

// Claim returns the slot held by userId. Re-claiming by the current holder
// is a no-op; a slot held by someone else yields ErrBroadcasterConflict.
func (s BroadcasterSlot) Claim(userId string) (BroadcasterSlot, error) {
	if s.IsEmpty() || s.holder == userId {
		return ClaimedBy(userId), nil
	}
	return s, errs.ErrBroadcasterConflict
}

// Release empties the slot if userId holds it and leaves it untouched otherwise.
func (s BroadcasterSlot) Release(userId string) BroadcasterSlot {
	if s.IsHeldBy(userId) {
		return EmptySlot()
	}
	return s
}

func (s BroadcasterSlot) Clear() BroadcasterSlot {
	return EmptySlot()
}

type Session struct {
	Id                 uuid.UUID
	Name               string
	Description        *string
	OwnerId            string
	OwnerName          *string
	OwnerPhoto         *string
	Broadcaster        BroadcasterSlot
	BroadcastStartedAt *time.Time
	LastBroadcastAt    *time.Time
	SessionType        SessionType
	IsBroadcastChannel bool
	ChannelId          *string
	ChannelOwnerId     *string
	ChannelOwnerName   *string
	MemberCount        int
	ViewerCount        int
	ChatEnabled        bool
	DonationsEnabled   bool
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
}

// MayBroadcast reports whether userId is allowed to hold the slot at all.
// Broadcast channels are bound to their channel owner.
func (s *Session) MayBroadcast(userId string) bool {
	if !s.IsBroadcastChannel {
		return true
	}
	return s.ChannelOwnerId != nil && *s.ChannelOwnerId == userId
}

// ActiveBroadcasterId is the nullable projection of the slot used by
// readers and the persistence layer.
func (s *Session) ActiveBroadcasterId() *string {
	if holder, ok := s.Broadcaster.Holder(); ok {
		return &holder
	}
	return nil
}

// ClaimBroadcaster moves the slot to userId and stamps the broadcast start
// when the slot was previously empty or held by someone else.
func (s *Session) ClaimBroadcaster(userId string, now time.Time) error {
	alreadyHolder := s.Broadcaster.IsHeldBy(userId)
	slot, err := s.Broadcaster.Claim(userId)
	if err != nil {
		return err
	}
	s.Broadcaster = slot
	if !alreadyHolder {
		s.BroadcastStartedAt = &now
	}
	return nil
}

// ClearBroadcaster empties the slot and reports whether it was claimed.
func (s *Session) ClearBroadcaster() bool {
	if s.Broadcaster.IsEmpty() {
		return false
	}
	s.Broadcaster = s.Broadcaster.Clear()
	s.BroadcastStartedAt = nil
	return true
}

// LatestActivity is the newest of the broadcast timestamps and creation time.
func (s *Session) LatestActivity() time.Time {
	latest := s.CreatedAt
	if s.BroadcastStartedAt != nil && s.BroadcastStartedAt.After(latest) {
		latest = *s.BroadcastStartedAt
	}
	if s.LastBroadcastAt != nil && s.LastBroadcastAt.After(latest) {
		latest = *s.LastBroadcastAt
	}
	return latest
}
