package dto

import (
	"time"

	"live-relay-be/internal/entity"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Name             string  `json:"name" validate:"required,max=200"`
	Description      *string `json:"description" validate:"omitempty,max=2000"`
	SessionType      string  `json:"session_type" validate:"required,oneof=official community"`
	ChatEnabled      bool    `json:"chat_enabled"`
	DonationsEnabled bool    `json:"donations_enabled"`
}

type JoinSessionRequest struct {
	AsBroadcaster bool    `json:"as_broadcaster"`
	ContactHint   *string `json:"contact_hint" validate:"omitempty,max=320"`
}

type UpsertChannelRequest struct {
	ChannelOwnerName string `json:"channel_owner_name" validate:"required,max=200"`
}

type SendChatMessageRequest struct {
	Text           string     `json:"text" validate:"required,max=2000"`
	IsDonation     bool       `json:"is_donation"`
	DonationAmount *int64     `json:"donation_amount" validate:"omitempty,gt=0"`
	SentAt         *time.Time `json:"sent_at"`
}

// ChatBadges are attributes the identity provider vouches for; they are
// copied onto the message without interpretation.
type ChatBadges struct {
	IsAdmin   bool
	IsPremium bool
}

type SessionResponse struct {
	Id                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Description         *string    `json:"description"`
	OwnerId             string     `json:"owner_id"`
	OwnerName           *string    `json:"owner_name"`
	OwnerPhoto          *string    `json:"owner_photo"`
	ActiveBroadcasterId *string    `json:"active_broadcaster_id"`
	BroadcastStartedAt  *time.Time `json:"broadcast_started_at"`
	LastBroadcastAt     *time.Time `json:"last_broadcast_at"`
	SessionType         string     `json:"session_type"`
	IsBroadcastChannel  bool       `json:"is_broadcast_channel"`
	ChannelId           *string    `json:"channel_id,omitempty"`
	ChannelOwnerId      *string    `json:"channel_owner_id,omitempty"`
	ChannelOwnerName    *string    `json:"channel_owner_name,omitempty"`
	MemberCount         int        `json:"member_count"`
	ViewerCount         int        `json:"viewer_count"`
	ChatEnabled         bool       `json:"chat_enabled"`
	DonationsEnabled    bool       `json:"donations_enabled"`
	IsActive            bool       `json:"is_active"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func NewSessionResponse(s *entity.Session) SessionResponse {
	return SessionResponse{
		Id:                  s.Id,
		Name:                s.Name,
		Description:         s.Description,
		OwnerId:             s.OwnerId,
		OwnerName:           s.OwnerName,
		OwnerPhoto:          s.OwnerPhoto,
		ActiveBroadcasterId: s.ActiveBroadcasterId(),
		BroadcastStartedAt:  s.BroadcastStartedAt,
		LastBroadcastAt:     s.LastBroadcastAt,
		SessionType:         string(s.SessionType),
		IsBroadcastChannel:  s.IsBroadcastChannel,
		ChannelId:           s.ChannelId,
		ChannelOwnerId:      s.ChannelOwnerId,
		ChannelOwnerName:    s.ChannelOwnerName,
		MemberCount:         s.MemberCount,
		ViewerCount:         s.ViewerCount,
		ChatEnabled:         s.ChatEnabled,
		DonationsEnabled:    s.DonationsEnabled,
		IsActive:            s.IsActive,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

type MemberResponse struct {
	UserId      string    `json:"user_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	ContactHint *string   `json:"contact_hint,omitempty"`
}

func NewMemberResponse(m *entity.Membership) MemberResponse {
	return MemberResponse{
		UserId:      m.UserId,
		Role:        string(m.Role),
		JoinedAt:    m.JoinedAt,
		ContactHint: m.ContactHint,
	}
}

type ChatMessageResponse struct {
	Id             uuid.UUID `json:"id"`
	SessionId      uuid.UUID `json:"session_id"`
	Text           string    `json:"text"`
	UserId         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserPhoto      *string   `json:"user_photo"`
	IsAdmin        bool      `json:"is_admin"`
	IsOwner        bool      `json:"is_owner"`
	IsPremium      bool      `json:"is_premium"`
	IsDonation     bool      `json:"is_donation"`
	DonationAmount *int64    `json:"donation_amount,omitempty"`
	SentAt         time.Time `json:"sent_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewChatMessageResponse(m *entity.LiveChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		Id:             m.Id,
		SessionId:      m.SessionId,
		Text:           m.Text,
		UserId:         m.UserId,
		UserName:       m.UserName,
		UserPhoto:      m.UserPhoto,
		IsAdmin:        m.IsAdmin,
		IsOwner:        m.IsOwner,
		IsPremium:      m.IsPremium,
		IsDonation:     m.IsDonation,
		DonationAmount: m.DonationAmount,
		SentAt:         m.SentAt,
		CreatedAt:      m.CreatedAt,
	}
}

type LiveSessionsResponse struct {
	Official  []SessionResponse `json:"official"`
	Community []SessionResponse `json:"community"`
}

type JoinSessionResponse struct {
	Session SessionResponse `json:"session"`
	Joined  bool            `json:"joined"` // false when the caller was already a member
}

type ReconcileResponse struct {
	Repaired bool `json:"repaired"`
}

type TouchActivityResponse struct {
	Touched bool `json:"touched"`
}

// Websocket frames pushed to listeners. Every frame carries "type".

const (
	FrameSession    = "session"
	FrameRoster     = "roster"
	FrameChat       = "chat"
	FrameParagraphs = "paragraphs"
	FrameError      = "error"
)

type SessionFrame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Session SessionResponse `json:"session"`
}

type RosterFrame struct {
	Type      string           `json:"type"`
	SessionId uuid.UUID        `json:"session_id"`
	Members   []MemberResponse `json:"members"`
}

type ChatFrame struct {
	Type    string              `json:"type"`
	Message ChatMessageResponse `json:"message"`
}

type ParagraphsFrame struct {
	Type             string   `json:"type"`
	Paragraphs       []string `json:"paragraphs"`
	IsTranslating    bool     `json:"isTranslating"`
	TargetLang       string   `json:"targetLang"`
	BroadcasterReady bool     `json:"broadcasterReady"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ListenerCommand is what listeners send upstream, e.g. {"type":"set_lang","lang":"fr"}.
type ListenerCommand struct {
	Type string `json:"type"`
	Lang string `json:"lang"`
}
