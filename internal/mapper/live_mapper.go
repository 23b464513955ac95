package mapper

import (
	"live-relay-be/internal/entity"
	"live-relay-be/internal/model"
)

type LiveMapper struct{}

func NewLiveMapper() *LiveMapper {
	return &LiveMapper{}
}

// Session Mappers

func (m *LiveMapper) SessionToEntity(s *model.LiveSession) *entity.Session {
	if s == nil {
		return nil
	}

	slot := entity.EmptySlot()
	if s.ActiveBroadcasterId != nil && *s.ActiveBroadcasterId != "" {
		slot = entity.ClaimedBy(*s.ActiveBroadcasterId)
	}

	return &entity.Session{
		Id:                 s.Id,
		Name:               s.Name,
		Description:        s.Description,
		OwnerId:            s.OwnerId,
		OwnerName:          s.OwnerName,
		OwnerPhoto:         s.OwnerPhoto,
		Broadcaster:        slot,
		BroadcastStartedAt: s.BroadcastStartedAt,
		LastBroadcastAt:    s.LastBroadcastAt,
		SessionType:        entity.SessionType(s.SessionType),
		IsBroadcastChannel: s.IsBroadcastChannel,
		ChannelId:          s.ChannelId,
		ChannelOwnerId:     s.ChannelOwnerId,
		ChannelOwnerName:   s.ChannelOwnerName,
		MemberCount:        s.MemberCount,
		ViewerCount:        s.ViewerCount,
		ChatEnabled:        s.ChatEnabled,
		DonationsEnabled:   s.DonationsEnabled,
		IsActive:           s.IsActive,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		Version:            s.Version,
	}
}

func (m *LiveMapper) SessionToModel(s *entity.Session) *model.LiveSession {
	if s == nil {
		return nil
	}

	return &model.LiveSession{
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

// Membership Mappers

func (m *LiveMapper) MemberToEntity(mb *model.LiveSessionMember) *entity.Membership {
	if mb == nil {
		return nil
	}

	return &entity.Membership{
		Id:          mb.Id,
		SessionId:   mb.SessionId,
		UserId:      mb.UserId,
		Role:        entity.MemberRole(mb.Role),
		JoinedAt:    mb.JoinedAt,
		ContactHint: mb.ContactHint,
	}
}

func (m *LiveMapper) MemberToModel(mb *entity.Membership) *model.LiveSessionMember {
	if mb == nil {
		return nil
	}

	return &model.LiveSessionMember{
		Id:          mb.Id,
		SessionId:   mb.SessionId,
		UserId:      mb.UserId,
		Role:        string(mb.Role),
		JoinedAt:    mb.JoinedAt,
		ContactHint: mb.ContactHint,
	}
}

// Chat Mappers

func (m *LiveMapper) ChatMessageToEntity(msg *model.LiveChatMessage) *entity.LiveChatMessage {
	if msg == nil {
		return nil
	}

	return &entity.LiveChatMessage{
		Id:             msg.Id,
		SessionId:      msg.SessionId,
		Text:           msg.Text,
		UserId:         msg.UserId,
		UserName:       msg.UserName,
		UserPhoto:      msg.UserPhoto,
		IsAdmin:        msg.IsAdmin,
		IsOwner:        msg.IsOwner,
		IsPremium:      msg.IsPremium,
		IsDonation:     msg.IsDonation,
		DonationAmount: msg.DonationAmount,
		SentAt:         msg.SentAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *LiveMapper) ChatMessageToModel(msg *entity.LiveChatMessage) *model.LiveChatMessage {
	if msg == nil {
		return nil
	}

	return &model.LiveChatMessage{
		Id:             msg.Id,
		SessionId:      msg.SessionId,
		Text:           msg.Text,
		UserId:         msg.UserId,
		UserName:       msg.UserName,
		UserPhoto:      msg.UserPhoto,
		IsAdmin:        msg.IsAdmin,
		IsOwner:        msg.IsOwner,
		IsPremium:      msg.IsPremium,
		IsDonation:     msg.IsDonation,
		DonationAmount: msg.DonationAmount,
		SentAt:         msg.SentAt,
		CreatedAt:      msg.CreatedAt,
	}
}
