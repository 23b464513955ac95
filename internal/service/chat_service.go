package service

import (
	"context"
	"time"

	"live-relay-be/internal/dto"
	"live-relay-be/internal/entity"
	"live-relay-be/internal/errs"
	liveEvents "live-relay-be/internal/events"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/specification"
	"live-relay-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type ChatAuthor struct {
	UserId    string
	UserName  string
	UserPhoto *string
	Badges    dto.ChatBadges
}

type IChatService interface {
	SendMessage(ctx context.Context, sessionId uuid.UUID, author ChatAuthor, req *dto.SendChatMessageRequest) (*entity.LiveChatMessage, error)
	RecentMessages(ctx context.Context, sessionId uuid.UUID) ([]*entity.LiveChatMessage, error)
}

type chatService struct {
	uowFactory   unitofwork.RepositoryFactory
	publisher    liveEvents.Publisher
	logger       logger.ILogger
	historyLimit int
	now          func() time.Time
}

func NewChatService(uowFactory unitofwork.RepositoryFactory, publisher liveEvents.Publisher, logger logger.ILogger, historyLimit int) IChatService {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &chatService{
		uowFactory:   uowFactory,
		publisher:    publisher,
		logger:       logger,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

func (s *chatService) SendMessage(ctx context.Context, sessionId uuid.UUID, author ChatAuthor, req *dto.SendChatMessageRequest) (*entity.LiveChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.LiveSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errs.ErrRoomNotFound
	}
	if !session.ChatEnabled {
		return nil, errs.ErrChatDisabled
	}

	sentAt := s.now()
	if req.SentAt != nil {
		sentAt = *req.SentAt
	}

	msg := &entity.LiveChatMessage{
		Id:         uuid.New(),
		SessionId:  sessionId,
		Text:       req.Text,
		UserId:     author.UserId,
		UserName:   author.UserName,
		UserPhoto:  author.UserPhoto,
		IsAdmin:    author.Badges.IsAdmin,
		IsOwner:    author.UserId == session.OwnerId,
		IsPremium:  author.Badges.IsPremium,
		IsDonation: req.IsDonation,
		SentAt:     sentAt,
	}
	if req.IsDonation {
		msg.DonationAmount = req.DonationAmount
	}

	if err := uow.LiveChatMessageRepository().Create(ctx, msg); err != nil {
		s.logger.Error("CHAT", "Failed to append chat message", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return nil, err
	}

	s.publisher.ChatMessageSent(ctx, msg)
	return msg, nil
}

// RecentMessages returns the newest messages up to the history limit,
// oldest first.
func (s *chatService) RecentMessages(ctx context.Context, sessionId uuid.UUID) ([]*entity.LiveChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.LiveSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errs.ErrRoomNotFound
	}

	messages, err := uow.LiveChatMessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.OrderBy{Field: "id", Desc: true},
		specification.Limit{N: s.historyLimit},
	)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
