package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-relay-be/internal/dto"
	"live-relay-be/internal/entity"
	"live-relay-be/internal/errs"
	liveEvents "live-relay-be/internal/events"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/contract"
	"live-relay-be/internal/repository/specification"
	"live-relay-be/internal/repository/unitofwork"
	pkgEvents "live-relay-be/pkg/events"

	"github.com/google/uuid"
)

type ISessionService interface {
	CreateSession(ctx context.Context, ownerId string, ownerName, ownerPhoto *string, req *dto.CreateSessionRequest) (*entity.Session, error)
	GetSession(ctx context.Context, sessionId uuid.UUID) (*entity.Session, error)
	ListMembers(ctx context.Context, sessionId uuid.UUID) ([]*entity.Membership, error)
	JoinSession(ctx context.Context, sessionId uuid.UUID, userId string, asBroadcaster bool, contactHint *string) (*JoinResult, error)
	LeaveSession(ctx context.Context, sessionId uuid.UUID, userId string) error
	ClaimBroadcaster(ctx context.Context, sessionId uuid.UUID, userId string) (*entity.Session, error)
	ReleaseBroadcaster(ctx context.Context, sessionId uuid.UUID, userId string) (*entity.Session, error)
	TouchActivity(ctx context.Context, sessionId uuid.UUID) error
	GetOrCreateChannel(ctx context.Context, channelOwnerId, channelOwnerName, channelId string) (*entity.Session, error)
	ReconcileBroadcaster(ctx context.Context, sessionId uuid.UUID) bool
	CloseSession(ctx context.Context, sessionId uuid.UUID, ownerId string) (*entity.Session, error)
}

type JoinResult struct {
	Session *entity.Session
	Joined  bool // a membership row was created
	Claimed bool // the caller took over an empty slot
}

// slotChange records what a transaction did to the broadcaster slot so the
// matching events go out after commit.
type slotChange struct {
	healed  bool
	claimed bool
	ended   bool
}

type sessionService struct {
	uowFactory  unitofwork.RepositoryFactory
	publisher   liveEvents.Publisher
	logger      logger.ILogger
	maxAttempts int
	now         func() time.Time
}

func NewSessionService(
	uowFactory unitofwork.RepositoryFactory,
	publisher liveEvents.Publisher,
	logger logger.ILogger,
	maxAttempts int,
) ISessionService {
	return &sessionService{
		uowFactory:  uowFactory,
		publisher:   publisher,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (s *sessionService) CreateSession(ctx context.Context, ownerId string, ownerName, ownerPhoto *string, req *dto.CreateSessionRequest) (*entity.Session, error) {
	sessionType := entity.SessionType(req.SessionType)
	if !sessionType.Valid() {
		return nil, fmt.Errorf("unknown session type %q", req.SessionType)
	}

	var session *entity.Session
	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		now := s.now()
		session = &entity.Session{
			Name:               req.Name,
			Description:        req.Description,
			OwnerId:            ownerId,
			OwnerName:          ownerName,
			OwnerPhoto:         ownerPhoto,
			Broadcaster:        entity.EmptySlot(),
			SessionType:        sessionType,
			IsBroadcastChannel: false,
			MemberCount:        1,
			ChatEnabled:        req.ChatEnabled,
			DonationsEnabled:   req.DonationsEnabled,
			IsActive:           true,
		}
		if err := uow.LiveSessionRepository().Create(ctx, session); err != nil {
			return err
		}

		return uow.LiveMemberRepository().Create(ctx, &entity.Membership{
			SessionId: session.Id,
			UserId:    ownerId,
			Role:      entity.MemberRoleListener,
			JoinedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publisher.SessionChanged(ctx, pkgEvents.SessionCreated, session, ownerId)
	return session, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionId uuid.UUID) (*entity.Session, error) {
	session, err := s.uowFactory.NewUnitOfWork(ctx).LiveSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errs.ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) ListMembers(ctx context.Context, sessionId uuid.UUID) ([]*entity.Membership, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.LiveSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errs.ErrSessionNotFound
	}

	return uow.LiveMemberRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "joined_at"},
	)
}

func (s *sessionService) JoinSession(ctx context.Context, sessionId uuid.UUID, userId string, asBroadcaster bool, contactHint *string) (*JoinResult, error) {
	var result JoinResult
	var change slotChange

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		result = JoinResult{}
		change = slotChange{}
		now := s.now()

		sessions := uow.LiveSessionRepository()
		members := uow.LiveMemberRepository()

		session, err := s.loadActive(ctx, sessions, sessionId)
		if err != nil {
			return err
		}

		if asBroadcaster {
			if !session.MayBroadcast(userId) {
				return errs.ErrNotAuthorized
			}
			healed, err := s.clearDanglingHolder(ctx, members, session, userId)
			if err != nil {
				return err
			}
			change.healed = healed
			if _, held := session.Broadcaster.Holder(); held && !session.Broadcaster.IsHeldBy(userId) {
				return errs.ErrBroadcasterConflict
			}
		}

		member, err := members.FindOne(ctx,
			specification.BySessionID{SessionID: sessionId},
			specification.ByUserID{UserID: userId},
		)
		if err != nil {
			return err
		}

		if member == nil {
			role := entity.MemberRoleListener
			if asBroadcaster {
				role = entity.MemberRoleBroadcaster
			}
			member = &entity.Membership{
				SessionId:   sessionId,
				UserId:      userId,
				Role:        role,
				JoinedAt:    now,
				ContactHint: contactHint,
			}
			if err := members.Create(ctx, member); err != nil {
				return err
			}
			session.MemberCount++
			result.Joined = true
		} else if asBroadcaster && member.Role != entity.MemberRoleBroadcaster {
			if err := members.UpdateRole(ctx, member.Id, entity.MemberRoleBroadcaster); err != nil {
				return err
			}
		}

		if asBroadcaster && !session.Broadcaster.IsHeldBy(userId) {
			if err := session.ClaimBroadcaster(userId, now); err != nil {
				return err
			}
			session.LastBroadcastAt = &now
			change.claimed = true
			result.Claimed = true
		}

		result.Session = session
		if result.Joined || change.claimed || change.healed {
			return sessions.Update(ctx, session)
		}
		return nil
	})
	if err != nil {
		if asBroadcaster && errors.Is(err, errs.ErrConcurrentModification) {
			return nil, errs.ErrBroadcasterConflict
		}
		return nil, err
	}

	if change.healed {
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcasterReconciled, result.Session, "")
	}
	if result.Joined {
		s.publisher.SessionChanged(ctx, pkgEvents.MemberJoined, result.Session, userId)
	}
	if change.claimed {
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcastStarted, result.Session, userId)
	}
	return &result, nil
}

// LeaveSession is best-effort. The error is advisory: it is logged here and
// callers tearing down a connection are expected to ignore it.
func (s *sessionService) LeaveSession(ctx context.Context, sessionId uuid.UUID, userId string) error {
	var session *entity.Session
	var left bool
	var change slotChange

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		session, left, change = nil, false, slotChange{}

		sessions := uow.LiveSessionRepository()
		members := uow.LiveMemberRepository()

		found, err := sessions.FindOne(ctx, specification.ByID{ID: sessionId})
		if err != nil {
			return err
		}
		if found == nil {
			return errs.ErrSessionNotFound
		}
		session = found

		member, err := members.FindOne(ctx,
			specification.BySessionID{SessionID: sessionId},
			specification.ByUserID{UserID: userId},
		)
		if err != nil {
			return err
		}

		if member != nil {
			if err := members.Delete(ctx, member.Id); err != nil {
				return err
			}
			if session.MemberCount > 0 {
				session.MemberCount--
			}
			left = true
		}

		if session.Broadcaster.IsHeldBy(userId) {
			change.ended = session.ClearBroadcaster()
		}

		if !left && !change.ended {
			return nil
		}
		return sessions.Update(ctx, session)
	})
	if err != nil {
		s.logger.Warn("LIVE_SESSION", "Leave failed", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    userId,
			"error":      err.Error(),
		})
		return err
	}

	if left {
		s.publisher.SessionChanged(ctx, pkgEvents.MemberLeft, session, userId)
	}
	if change.ended {
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcastEnded, session, userId)
	}
	return nil
}

func (s *sessionService) ClaimBroadcaster(ctx context.Context, sessionId uuid.UUID, userId string) (*entity.Session, error) {
	var session *entity.Session
	var change slotChange

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		change = slotChange{}
		now := s.now()

		sessions := uow.LiveSessionRepository()
		members := uow.LiveMemberRepository()

		found, err := s.loadActive(ctx, sessions, sessionId)
		if err != nil {
			return err
		}
		session = found

		if !session.MayBroadcast(userId) {
			return errs.ErrNotAuthorized
		}

		member, err := members.FindOne(ctx,
			specification.BySessionID{SessionID: sessionId},
			specification.ByUserID{UserID: userId},
		)
		if err != nil {
			return err
		}
		if member == nil {
			return errs.ErrMemberNotFound
		}

		healed, err := s.clearDanglingHolder(ctx, members, session, userId)
		if err != nil {
			return err
		}
		change.healed = healed

		if session.Broadcaster.IsHeldBy(userId) && member.Role == entity.MemberRoleBroadcaster {
			if change.healed {
				return sessions.Update(ctx, session)
			}
			return nil
		}

		if err := session.ClaimBroadcaster(userId, now); err != nil {
			return err
		}
		session.LastBroadcastAt = &now
		if member.Role != entity.MemberRoleBroadcaster {
			if err := members.UpdateRole(ctx, member.Id, entity.MemberRoleBroadcaster); err != nil {
				return err
			}
		}
		change.claimed = true
		return sessions.Update(ctx, session)
	})
	if err != nil {
		if errors.Is(err, errs.ErrConcurrentModification) {
			return nil, errs.ErrBroadcasterConflict
		}
		return nil, err
	}

	if change.healed {
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcasterReconciled, session, "")
	}
	if change.claimed {
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcastStarted, session, userId)
	}
	return session, nil
}

// ReleaseBroadcaster by anyone but the holder leaves the slot untouched.
func (s *sessionService) ReleaseBroadcaster(ctx context.Context, sessionId uuid.UUID, userId string) (*entity.Session, error) {
	var session *entity.Session
	var change slotChange

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		change = slotChange{}

		sessions := uow.LiveSessionRepository()
		members := uow.LiveMemberRepository()

		found, err := sessions.FindOne(ctx, specification.ByID{ID: sessionId})
		if err != nil {
			return err
		}
		if found == nil {
			return errs.ErrSessionNotFound
		}
		session = found

		if !session.Broadcaster.IsHeldBy(userId) {
			return nil
		}

		if err := s.demote(ctx, members, sessionId, userId); err != nil {
			return err
		}
		session.Broadcaster = session.Broadcaster.Release(userId)
		session.BroadcastStartedAt = nil
		change.ended = true
		return sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if change.ended {
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcastEnded, session, userId)
	}
	return session, nil
}

// TouchActivity is a single unversioned column write. Failures are logged
// and returned for information only.
func (s *sessionService) TouchActivity(ctx context.Context, sessionId uuid.UUID) error {
	err := s.uowFactory.NewUnitOfWork(ctx).LiveSessionRepository().TouchActivity(ctx, sessionId, s.now())
	if err != nil {
		s.logger.Warn("LIVE_SESSION", "Touch activity failed", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
	}
	return err
}

// GetOrCreateChannel returns the persistent session bound to channelId,
// creating it on first use and reopening it if it was closed.
func (s *sessionService) GetOrCreateChannel(ctx context.Context, channelOwnerId, channelOwnerName, channelId string) (*entity.Session, error) {
	repo := s.uowFactory.NewUnitOfWork(ctx).LiveSessionRepository()

	existing, err := repo.FindOne(ctx, specification.ByChannelID{ChannelID: channelId})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ChannelOwnerId == nil || *existing.ChannelOwnerId != channelOwnerId {
			return nil, errs.ErrNotAuthorized
		}
		if !existing.IsActive {
			return s.reopenChannel(ctx, existing.Id)
		}
		return existing, nil
	}

	ownerName := channelOwnerName
	session := &entity.Session{
		Name:               channelOwnerName,
		OwnerId:            channelOwnerId,
		OwnerName:          &ownerName,
		Broadcaster:        entity.EmptySlot(),
		SessionType:        entity.SessionTypeOfficial,
		IsBroadcastChannel: true,
		ChannelId:          &channelId,
		ChannelOwnerId:     &channelOwnerId,
		ChannelOwnerName:   &ownerName,
		MemberCount:        0,
		ChatEnabled:        true,
		DonationsEnabled:   false,
		IsActive:           true,
	}
	if err := repo.Create(ctx, session); err != nil {
		if !unitofwork.IsRetryable(err) {
			return nil, err
		}
		// Lost the race to a concurrent creator; hand back the winner.
		winner, findErr := repo.FindOne(ctx, specification.ByChannelID{ChannelID: channelId})
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, err
		}
		return winner, nil
	}

	s.publisher.SessionChanged(ctx, pkgEvents.ChannelCreated, session, channelOwnerId)
	return session, nil
}

func (s *sessionService) reopenChannel(ctx context.Context, sessionId uuid.UUID) (*entity.Session, error) {
	var session *entity.Session
	var reopened bool

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		reopened = false
		sessions := uow.LiveSessionRepository()

		found, err := sessions.FindOne(ctx, specification.ByID{ID: sessionId})
		if err != nil {
			return err
		}
		if found == nil {
			return errs.ErrSessionNotFound
		}
		session = found
		if session.IsActive {
			return nil
		}

		session.IsActive = true
		reopened = true
		return sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if reopened {
		s.publisher.SessionChanged(ctx, pkgEvents.ChannelReopened, session, "")
	}
	return session, nil
}

// ReconcileBroadcaster clears a slot whose holder no longer has a membership
// row. It never fails: store errors are logged and reported as no repair.
func (s *sessionService) ReconcileBroadcaster(ctx context.Context, sessionId uuid.UUID) bool {
	var session *entity.Session
	var repaired bool

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		repaired = false
		sessions := uow.LiveSessionRepository()

		found, err := sessions.FindOne(ctx, specification.ByID{ID: sessionId})
		if err != nil {
			return err
		}
		if found == nil {
			return nil
		}
		session = found

		repaired, err = s.clearDanglingHolder(ctx, uow.LiveMemberRepository(), session, "")
		if err != nil || !repaired {
			return err
		}
		return sessions.Update(ctx, session)
	})
	if err != nil {
		s.logger.Warn("LIVE_SESSION", "Reconcile failed", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return false
	}

	if repaired {
		s.logger.Info("LIVE_SESSION", "Cleared dangling broadcaster", map[string]interface{}{"session_id": sessionId.String()})
		s.publisher.SessionChanged(ctx, pkgEvents.BroadcasterReconciled, session, "")
	}
	return repaired
}

func (s *sessionService) CloseSession(ctx context.Context, sessionId uuid.UUID, ownerId string) (*entity.Session, error) {
	var session *entity.Session
	var closed bool

	err := unitofwork.WithinTransaction(ctx, s.uowFactory, s.maxAttempts, func(uow unitofwork.UnitOfWork) error {
		closed = false
		sessions := uow.LiveSessionRepository()

		found, err := sessions.FindOne(ctx, specification.ByID{ID: sessionId})
		if err != nil {
			return err
		}
		if found == nil {
			return errs.ErrSessionNotFound
		}
		session = found

		if session.OwnerId != ownerId {
			return errs.ErrNotAuthorized
		}
		if !session.IsActive {
			return nil
		}

		if holder, held := session.Broadcaster.Holder(); held {
			if err := s.demote(ctx, uow.LiveMemberRepository(), sessionId, holder); err != nil {
				return err
			}
			session.ClearBroadcaster()
		}
		session.IsActive = false
		closed = true
		return sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if closed {
		s.publisher.SessionChanged(ctx, pkgEvents.SessionClosed, session, ownerId)
	}
	return session, nil
}

func (s *sessionService) loadActive(ctx context.Context, sessions contract.LiveSessionRepository, sessionId uuid.UUID) (*entity.Session, error) {
	session, err := sessions.FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errs.ErrSessionNotFound
	}
	if !session.IsActive {
		return nil, errs.ErrInactive
	}
	return session, nil
}

// clearDanglingHolder empties the slot when its holder (other than
// exceptUserId) has no broadcaster membership row left. The caller
// persists the session.
func (s *sessionService) clearDanglingHolder(ctx context.Context, members contract.LiveMemberRepository, session *entity.Session, exceptUserId string) (bool, error) {
	holder, held := session.Broadcaster.Holder()
	if !held || (exceptUserId != "" && holder == exceptUserId) {
		return false, nil
	}

	member, err := members.FindOne(ctx,
		specification.BySessionID{SessionID: session.Id},
		specification.ByUserID{UserID: holder},
	)
	if err != nil {
		return false, err
	}
	if member != nil && member.Role == entity.MemberRoleBroadcaster {
		return false, nil
	}

	return session.ClearBroadcaster(), nil
}

func (s *sessionService) demote(ctx context.Context, members contract.LiveMemberRepository, sessionId uuid.UUID, userId string) error {
	member, err := members.FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil || member == nil {
		return err
	}
	if member.Role == entity.MemberRoleListener {
		return nil
	}
	return members.UpdateRole(ctx, member.Id, entity.MemberRoleListener)
}
