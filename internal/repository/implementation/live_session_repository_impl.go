package implementation

import (
	"context"
	"errors"
	"time"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/errs"
	"live-relay-be/internal/mapper"
	"live-relay-be/internal/model"
	"live-relay-be/internal/repository/contract"
	"live-relay-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LiveSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LiveMapper
}

func NewLiveSessionRepository(db *gorm.DB) contract.LiveSessionRepository {
	return &LiveSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewLiveMapper(),
	}
}

func (r *LiveSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *LiveSessionRepositoryImpl) Create(ctx context.Context, session *entity.Session) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	if session.Version == 0 {
		session.Version = 1
	}

	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

// Update leaves viewer_count alone; it is owned by the presence tracker.
func (r *LiveSessionRepositoryImpl) Update(ctx context.Context, session *entity.Session) error {
	now := time.Now()
	nextVersion := session.Version + 1

	res := r.db.WithContext(ctx).
		Model(&model.LiveSession{}).
		Where("id = ? AND version = ?", session.Id, session.Version).
		Updates(map[string]interface{}{
			"name":                  session.Name,
			"description":           session.Description,
			"active_broadcaster_id": session.ActiveBroadcasterId(),
			"broadcast_started_at":  session.BroadcastStartedAt,
			"last_broadcast_at":     session.LastBroadcastAt,
			"member_count":          session.MemberCount,
			"chat_enabled":          session.ChatEnabled,
			"donations_enabled":     session.DonationsEnabled,
			"is_active":             session.IsActive,
			"version":               nextVersion,
			"updated_at":            now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrConcurrentModification
	}

	session.Version = nextVersion
	session.UpdatedAt = now
	return nil
}

func (r *LiveSessionRepositoryImpl) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.LiveSession{}).
		Where("id = ?", id).
		UpdateColumn("last_broadcast_at", at).Error
}

func (r *LiveSessionRepositoryImpl) SetViewerCount(ctx context.Context, id uuid.UUID, count int) error {
	if count < 0 {
		count = 0
	}
	return r.db.WithContext(ctx).
		Model(&model.LiveSession{}).
		Where("id = ?", id).
		UpdateColumn("viewer_count", count).Error
}

func (r *LiveSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	var m model.LiveSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *LiveSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	var models []*model.LiveSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.Session, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SessionToEntity(m)
	}
	return entities, nil
}
