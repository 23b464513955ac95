package implementation

import (
	"context"
	"time"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/mapper"
	"live-relay-be/internal/model"
	"live-relay-be/internal/repository/contract"
	"live-relay-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LiveChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LiveMapper
}

func NewLiveChatMessageRepository(db *gorm.DB) contract.LiveChatMessageRepository {
	return &LiveChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewLiveMapper(),
	}
}

func (r *LiveChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// Create lets the store stamp CreatedAt and copies it back onto msg.
func (r *LiveChatMessageRepositoryImpl) Create(ctx context.Context, msg *entity.LiveChatMessage) error {
	if msg.Id == uuid.Nil {
		msg.Id = uuid.New()
	}

	m := r.mapper.ChatMessageToModel(msg)
	m.CreatedAt = time.Time{}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*msg = *r.mapper.ChatMessageToEntity(m)
	return nil
}

func (r *LiveChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LiveChatMessage, error) {
	var models []*model.LiveChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.LiveChatMessage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatMessageToEntity(m)
	}
	return entities, nil
}

func (r *LiveChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.LiveChatMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
