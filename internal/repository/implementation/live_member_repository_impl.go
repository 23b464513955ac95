package implementation

import (
	"context"
	"errors"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/mapper"
	"live-relay-be/internal/model"
	"live-relay-be/internal/repository/contract"
	"live-relay-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LiveMemberRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LiveMapper
}

func NewLiveMemberRepository(db *gorm.DB) contract.LiveMemberRepository {
	return &LiveMemberRepositoryImpl{
		db:     db,
		mapper: mapper.NewLiveMapper(),
	}
}

func (r *LiveMemberRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *LiveMemberRepositoryImpl) Create(ctx context.Context, member *entity.Membership) error {
	if member.Id == uuid.Nil {
		member.Id = uuid.New()
	}

	m := r.mapper.MemberToModel(member)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*member = *r.mapper.MemberToEntity(m)
	return nil
}

func (r *LiveMemberRepositoryImpl) UpdateRole(ctx context.Context, id uuid.UUID, role entity.MemberRole) error {
	return r.db.WithContext(ctx).
		Model(&model.LiveSessionMember{}).
		Where("id = ?", id).
		Update("role", string(role)).Error
}

func (r *LiveMemberRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.LiveSessionMember{}, "id = ?", id).Error
}

func (r *LiveMemberRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Membership, error) {
	var m model.LiveSessionMember
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MemberToEntity(&m), nil
}

func (r *LiveMemberRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Membership, error) {
	var models []*model.LiveSessionMember
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.Membership, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MemberToEntity(m)
	}
	return entities, nil
}

func (r *LiveMemberRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.LiveSessionMember{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
