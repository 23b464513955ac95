package contract

import (
	"context"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/repository/specification"

	"github.com/google/uuid"
)

type LiveMemberRepository interface {
	Create(ctx context.Context, member *entity.Membership) error
	UpdateRole(ctx context.Context, id uuid.UUID, role entity.MemberRole) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Membership, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Membership, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
