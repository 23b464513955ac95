package contract

import (
	"context"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/repository/specification"
)

// LiveChatMessageRepository is append-only.
type LiveChatMessageRepository interface {
	Create(ctx context.Context, msg *entity.LiveChatMessage) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LiveChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
