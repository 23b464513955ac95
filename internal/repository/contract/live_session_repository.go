package contract

import (
	"context"
	"time"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/repository/specification"

	"github.com/google/uuid"
)

type LiveSessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	// Update persists the coordination state if the stored version still
	// matches session.Version, bumping it. A stale version yields
	// errs.ErrConcurrentModification.
	Update(ctx context.Context, session *entity.Session) error
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	SetViewerCount(ctx context.Context, id uuid.UUID, count int) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error)
}
