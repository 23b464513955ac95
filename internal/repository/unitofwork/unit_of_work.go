package unitofwork

import (
	"context"

	"live-relay-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	LiveSessionRepository() contract.LiveSessionRepository
	LiveMemberRepository() contract.LiveMemberRepository
	LiveChatMessageRepository() contract.LiveChatMessageRepository
}
