package unitofwork

import (
	"context"
	"fmt"

	"live-relay-be/internal/repository/contract"
	"live-relay-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // nil outside a transaction
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) LiveSessionRepository() contract.LiveSessionRepository {
	return implementation.NewLiveSessionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) LiveMemberRepository() contract.LiveMemberRepository {
	return implementation.NewLiveMemberRepository(u.getDB())
}

func (u *UnitOfWorkImpl) LiveChatMessageRepository() contract.LiveChatMessageRepository {
	return implementation.NewLiveChatMessageRepository(u.getDB())
}
