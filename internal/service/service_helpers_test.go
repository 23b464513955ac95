package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/model"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/implementation"
	"live-relay-be/internal/repository/specification"
	"live-relay-be/internal/repository/unitofwork"
	"live-relay-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.LiveModels()...))
	return db
}

type publishedEvent struct {
	Event     string
	SessionId uuid.UUID
	UserId    string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	chats  []*entity.LiveChatMessage
}

func (p *recordingPublisher) SessionChanged(ctx context.Context, event string, session *entity.Session, userId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: event, SessionId: session.Id, UserId: userId})
}

func (p *recordingPublisher) ChatMessageSent(ctx context.Context, msg *entity.LiveChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chats = append(p.chats, msg)
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Event
	}
	return types
}

func newTestSessionService(t *testing.T) (ISessionService, *gorm.DB, *recordingPublisher) {
	t.Helper()
	db := openTestDB(t)
	pub := &recordingPublisher{}
	svc := NewSessionService(unitofwork.NewRepositoryFactory(db), pub, logger.NewNopLogger(), 3)
	return svc, db, pub
}

func loadSession(t *testing.T, db *gorm.DB, sessionId uuid.UUID) *entity.Session {
	t.Helper()
	session, err := implementation.NewLiveSessionRepository(db).FindOne(context.Background(), specification.ByID{ID: sessionId})
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

// assertInvariants checks the roster/slot invariants against the store:
// the slot holder has exactly one broadcaster row, broadcast channels are
// held only by their owner, and memberCount matches the roster.
func assertInvariants(t *testing.T, db *gorm.DB, sessionId uuid.UUID) {
	t.Helper()
	session := loadSession(t, db, sessionId)

	rows, err := implementation.NewLiveMemberRepository(db).FindAll(context.Background(), specification.BySessionID{SessionID: sessionId})
	require.NoError(t, err)

	assert.Equal(t, len(rows), session.MemberCount, "member count must match roster")

	var broadcasters []*entity.Membership
	for _, row := range rows {
		if row.Role == entity.MemberRoleBroadcaster {
			broadcasters = append(broadcasters, row)
		}
	}

	holder, held := session.Broadcaster.Holder()
	if held {
		if assert.Len(t, broadcasters, 1, "holder must have exactly one broadcaster row") {
			assert.Equal(t, holder, broadcasters[0].UserId)
		}
		if session.IsBroadcastChannel {
			require.NotNil(t, session.ChannelOwnerId)
			assert.Equal(t, *session.ChannelOwnerId, holder)
		}
	} else {
		assert.Empty(t, broadcasters, "no broadcaster rows while the slot is empty")
	}
}

func forceHolder(t *testing.T, db *gorm.DB, sessionId uuid.UUID, userId string) {
	t.Helper()
	require.NoError(t, db.Model(&model.LiveSession{}).
		Where("id = ?", sessionId).
		Update("active_broadcaster_id", userId).Error)
}
