package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"live-relay-be/internal/dto"
	liveEvents "live-relay-be/internal/events"
	"live-relay-be/internal/errs"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/memory"
	"live-relay-be/internal/repository/unitofwork"
	pkgEvents "live-relay-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedFrame struct {
	SessionId uuid.UUID
	Frame     interface{}
}

type roomRecorder struct {
	mu     sync.Mutex
	frames []recordedFrame
}

func (r *roomRecorder) Publish(sessionId uuid.UUID, frame interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, recordedFrame{SessionId: sessionId, Frame: frame})
}

func (r *roomRecorder) snapshot() []recordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedFrame(nil), r.frames...)
}

func (r *roomRecorder) sessionEvents() []string {
	var out []string
	for _, f := range r.snapshot() {
		if sf, ok := f.Frame.(dto.SessionFrame); ok {
			out = append(out, sf.Event)
		}
	}
	return out
}

func (r *roomRecorder) lastRoster() (dto.RosterFrame, bool) {
	frames := r.snapshot()
	for i := len(frames) - 1; i >= 0; i-- {
		if rf, ok := frames[i].Frame.(dto.RosterFrame); ok {
			return rf, true
		}
	}
	return dto.RosterFrame{}, false
}

type slotRecorder struct {
	mu      sync.Mutex
	changes []string
}

func (r *slotRecorder) SlotChanged(sessionId uuid.UUID, holder string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, holder)
}

func (r *slotRecorder) holders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func newFeedFixture(t *testing.T) (ISessionService, IChatService, *roomRecorder, *gochannel.GoChannel) {
	t.Helper()
	sessions, chat, rooms, pubSub, _ := newFeedFixtureWithSlots(t, &slotRecorder{})
	return sessions, chat, rooms, pubSub
}

func newFeedFixtureWithSlots(t *testing.T, slots SlotWatcher) (ISessionService, IChatService, *roomRecorder, *gochannel.GoChannel, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	publisher := liveEvents.NewLivePublisher(pubSub, nil, logger.NewNopLogger())
	factory := unitofwork.NewRepositoryFactory(db)
	sessions := NewSessionService(factory, publisher, logger.NewNopLogger(), 3)
	chat := NewChatService(factory, publisher, logger.NewNopLogger(), 100)

	rooms := &roomRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, NewConsumerService(pubSub, sessions, rooms, slots, logger.NewNopLogger()).Consume(ctx))

	return sessions, chat, rooms, pubSub, db
}

func TestConsumerService_SessionAndRosterFrames(t *testing.T) {
	sessions, _, rooms, _ := newFeedFixture(t)
	ctx := context.Background()

	session := createCommunitySession(t, sessions, "Seerah", "owner")
	_, err := sessions.JoinSession(ctx, session.Id, "speaker", true, nil)
	require.NoError(t, err)
	_, err = sessions.JoinSession(ctx, session.Id, "listener", false, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rooms.sessionEvents()) == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		pkgEvents.SessionCreated,
		pkgEvents.MemberJoined,
		pkgEvents.BroadcastStarted,
		pkgEvents.MemberJoined,
	}, rooms.sessionEvents())

	require.Eventually(t, func() bool {
		roster, ok := rooms.lastRoster()
		return ok && len(roster.Members) == 3
	}, 2*time.Second, 5*time.Millisecond)

	roster, _ := rooms.lastRoster()
	assert.Equal(t, session.Id, roster.SessionId)
	roles := map[string]string{}
	for _, m := range roster.Members {
		roles[m.UserId] = m.Role
	}
	assert.Equal(t, map[string]string{
		"owner":    "listener",
		"speaker":  "broadcaster",
		"listener": "listener",
	}, roles)
}

func TestConsumerService_ChatFrames(t *testing.T) {
	sessions, chat, rooms, _ := newFeedFixture(t)
	ctx := context.Background()

	session := createCommunitySession(t, sessions, "Seerah", "owner")
	msg, err := chat.SendMessage(ctx, session.Id, ChatAuthor{UserId: "u1", UserName: "U1"}, &dto.SendChatMessageRequest{Text: "ameen"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, f := range rooms.snapshot() {
			if cf, ok := f.Frame.(dto.ChatFrame); ok {
				return cf.Message.Id == msg.Id && f.SessionId == session.Id && cf.Type == dto.FrameChat
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConsumerService_DropsStaleVersions(t *testing.T) {
	sessions, _, rooms, pubSub := newFeedFixture(t)

	session := createCommunitySession(t, sessions, "Seerah", "owner")
	require.Eventually(t, func() bool { return len(rooms.sessionEvents()) == 1 }, 2*time.Second, 5*time.Millisecond)

	publish := func(event string, version int64) {
		snapshot := dto.NewSessionResponse(session)
		snapshot.Version = version
		body, err := json.Marshal(liveEvents.SessionChangedMessage{Event: event, Session: snapshot})
		require.NoError(t, err)
		require.NoError(t, pubSub.Publish(liveEvents.TopicSessionChanged, message.NewMessage(watermill.NewUUID(), body)))
	}

	publish("NEWER", session.Version+5)
	publish("OLDER", session.Version+2)
	publish("NEWEST", session.Version+6)

	require.Eventually(t, func() bool { return len(rooms.sessionEvents()) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{pkgEvents.SessionCreated, "NEWER", "NEWEST"}, rooms.sessionEvents())
}

func TestConsumerService_ReportsSlotChanges(t *testing.T) {
	slots := &slotRecorder{}
	sessions, _, _, _, _ := newFeedFixtureWithSlots(t, slots)
	ctx := context.Background()

	session := createCommunitySession(t, sessions, "Seerah", "owner")
	_, err := sessions.JoinSession(ctx, session.Id, "u2", true, nil)
	require.NoError(t, err)
	_, err = sessions.ReleaseBroadcaster(ctx, session.Id, "u2")
	require.NoError(t, err)
	_, err = sessions.JoinSession(ctx, session.Id, "u3", true, nil)
	require.NoError(t, err)
	_, err = sessions.CloseSession(ctx, session.Id, "owner")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(slots.holders()) == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"u2", "", "u3", ""}, slots.holders())
}

func TestConsumerService_FeedRevokesReleasedBroadcaster(t *testing.T) {
	db := openTestDB(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	factory := unitofwork.NewRepositoryFactory(db)
	sessions := NewSessionService(factory, liveEvents.NewLivePublisher(pubSub, nil, logger.NewNopLogger()), logger.NewNopLogger(), 3)
	bus := liveEvents.NewChannelBroadcastBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	broadcasts := NewBroadcastService(bus, sessions, memory.NewActivityThrottle(time.Minute), memory.NewHolderCache(time.Hour), nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, NewConsumerService(pubSub, sessions, &roomRecorder{}, broadcasts, logger.NewNopLogger()).Consume(ctx))

	session := createCommunitySession(t, sessions, "Seerah", "owner")
	_, err := sessions.JoinSession(ctx, session.Id, "u2", true, nil)
	require.NoError(t, err)
	_, err = broadcasts.Authorize(ctx, session.Id, "u2")
	require.NoError(t, err)

	_, err = sessions.ReleaseBroadcaster(ctx, session.Id, "u2")
	require.NoError(t, err)
	_, err = sessions.JoinSession(ctx, session.Id, "u3", true, nil)
	require.NoError(t, err)

	frame := []byte(`{"type":"translation","text":"late","sourceLang":"ar"}`)
	require.Eventually(t, func() bool {
		return errors.Is(broadcasts.Publish(ctx, session.Id, "u2", frame), errs.ErrNotAuthorized)
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, broadcasts.Publish(ctx, session.Id, "u3", frame))
}

func TestConsumerService_VersionMarksExpire(t *testing.T) {
	svc := NewConsumerService(nil, nil, &roomRecorder{}, nil, logger.NewNopLogger()).(*consumerService)
	svc.versions = cache.New(20*time.Millisecond, 5*time.Millisecond)
	id := uuid.New()

	assert.True(t, svc.fresh(id, 5))
	assert.False(t, svc.fresh(id, 3))
	assert.True(t, svc.fresh(id, 5), "one commit can carry several events with the same version")

	require.Eventually(t, func() bool { return svc.versions.ItemCount() == 0 }, time.Second, 5*time.Millisecond)
}
