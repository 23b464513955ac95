package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"live-relay-be/internal/dto"
	"live-relay-be/internal/entity"
	"live-relay-be/internal/errs"
	"live-relay-be/internal/model"
	pkgEvents "live-relay-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCommunitySession(t *testing.T, svc ISessionService, name, ownerId string) *entity.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), ownerId, nil, nil, &dto.CreateSessionRequest{
		Name:        name,
		SessionType: string(entity.SessionTypeCommunity),
		ChatEnabled: true,
	})
	require.NoError(t, err)
	return session
}

func TestStudyCircleScenario(t *testing.T) {
	svc, db, pub := newTestSessionService(t)
	ctx := context.Background()

	session := createCommunitySession(t, svc, "Study Circle", "u1")
	assert.False(t, session.IsBroadcastChannel)
	assert.Equal(t, 1, session.MemberCount)
	assert.True(t, session.Broadcaster.IsEmpty())

	members, err := svc.ListMembers(ctx, session.Id)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u1", members[0].UserId)
	assert.Equal(t, entity.MemberRoleListener, members[0].Role)
	assertInvariants(t, db, session.Id)

	res, err := svc.JoinSession(ctx, session.Id, "u2", true, nil)
	require.NoError(t, err)
	holder, held := res.Session.Broadcaster.Holder()
	assert.True(t, held)
	assert.Equal(t, "u2", holder)
	assert.Equal(t, 2, res.Session.MemberCount)
	assertInvariants(t, db, session.Id)

	_, err = svc.JoinSession(ctx, session.Id, "u3", true, nil)
	assert.ErrorIs(t, err, errs.ErrBroadcasterConflict)
	assertInvariants(t, db, session.Id)

	require.NoError(t, svc.LeaveSession(ctx, session.Id, "u2"))
	after := loadSession(t, db, session.Id)
	assert.True(t, after.Broadcaster.IsEmpty())
	assert.Equal(t, 1, after.MemberCount)
	assertInvariants(t, db, session.Id)

	res, err = svc.JoinSession(ctx, session.Id, "u3", true, nil)
	require.NoError(t, err)
	assert.True(t, res.Session.Broadcaster.IsHeldBy("u3"))
	assertInvariants(t, db, session.Id)

	assert.Equal(t, []string{
		pkgEvents.SessionCreated,
		pkgEvents.MemberJoined,
		pkgEvents.BroadcastStarted,
		pkgEvents.MemberLeft,
		pkgEvents.BroadcastEnded,
		pkgEvents.MemberJoined,
		pkgEvents.BroadcastStarted,
	}, pub.eventTypes())
}

func TestJoinSession_Preconditions(t *testing.T) {
	svc, _, _ := newTestSessionService(t)
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.JoinSession(ctx, uuid.New(), "u1", false, nil)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("closed session", func(t *testing.T) {
		session := createCommunitySession(t, svc, "Closed", "owner")
		_, err := svc.CloseSession(ctx, session.Id, "owner")
		require.NoError(t, err)

		_, err = svc.JoinSession(ctx, session.Id, "u1", false, nil)
		assert.ErrorIs(t, err, errs.ErrInactive)
	})

	t.Run("broadcast channel claimed by someone else", func(t *testing.T) {
		channel, err := svc.GetOrCreateChannel(ctx, "imam", "Masjid Channel", "masjid-1")
		require.NoError(t, err)

		_, err = svc.JoinSession(ctx, channel.Id, "u1", true, nil)
		assert.ErrorIs(t, err, errs.ErrNotAuthorized)

		res, err := svc.JoinSession(ctx, channel.Id, "u1", false, nil)
		require.NoError(t, err)
		assert.True(t, res.Joined)
		assert.True(t, res.Session.Broadcaster.IsEmpty())
	})
}

func TestJoinSession_IsIdempotentForExistingMembers(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Halaqa", "u1")

	hint := "u2@example.com"
	first, err := svc.JoinSession(ctx, session.Id, "u2", false, &hint)
	require.NoError(t, err)
	assert.True(t, first.Joined)

	second, err := svc.JoinSession(ctx, session.Id, "u2", false, nil)
	require.NoError(t, err)
	assert.False(t, second.Joined)
	assert.Equal(t, 2, second.Session.MemberCount)

	owner, err := svc.JoinSession(ctx, session.Id, "u1", false, nil)
	require.NoError(t, err)
	assert.False(t, owner.Joined)

	assertInvariants(t, db, session.Id)
	members, err := svc.ListMembers(ctx, session.Id)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, &hint, members[1].ContactHint)
}

func TestJoinSession_HolderReclaimIsNoop(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Tafsir", "u1")

	_, err := svc.JoinSession(ctx, session.Id, "u2", true, nil)
	require.NoError(t, err)
	before := loadSession(t, db, session.Id)

	res, err := svc.JoinSession(ctx, session.Id, "u2", true, nil)
	require.NoError(t, err)
	assert.False(t, res.Joined)
	assert.False(t, res.Claimed)
	assert.True(t, res.Session.Broadcaster.IsHeldBy("u2"))

	after := loadSession(t, db, session.Id)
	assert.Equal(t, before.Version, after.Version)
	assertInvariants(t, db, session.Id)
}

func TestConcurrentBroadcasterJoins(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Race", "owner")

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]error, 2)
	for i, user := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			<-start
			_, results[i] = svc.JoinSession(ctx, session.Id, user, true, nil)
		}(i, user)
	}
	close(start)
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, errs.ErrBroadcasterConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	after := loadSession(t, db, session.Id)
	assert.False(t, after.Broadcaster.IsEmpty())
	assertInvariants(t, db, session.Id)
}

func TestLeaveSession(t *testing.T) {
	svc, db, pub := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Leavers", "u1")

	t.Run("non-member leave changes nothing", func(t *testing.T) {
		require.NoError(t, svc.LeaveSession(ctx, session.Id, "stranger"))
		assert.Equal(t, 1, loadSession(t, db, session.Id).MemberCount)
		assertInvariants(t, db, session.Id)
	})

	t.Run("leave twice only decrements once", func(t *testing.T) {
		_, err := svc.JoinSession(ctx, session.Id, "u2", false, nil)
		require.NoError(t, err)

		require.NoError(t, svc.LeaveSession(ctx, session.Id, "u2"))
		require.NoError(t, svc.LeaveSession(ctx, session.Id, "u2"))
		assert.Equal(t, 1, loadSession(t, db, session.Id).MemberCount)
		assertInvariants(t, db, session.Id)
	})

	t.Run("unknown session is reported, not raised", func(t *testing.T) {
		err := svc.LeaveSession(ctx, uuid.New(), "u1")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	assert.NotContains(t, pub.eventTypes(), pkgEvents.BroadcastEnded)
}

func TestClaimAndReleaseBroadcaster(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Claims", "u1")

	_, err := svc.ClaimBroadcaster(ctx, session.Id, "u2")
	assert.ErrorIs(t, err, errs.ErrMemberNotFound)

	_, err = svc.JoinSession(ctx, session.Id, "u2", false, nil)
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, session.Id, "u3", false, nil)
	require.NoError(t, err)

	claimed, err := svc.ClaimBroadcaster(ctx, session.Id, "u2")
	require.NoError(t, err)
	assert.True(t, claimed.Broadcaster.IsHeldBy("u2"))
	assert.NotNil(t, claimed.BroadcastStartedAt)
	assertInvariants(t, db, session.Id)

	_, err = svc.ClaimBroadcaster(ctx, session.Id, "u3")
	assert.ErrorIs(t, err, errs.ErrBroadcasterConflict)

	notHolder, err := svc.ReleaseBroadcaster(ctx, session.Id, "u3")
	require.NoError(t, err)
	assert.True(t, notHolder.Broadcaster.IsHeldBy("u2"))

	released, err := svc.ReleaseBroadcaster(ctx, session.Id, "u2")
	require.NoError(t, err)
	assert.True(t, released.Broadcaster.IsEmpty())
	assert.Nil(t, released.BroadcastStartedAt)
	assert.Equal(t, 3, released.MemberCount)
	assertInvariants(t, db, session.Id)

	handedOver, err := svc.ClaimBroadcaster(ctx, session.Id, "u3")
	require.NoError(t, err)
	assert.True(t, handedOver.Broadcaster.IsHeldBy("u3"))
	assertInvariants(t, db, session.Id)
}

func TestReconcileBroadcaster(t *testing.T) {
	svc, db, pub := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Crashed", "owner")
	forceHolder(t, db, session.Id, "u1")

	assert.True(t, svc.ReconcileBroadcaster(ctx, session.Id))
	assert.True(t, loadSession(t, db, session.Id).Broadcaster.IsEmpty())
	assert.False(t, svc.ReconcileBroadcaster(ctx, session.Id))

	assert.False(t, svc.ReconcileBroadcaster(ctx, uuid.New()))
	assert.Contains(t, pub.eventTypes(), pkgEvents.BroadcasterReconciled)
	assertInvariants(t, db, session.Id)
}

func TestReconcileBroadcaster_KeepsLiveHolder(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Healthy", "owner")

	_, err := svc.JoinSession(ctx, session.Id, "u1", true, nil)
	require.NoError(t, err)

	assert.False(t, svc.ReconcileBroadcaster(ctx, session.Id))
	assert.True(t, loadSession(t, db, session.Id).Broadcaster.IsHeldBy("u1"))
}

func TestReconcileBroadcaster_RepairsDemotedHolder(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Demoted", "owner")

	_, err := svc.JoinSession(ctx, session.Id, "u1", true, nil)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.LiveSessionMember{}).
		Where("session_id = ? AND user_id = ?", session.Id, "u1").
		Update("role", string(entity.MemberRoleListener)).Error)

	assert.True(t, svc.ReconcileBroadcaster(ctx, session.Id))
	assert.True(t, loadSession(t, db, session.Id).Broadcaster.IsEmpty())

	members, err := svc.ListMembers(ctx, session.Id)
	require.NoError(t, err)
	assert.Len(t, members, 2, "the demoted holder stays a member")
	assertInvariants(t, db, session.Id)
}

func TestJoinSession_TakesOverDanglingSlot(t *testing.T) {
	svc, db, pub := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Abandoned", "owner")
	forceHolder(t, db, session.Id, "ghost")

	res, err := svc.JoinSession(ctx, session.Id, "u2", true, nil)
	require.NoError(t, err)
	assert.True(t, res.Session.Broadcaster.IsHeldBy("u2"))
	assertInvariants(t, db, session.Id)
	assert.Contains(t, pub.eventTypes(), pkgEvents.BroadcasterReconciled)
}

func TestGetOrCreateChannel(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateChannel(ctx, "imam", "Friday Khutbah", "khutbah")
	require.NoError(t, err)
	assert.True(t, first.IsBroadcastChannel)
	assert.Equal(t, entity.SessionTypeOfficial, first.SessionType)
	assert.Equal(t, 0, first.MemberCount)
	assert.True(t, first.ChatEnabled)
	assert.False(t, first.DonationsEnabled)

	second, err := svc.GetOrCreateChannel(ctx, "imam", "Friday Khutbah", "khutbah")
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	_, err = svc.GetOrCreateChannel(ctx, "impostor", "Friday Khutbah", "khutbah")
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	res, err := svc.JoinSession(ctx, first.Id, "imam", true, nil)
	require.NoError(t, err)
	assert.True(t, res.Session.Broadcaster.IsHeldBy("imam"))
	assertInvariants(t, db, first.Id)

	_, err = svc.JoinSession(ctx, first.Id, "listener", false, nil)
	require.NoError(t, err)
	_, err = svc.ClaimBroadcaster(ctx, first.Id, "listener")
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
	assertInvariants(t, db, first.Id)
}

func TestCloseSession(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()

	channel, err := svc.GetOrCreateChannel(ctx, "imam", "Taraweeh", "taraweeh")
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, channel.Id, "imam", true, nil)
	require.NoError(t, err)

	_, err = svc.CloseSession(ctx, channel.Id, "someone")
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	closed, err := svc.CloseSession(ctx, channel.Id, "imam")
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.True(t, closed.Broadcaster.IsEmpty())
	assertInvariants(t, db, channel.Id)

	_, err = svc.ClaimBroadcaster(ctx, channel.Id, "imam")
	assert.ErrorIs(t, err, errs.ErrInactive)

	reopened, err := svc.GetOrCreateChannel(ctx, "imam", "Taraweeh", "taraweeh")
	require.NoError(t, err)
	assert.Equal(t, channel.Id, reopened.Id)
	assert.True(t, reopened.IsActive)
}

func TestTouchActivity(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Touch", "u1")
	assert.Nil(t, session.LastBroadcastAt)

	require.NoError(t, svc.TouchActivity(ctx, session.Id))
	assert.NotNil(t, loadSession(t, db, session.Id).LastBroadcastAt)

	assert.NoError(t, svc.TouchActivity(ctx, uuid.New()))
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	svc, db, _ := newTestSessionService(t)
	ctx := context.Background()
	session := createCommunitySession(t, svc, "Chaos", "u0")
	users := []string{"u0", "u1", "u2", "u3", "u4"}

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 25; i++ {
				user := users[rng.Intn(len(users))]
				switch rng.Intn(6) {
				case 0:
					_, _ = svc.JoinSession(ctx, session.Id, user, false, nil)
				case 1:
					_, _ = svc.JoinSession(ctx, session.Id, user, true, nil)
				case 2:
					_ = svc.LeaveSession(ctx, session.Id, user)
				case 3:
					_, _ = svc.ClaimBroadcaster(ctx, session.Id, user)
				case 4:
					_, _ = svc.ReleaseBroadcaster(ctx, session.Id, user)
				case 5:
					svc.ReconcileBroadcaster(ctx, session.Id)
				}
			}
		}(int64(worker + 1))
	}
	wg.Wait()

	assertInvariants(t, db, session.Id)
}
