package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-relay-be/internal/events"
	"live-relay-be/internal/model"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/pkg/serverutils"
	"live-relay-be/internal/repository/memory"
	"live-relay-be/internal/repository/unitofwork"
	"live-relay-be/internal/service"
	"live-relay-be/pkg/database"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app, _ := newTestAppWithDB(t)
	return app
}

func newTestAppWithDB(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)

	db, err := database.NewSQLiteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.LiveModels()...))

	log := logger.NewNopLogger()
	factory := unitofwork.NewRepositoryFactory(db)
	publisher := events.NewLivePublisher(nil, nil, log)
	sessions := service.NewSessionService(factory, publisher, log, 3)
	liveness := service.NewLivenessService(factory, 30*time.Second)
	chat := service.NewChatService(factory, publisher, log, 100)
	bus := events.NewChannelBroadcastBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	broadcasts := service.NewBroadcastService(bus, sessions, memory.NewActivityThrottle(time.Minute), memory.NewHolderCache(time.Second), nil, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewSessionController(sessions, liveness, broadcasts).RegisterRoutes(api)
	NewChatController(chat).RegisterRoutes(api)
	return app, db
}

func token(t *testing.T, userId, name string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId,
		"name":    name,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, app *fiber.App, method, path, userId string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userId != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userId, "User "+userId))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func createSession(t *testing.T, app *fiber.App, ownerId string) string {
	t.Helper()
	status, env := call(t, app, http.MethodPost, "/api/live/v1/sessions", ownerId, map[string]interface{}{
		"name":         "Study Circle",
		"session_type": "community",
		"chat_enabled": true,
	})
	require.Equal(t, http.StatusCreated, status)

	var session struct {
		Id        string  `json:"id"`
		OwnerName *string `json:"owner_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.NotNil(t, session.OwnerName)
	assert.Equal(t, "User "+ownerId, *session.OwnerName)
	return session.Id
}

func TestSessionController_RequiresToken(t *testing.T) {
	app := newTestApp(t)
	status, _ := call(t, app, http.MethodGet, "/api/live/v1/sessions/live", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSessionController_JoinAndConflict(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app, "u1")

	status, env := call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/join", "u2", map[string]bool{"as_broadcaster": true})
	require.Equal(t, http.StatusOK, status)
	var joined struct {
		Joined  bool `json:"joined"`
		Session struct {
			ActiveBroadcasterId *string `json:"active_broadcaster_id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.True(t, joined.Joined)
	require.NotNil(t, joined.Session.ActiveBroadcasterId)
	assert.Equal(t, "u2", *joined.Session.ActiveBroadcasterId)

	status, env = call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/join", "u3", map[string]bool{"as_broadcaster": true})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, _ = call(t, app, http.MethodGet, "/api/live/v1/sessions/live", "u3", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSessionController_ErrorMapping(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app, "owner")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		want   int
	}{
		{"bad id", http.MethodGet, "/api/live/v1/sessions/not-a-uuid", "u1", nil, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/live/v1/sessions/" + uuid.NewString(), "u1", nil, http.StatusNotFound},
		{"invalid body", http.MethodPost, "/api/live/v1/sessions", "u1", map[string]string{"session_type": "private"}, http.StatusBadRequest},
		{"close by non-owner", http.MethodPost, "/api/live/v1/sessions/" + id + "/close", "intruder", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := call(t, app, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.want, env.Code)
		})
	}

	status, _ := call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/close", "owner", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/join", "late", nil)
	assert.Equal(t, http.StatusGone, status)
}

func TestChatController_SendAndHistory(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app, "owner")

	status, _ := call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/chat", "owner", map[string]string{"text": "welcome"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/chat", "owner", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env := call(t, app, http.MethodGet, "/api/live/v1/sessions/"+id+"/chat", "guest", nil)
	require.Equal(t, http.StatusOK, status)

	var history []struct {
		Text    string `json:"text"`
		IsOwner bool   `json:"is_owner"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "welcome", history[0].Text)
	assert.True(t, history[0].IsOwner)

	status, _ = call(t, app, http.MethodGet, "/api/live/v1/sessions/"+uuid.NewString()+"/chat", "guest", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionController_TouchActivityRequiresHolder(t *testing.T) {
	app, db := newTestAppWithDB(t)
	id := createSession(t, app, "owner")

	status, _ := call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/join", "speaker", map[string]bool{"as_broadcaster": true})
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/join", "listener", nil)
	require.Equal(t, http.StatusOK, status)

	past := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, db.Model(&model.LiveSession{}).Where("id = ?", id).Update("last_broadcast_at", past).Error)

	lastBroadcastAt := func() time.Time {
		var row model.LiveSession
		require.NoError(t, db.Where("id = ?", id).First(&row).Error)
		require.NotNil(t, row.LastBroadcastAt)
		return *row.LastBroadcastAt
	}

	touched := func(user string) bool {
		status, env := call(t, app, http.MethodPost, "/api/live/v1/sessions/"+id+"/activity", user, nil)
		require.Equal(t, http.StatusOK, status)
		var res struct {
			Touched bool `json:"touched"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &res))
		return res.Touched
	}

	for _, user := range []string{"listener", "stranger", "owner"} {
		assert.False(t, touched(user), user)
		assert.True(t, lastBroadcastAt().Equal(past), "%s must not refresh the session", user)
	}

	assert.True(t, touched("speaker"))
	assert.True(t, lastBroadcastAt().After(past.Add(time.Minute)))
}
