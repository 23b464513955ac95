package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"live-relay-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RoomChannel is the Redis pub/sub channel every instance listens on.
const RoomChannel = "live_room_events"

type roomEnvelope struct {
	Origin    string          `json:"origin"`
	SessionId uuid.UUID       `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

type Hub struct {
	// Room members: session id -> connected clients
	rooms map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, nil when single instance
	rdb        *redis.Client
	instanceId string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.SessionId]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.SessionId] = room
			}
			room[client] = struct{}{}
			size := len(room)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client joined room", map[string]interface{}{
				"session_id": client.SessionId.String(),
				"user_id":    client.UserId,
				"room_size":  size,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.SessionId]; ok {
				if _, member := room[client]; member {
					delete(room, client)
					client.close()
				}
				if len(room) == 0 {
					delete(h.rooms, client.SessionId)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionId, room := range h.rooms {
		for client := range room {
			client.close()
		}
		delete(h.rooms, sessionId)
	}
}

// RoomSize is the number of clients connected to this instance for sessionId.
func (h *Hub) RoomSize(sessionId uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionId])
}

// Publish sends frame to every client of the session on every instance.
func (h *Hub) Publish(sessionId uuid.UUID, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal frame", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(sessionId, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(roomEnvelope{
			Origin:    h.instanceId,
			SessionId: sessionId,
			Message:   data,
		})
		if err := h.rdb.Publish(context.Background(), RoomChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish room frame to Redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(sessionId uuid.UUID, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.rooms[sessionId] {
		if !client.trySend(data) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, disconnecting", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    client.UserId,
		})
		go h.Unregister(client)
	}
}

// DropBroadcasters disconnects this instance's broadcaster sockets for
// sessionId whose user is not holder. An empty holder drops them all.
func (h *Hub) DropBroadcasters(sessionId uuid.UUID, holder string) int {
	var stale []*Client

	h.mu.RLock()
	for client := range h.rooms[sessionId] {
		if client.Broadcaster && (holder == "" || client.UserId != holder) {
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Info("Hub", "Dropping broadcaster that lost the slot", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    client.UserId,
		})
		h.Unregister(client)
	}
	return len(stale)
}

// Register adds client to its room. After the hub stopped the client is
// closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, RoomChannel)
	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()

	for msg := range pubsub.Channel() {
		var envelope roomEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			h.logger.Warn("Hub", "Redis room frame parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if envelope.Origin == h.instanceId {
			continue
		}
		h.deliverLocal(envelope.SessionId, envelope.Message)
	}
}
