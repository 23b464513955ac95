package handler

import (
	"context"
	"encoding/json"
	"errors"

	"live-relay-be/internal/dto"
	"live-relay-be/internal/errs"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/pkg/serverutils"
	"live-relay-be/internal/service"
	internalWS "live-relay-be/internal/websocket"
	"live-relay-be/pkg/relay"
	"live-relay-be/pkg/translator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const listenerCommandSetLang = "set_lang"

type LiveWsHandler struct {
	sessions   service.ISessionService
	chat       service.IChatService
	broadcasts service.IBroadcastService
	presence   service.IPresenceService
	translator translator.Translator
	hub        *internalWS.Hub
	logger     logger.ILogger
}

func NewLiveWsHandler(
	sessions service.ISessionService,
	chat service.IChatService,
	broadcasts service.IBroadcastService,
	presence service.IPresenceService,
	translator translator.Translator,
	hub *internalWS.Hub,
	log logger.ILogger,
) *LiveWsHandler {
	return &LiveWsHandler{
		sessions:   sessions,
		chat:       chat,
		broadcasts: broadcasts,
		presence:   presence,
		translator: translator,
		hub:        hub,
		logger:     log,
	}
}

func (h *LiveWsHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/live/v1/sessions/:id/ws", serverutils.JwtMiddleware, requireUpgrade, websocket.New(h.ServeListener))
	r.Get("/live/v1/sessions/:id/broadcast/ws", serverutils.JwtMiddleware, requireUpgrade, websocket.New(h.ServeBroadcaster, websocket.Config{
		ReadBufferSize: internalWS.BroadcasterReadLimit,
	}))
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func deliver(client *internalWS.Client, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	client.Deliver(data)
}

func rejectConn(c *websocket.Conn, message string) {
	data, _ := json.Marshal(dto.ErrorFrame{Type: dto.FrameError, Message: message})
	_ = c.WriteMessage(websocket.TextMessage, data)
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
	_ = c.Close()
}

// ServeListener streams session state, roster, chat and relay paragraphs to
// one listener. Inbound {"type":"set_lang"} switches the relay language.
func (h *LiveWsHandler) ServeListener(c *websocket.Conn) {
	userId, _ := c.Locals("user_id").(string)
	sessionId, err := uuid.Parse(c.Params("id"))
	if err != nil {
		rejectConn(c, "invalid session id")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A listener arriving is a good moment to clear a vanished broadcaster.
	h.sessions.ReconcileBroadcaster(ctx, sessionId)

	session, err := h.sessions.GetSession(ctx, sessionId)
	if err != nil {
		rejectConn(c, err.Error())
		return
	}

	client := internalWS.NewClient(h.hub, c, sessionId, userId)
	deliver(client, dto.SessionFrame{Type: dto.FrameSession, Session: dto.NewSessionResponse(session)})

	if history, err := h.chat.RecentMessages(ctx, sessionId); err == nil {
		for _, m := range history {
			deliver(client, dto.ChatFrame{Type: dto.FrameChat, Message: dto.NewChatMessageResponse(m)})
		}
	}

	rl := relay.New(h.translator, c.Query("lang"), func(f relay.Frame) {
		deliver(client, dto.ParagraphsFrame{
			Type:             dto.FrameParagraphs,
			Paragraphs:       f.Paragraphs,
			IsTranslating:    f.IsTranslating,
			TargetLang:       f.TargetLang,
			BroadcasterReady: f.BroadcasterReady,
		})
	}, h.logger)
	go rl.Run(ctx)
	defer rl.Close()

	unsubscribe, err := rl.Consume(h.broadcasts.Source(), sessionId.String())
	if err != nil {
		h.logger.Error("LIVE_WS", "Failed to subscribe to broadcast", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		rejectConn(c, "broadcast unavailable")
		return
	}
	defer unsubscribe()

	client.OnMessage = func(data []byte) {
		var cmd dto.ListenerCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			deliver(client, dto.ErrorFrame{Type: dto.FrameError, Message: "invalid command"})
			return
		}
		if cmd.Type == listenerCommandSetLang {
			rl.SetTargetLang(cmd.Lang)
		}
	}

	connId := uuid.NewString()
	h.presence.Enter(ctx, sessionId, connId)
	defer h.presence.Leave(context.Background(), sessionId, connId)

	h.logger.Info("LIVE_WS", "Listener connected", map[string]interface{}{"session_id": sessionId.String(), "user_id": userId})
	client.Serve()
	h.logger.Info("LIVE_WS", "Listener disconnected", map[string]interface{}{"session_id": sessionId.String(), "user_id": userId})
}

// ServeBroadcaster accepts BroadcastMessages from the slot holder and fans
// them out. Every frame is checked against the current holder and the
// socket is dropped once the slot ends. Disconnecting releases nothing;
// reconcile handles crashed clients and release is an explicit endpoint.
func (h *LiveWsHandler) ServeBroadcaster(c *websocket.Conn) {
	userId, _ := c.Locals("user_id").(string)
	sessionId, err := uuid.Parse(c.Params("id"))
	if err != nil {
		rejectConn(c, "invalid session id")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := h.broadcasts.Authorize(ctx, sessionId, userId)
	if err != nil {
		rejectConn(c, err.Error())
		return
	}

	client := internalWS.NewClient(h.hub, c, sessionId, userId)
	client.Broadcaster = true
	client.ReadLimit = internalWS.BroadcasterReadLimit
	client.OnMessage = func(data []byte) {
		err := h.broadcasts.Publish(ctx, sessionId, userId, data)
		if err == nil {
			return
		}
		deliver(client, dto.ErrorFrame{Type: dto.FrameError, Message: err.Error()})
		if errors.Is(err, errs.ErrNotAuthorized) || errors.Is(err, errs.ErrNotFound) {
			// The slot moved on; the queued error frame is flushed before close.
			go h.hub.Unregister(client)
		}
	}
	deliver(client, dto.SessionFrame{Type: dto.FrameSession, Session: dto.NewSessionResponse(session)})

	h.logger.Info("LIVE_WS", "Broadcaster connected", map[string]interface{}{"session_id": sessionId.String(), "user_id": userId})
	client.Serve()
	h.logger.Info("LIVE_WS", "Broadcaster disconnected", map[string]interface{}{"session_id": sessionId.String(), "user_id": userId})
}
