package bootstrap

import (
	"context"
	"log"

	"live-relay-be/internal/config"
	"live-relay-be/internal/controller"
	liveEvents "live-relay-be/internal/events"
	"live-relay-be/internal/handler"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/memory"
	"live-relay-be/internal/repository/unitofwork"
	"live-relay-be/internal/service"
	"live-relay-be/internal/websocket"
	pktNats "live-relay-be/pkg/nats"
	"live-relay-be/pkg/translator"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	ChatController    controller.IChatController
	LiveWsHandler     *handler.LiveWsHandler

	// Background workers, started by main
	ConsumerService service.IConsumerService
	Sweeper         *service.ReconcileSweeper
	WebSocketHub    *websocket.Hub

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{}

	// 2. In-process change feed. Blocking publish keeps per-topic order.
	watermillLogger := watermill.NewStdLogger(false, false)
	feed := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = feed.Close() })

	// 3. NATS: domain events to JetStream, broadcast buffers to core subjects.
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		}
	}

	var bus liveEvents.BroadcastBus
	if natsPub != nil && natsSub != nil {
		bus = liveEvents.NewNatsBroadcastBus(natsPub, natsSub)
		c.closers = append(c.closers, natsPub.Close, natsSub.Close)
		log.Printf("[INFO] Broadcast bus: NATS (%s)", cfg.App.NatsURL)
	} else {
		channelBus := liveEvents.NewChannelBroadcastBus(watermillLogger)
		bus = channelBus
		c.closers = append(c.closers, func() { _ = channelBus.Close() })
		log.Printf("[INFO] Broadcast bus: in-process (single instance)")
	}

	// 4. Redis: cross-instance room fan-out and viewer presence.
	rdb := connectRedis(cfg.App.RedisURL)

	// 5. WebSocket hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogPath)
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 6. Services
	publisher := liveEvents.NewLivePublisher(feed, natsPub, sysLogger)
	sessionService := service.NewSessionService(uowFactory, publisher, sysLogger, cfg.Live.TxMaxAttempts)
	livenessService := service.NewLivenessService(uowFactory, cfg.Live.StaleThreshold)
	chatService := service.NewChatService(uowFactory, publisher, sysLogger, cfg.Live.ChatHistoryLimit)
	broadcastService := service.NewBroadcastService(
		bus,
		sessionService,
		memory.NewActivityThrottle(cfg.Live.TouchInterval),
		memory.NewHolderCache(cfg.Live.HolderCacheTTL),
		wsHub,
		wsLogger,
	)
	presenceService := service.NewPresenceService(uowFactory, rdb, wsLogger)

	relayTranslator, err := translator.New(translator.Config{
		Provider: cfg.Translator.Provider,
		BaseURL:  cfg.Translator.BaseURL,
		Model:    cfg.Translator.Model,
		APIKey:   cfg.Translator.APIKey,
		Timeout:  cfg.Translator.Timeout,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize translator: %v", err)
	}
	log.Printf("[INFO] Using translator: %s (%s)", cfg.Translator.Provider, cfg.Translator.Model)

	c.ConsumerService = service.NewConsumerService(feed, sessionService, wsHub, broadcastService, wsLogger)
	c.Sweeper = service.NewReconcileSweeper(uowFactory, sessionService, cfg.Live.ReconcileSweepInterval, sysLogger)
	c.WebSocketHub = wsHub

	// 7. Controllers
	c.SessionController = controller.NewSessionController(sessionService, livenessService, broadcastService)
	c.ChatController = controller.NewChatController(chatService)
	c.LiveWsHandler = handler.NewLiveWsHandler(
		sessionService,
		chatService,
		broadcastService,
		presenceService,
		translator.WithTracing(relayTranslator),
		wsHub,
		wsLogger,
	)

	return c
}

// connectRedis returns nil when Redis is unconfigured or unreachable; the
// hub and presence then run in single-instance mode.
func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (single-instance mode)", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Close releases the feed and bus connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
