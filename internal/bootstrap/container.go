package bootstrap

import (
	"context"
	"log"

	"strive-chatbot-be/internal/config"
	"strive-chatbot-be/internal/controller"
	"strive-chatbot-be/internal/handler"
	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/internal/repository/cache"
	sessionstore "strive-chatbot-be/internal/repository/memory"
	"strive-chatbot-be/internal/repository/unitofwork"
	"strive-chatbot-be/internal/service"
	"strive-chatbot-be/internal/websocket"
	"strive-chatbot-be/pkg/embedding"
	"strive-chatbot-be/pkg/events"
	"strive-chatbot-be/pkg/extraction"
	"strive-chatbot-be/pkg/followup"
	"strive-chatbot-be/pkg/llm"
	"strive-chatbot-be/pkg/llm/factory"
	"strive-chatbot-be/pkg/memory"
	pktNats "strive-chatbot-be/pkg/nats"
	"strive-chatbot-be/pkg/rag"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	bookingDurable      = "chatbot-booking-completed"
	sessionEventDurable = "chatbot-session-events"
)

type Container struct {
	ChatbotController controller.IChatbotController

	// Background services, started by main.go
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
	pubSub  *gochannel.GoChannel
	sysLog  *logger.ZapLogger
	llmLog  *logger.ZapLogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)

	domains, err := config.LoadDomains(cfg.Chatbot.DomainsFile, cfg.Chatbot.DefaultDomain)
	if err != nil {
		log.Fatalf("[FATAL] Failed to load domain profiles: %v", err)
	}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)

	// 3. Model providers
	embeddingProvider := NewEmbeddingProvider(cfg.Ai)
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	var toolCaller llm.ToolCaller
	if tc, ok := llmProvider.(llm.ToolCaller); ok {
		toolCaller = tc
	} else {
		log.Printf("[WARN] LLM provider %s has no tool calling, extraction uses patterns only", cfg.Ai.LLMProvider)
	}

	// 4. Infrastructure
	var rdb *redis.Client
	if cfg.Memory.Backend == "redis" {
		rdb = newRedisClient(cfg.App.RedisURL)
	}

	var memoryStore memory.Store
	if rdb != nil {
		memoryStore = cache.NewMemoryStore(rdb, cfg.Memory.TTL)
		log.Printf("[INFO] Using Memory Backend: REDIS")
	} else {
		memoryStore = sessionstore.NewSessionRepository(cfg.Memory.TTL)
		log.Printf("[INFO] Using Memory Backend: IN-PROCESS")
	}

	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsEnabled {
		if natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger); err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}
		if natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger); err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			natsSub = nil
		}
	}

	// WebSocket Hub; redis relays session events across instances when configured.
	wsHub := websocket.NewHub(rdb, sysLogger)
	sessionEvents := handler.NewSessionEventHandler(wsHub, sysLogger)

	// Without NATS the hub receives lifecycle events directly.
	var emitter events.Emitter = sessionEvents
	if natsPub != nil {
		emitter = natsPub
	}
	eventPublisher := events.NewConversationPublisher(emitter, sysLogger)

	// 5. Engine components
	memoryManager := memory.NewManager(memoryStore, memoryConfig(cfg.Memory), sysLogger)
	extractor := extraction.NewExtractor(toolCaller, extractionConfig(cfg.Chatbot), llmLogger)
	contextBuilder := rag.NewBuilder(
		embeddingProvider,
		service.NewSimilarityService(uowFactory),
		ragConfig(cfg.Chatbot),
		llmLogger,
	)
	followUps := followup.NewGenerator(llmProvider, followUpConfig(cfg.Chatbot), llmLogger)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.App.TurnTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.TurnTopic,
		uowFactory,
		embeddingProvider,
		eventPublisher,
		service.DefaultConsumerConfig(),
		sysLogger,
	)

	chatbotService := service.NewChatbotService(
		uowFactory,
		llmProvider,
		extractor,
		contextBuilder,
		memoryManager,
		followUps,
		publisherService,
		eventPublisher,
		domains,
		service.ChatbotConfigFrom(cfg.Chatbot),
		sysLogger,
	)

	// 7. Inbound events
	if natsSub != nil {
		ctx := context.Background()
		subs := []struct {
			eventType string
			durable   string
			handle    pktNats.EventHandler
		}{
			{events.TypeBookingCompleted, bookingDurable, chatbotService.HandleBookingCompleted},
			{"conversation.>", sessionEventDurable, sessionEvents.Handle},
		}
		for _, s := range subs {
			if err := natsSub.Subscribe(ctx, pktNats.Subject(s.eventType), s.durable, s.handle); err != nil {
				log.Printf("[WARN] Failed to subscribe to %s: %v", s.eventType, err)
			}
		}
	}

	return &Container{
		ChatbotController: controller.NewChatbotController(chatbotService, wsHub, sysLogger),
		ConsumerService:   consumerService,
		WebSocketHub:      wsHub,
		Logger:            sysLogger,
		natsPub:           natsPub,
		natsSub:           natsSub,
		rdb:               rdb,
		pubSub:            pubSub,
		sysLog:            sysLogger,
		llmLog:            llmLogger,
	}
}

// Close releases connections in reverse start order.
func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	c.llmLog.Sync()
	c.sysLog.Sync()
}

// NewEmbeddingProvider builds the configured provider behind the content-hash cache.
func NewEmbeddingProvider(cfg config.AIConfig) embedding.EmbeddingProvider {
	var inner embedding.EmbeddingProvider
	switch cfg.EmbeddingProvider {
	case "openai":
		inner = embedding.NewOpenAIProvider(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.EmbeddingModel)
	default:
		inner = embedding.NewOllamaProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.EmbeddingModel)
	}
	return embedding.NewCachedProvider(inner, cfg.EmbeddingCacheTTL)
}

func newRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}

func memoryConfig(cfg config.MemoryConfig) memory.Config {
	c := memory.DefaultConfig()
	c.QuestionSimilarity = cfg.QuestionSimilarity
	c.RecentSearchWindow = cfg.RecentSearchWindow
	c.MaxRetries = cfg.MaxRetries
	return c
}

func extractionConfig(cfg config.ChatbotConfig) extraction.Config {
	c := extraction.DefaultConfig()
	c.Timeout = cfg.ExtractionTimeout
	c.HistoryWindow = cfg.HistoryWindow
	return c
}

func ragConfig(cfg config.ChatbotConfig) rag.Config {
	c := rag.DefaultConfig()
	c.SimilarityThreshold = cfg.SimilarityThreshold
	c.MatchLimit = cfg.MatchLimit
	c.PatternMinScore = cfg.PatternMinScore
	c.HighConfidence = cfg.HighConfidence
	c.MediumConfidence = cfg.MediumConfidence
	c.HighUrgencyTerms = cfg.HighUrgencyTerms
	c.Timeout = cfg.RetrievalTimeout
	return c
}

func followUpConfig(cfg config.ChatbotConfig) followup.Config {
	c := followup.DefaultConfig()
	c.Timeout = cfg.FollowUpTimeout
	return c
}
