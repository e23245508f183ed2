package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"healthbot/internal/config"
	"healthbot/internal/database"
	"healthbot/internal/handlers"
	"healthbot/internal/jobs"
	"healthbot/internal/llm"
	"healthbot/internal/logging"
	"healthbot/internal/middleware"
	"healthbot/internal/preflight"
	"healthbot/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting HealthBot Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s)", cfg.Port, cfg.Environment)

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	checker := preflight.NewChecker(db, cfg)
	if preflight.HasFailures(checker.RunAll()) {
		log.Fatal("❌ Pre-flight checks failed")
	}

	// Hosted models
	var (
		decomposerGen llm.Generator
		composerGen   llm.Generator
		embedder      llm.Embedder
		searcher      llm.Searcher
	)
	if cfg.GoogleAPIKey != "" {
		gemini, err := llm.NewGemini(rootCtx, cfg.GoogleAPIKey, nil)
		if err != nil {
			log.Printf("⚠️  Failed to create Gemini client: %v (replies will use the default message)", err)
		} else {
			decomposerGen = gemini.Generator(cfg.DecomposerModel)
			composerGen = gemini.Generator(cfg.ComposerModel)
			embedder = gemini.Embedder(cfg.EmbeddingModel)
			log.Printf("✅ Gemini client ready (%s, %s, %s)", cfg.DecomposerModel, cfg.ComposerModel, cfg.EmbeddingModel)
		}
	}
	if cfg.ResearchAPIKey != "" {
		searcher = llm.NewResearchClient(cfg.ResearchBaseURL, cfg.ResearchAPIKey, cfg.ResearchModel)
		log.Printf("✅ Research client ready (%s)", cfg.ResearchModel)
	}

	// Knowledge store and seed
	store := services.NewKnowledgeStore(db, embedder)
	seed := services.DefaultKnowledgeSeed()
	if cfg.KnowledgeSeedFile != "" {
		if seed, err = services.LoadKnowledgeSeedFile(cfg.KnowledgeSeedFile); err != nil {
			log.Fatalf("❌ Failed to load knowledge seed: %v", err)
		}
	}
	if err := store.SeedIfEmpty(rootCtx, seed); err != nil {
		log.Fatalf("❌ Failed to seed knowledge store: %v", err)
	}
	if cfg.KnowledgeSeedFile != "" {
		go services.WatchKnowledgeSeed(rootCtx, cfg.KnowledgeSeedFile, store)
	}

	// MongoDB archive (optional)
	var mongoDB *database.MongoDB
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (transcript archive disabled)", err)
			mongoDB = nil
		} else {
			defer mongoDB.Close(context.Background())
			if err := mongoDB.Initialize(rootCtx); err != nil {
				log.Printf("⚠️ Failed to create MongoDB indexes: %v", err)
			}
			log.Println("✅ MongoDB connected successfully")
		}
	} else {
		log.Println("⚠️ MONGODB_URI not set - transcript archive disabled")
	}

	// Conversation state: Redis when configured so instances share history
	var conversations services.ConversationStore = services.NewMemoryConversationStore(cfg.MaxHistory)
	healthHandler := handlers.NewHealthHandler(store)
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (using in-memory conversations)", err)
		} else {
			defer redisService.Close()
			conversations = services.NewRedisConversationStore(redisService.Client(), cfg.MaxHistory)
			healthHandler.WithRedis(redisService)
			log.Println("✅ Conversation history stored in Redis")
		}
	}

	metrics := services.InitMetrics(prometheus.DefaultRegisterer)
	transcripts := services.NewTranscriptService(store, mongoDB)

	assistant := services.NewHealthAssistant(services.AssistantDeps{
		Decomposer:    services.NewQueryDecomposer(decomposerGen, cfg.MaxSubQueries, cfg.DecomposeTimeout),
		Researcher:    services.NewResearchService(searcher, cfg.ResearchTimeout, cfg.ResearchRatePerSecond, cfg.ResearchCacheTTL, cfg.MaxSubQueries, metrics),
		Retriever:     services.NewContextRetriever(store, cfg.ContextResultLimit, cfg.RetrievalTimeout),
		Composer:      services.NewResponseComposer(composerGen, cfg.ComposeTimeout),
		Conversations: conversations,
		Recorder:      transcripts,
		Metrics:       metrics,
	}, services.AssistantOptions{
		MaxHistory: cfg.MaxHistory,
		FailLoud:   cfg.FailLoud,
	})

	twilio := services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber)
	telegram := services.NewTelegramService(cfg.TelegramBotToken)

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register("retention_cleanup", cfg.RetentionCron,
		jobs.NewRetentionCleanupJob(store, transcripts, cfg.ChatRetentionDays)); err != nil {
		log.Fatalf("❌ %v", err)
	}
	if store.HasEmbedder() {
		if err := jobScheduler.Register("embedding_backfill", cfg.EmbeddingBackfillCron,
			jobs.NewEmbeddingBackfillJob(store, 50)); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "HealthBot v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // decomposition, research and composition in one request
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		// Handler values outlive requests (history keys, async replies, transcripts)
		Immutable:    true,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prom := fiberprometheus.New("healthbot")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept",
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Chat=%d/min, Webhook=%d/min, Public=%d/min",
		rateLimitConfig.ChatMax, rateLimitConfig.WebhookMax, rateLimitConfig.PublicReadMax)

	telegramHandler := handlers.NewTelegramHandler(assistant, telegram, cfg.TelegramWebhookSecret)
	whatsAppHandler := handlers.NewWhatsAppHandler(assistant, twilio)
	if cfg.TwilioAsyncReply {
		whatsAppHandler.WithAsyncReplies(twilio)
		log.Println("📱 [WHATSAPP] Replies delivered asynchronously via the Twilio REST API")
	}
	setupRoutes(app, cfg, rateLimitConfig, routeDeps{
		chat:        handlers.NewChatHandler(assistant),
		whatsapp:    whatsAppHandler,
		telegram:    telegramHandler,
		tips:        handlers.NewTipsHandler(services.NewTipsService(store)),
		feedback:    handlers.NewFeedbackHandler(transcripts),
		assessments: handlers.NewAssessmentHandler(services.NewAssessmentService(store)),
		health:      healthHandler,
		twilio:      twilio,
	})

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		telegramHandler.Wait()
		whatsAppHandler.Wait()
		jobScheduler.Stop()
		stopBackground()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := assistant.Close(ctx); err != nil {
			log.Printf("⚠️ %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}

	<-shutdownDone
	log.Println("👋 Server stopped")
}

type routeDeps struct {
	chat        *handlers.ChatHandler
	whatsapp    *handlers.WhatsAppHandler
	telegram    *handlers.TelegramHandler
	tips        *handlers.TipsHandler
	feedback    *handlers.FeedbackHandler
	assessments *handlers.AssessmentHandler
	health      *handlers.HealthHandler
	twilio      *services.TwilioService
}

func setupRoutes(app *fiber.App, cfg *config.Config, limits *middleware.RateLimitConfig, d routeDeps) {
	publicRead := middleware.PublicReadRateLimiter(limits)
	chatLimit := middleware.ChatRateLimiter(limits)
	webhookLimit := middleware.WebhookRateLimiter(limits)

	app.Get("/health", d.health.Handle)

	app.Post("/chat", chatLimit, d.chat.Chat)
	app.Get("/chat/history/:user_id", publicRead, d.chat.History)

	whatsapp := []fiber.Handler{webhookLimit}
	if cfg.TwilioValidateSignature {
		whatsapp = append(whatsapp, middleware.TwilioSignature(d.twilio, cfg.PublicBaseURL))
		log.Println("🔒 [TWILIO] Webhook signature validation enabled")
	}
	app.Post("/whatsapp/webhook", append(whatsapp, d.whatsapp.Webhook)...)
	app.Post("/whatsapp/status", d.whatsapp.Status)

	if cfg.TelegramBotToken != "" {
		app.Post("/telegram/webhook", webhookLimit, d.telegram.Webhook)
		log.Println("✅ [TELEGRAM] Webhook enabled at /telegram/webhook")
	}

	app.Get("/tips/random", publicRead, d.tips.Random)
	app.Post("/feedback", publicRead, d.feedback.Submit)
	app.Get("/assessments/:category", publicRead, d.assessments.Get)
	app.Post("/assessments/:category/score", publicRead, d.assessments.Score)

	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/metrics") {
			return c.Next()
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})
}
