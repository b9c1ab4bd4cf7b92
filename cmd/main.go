package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/advisorkit/consultant-backend/internal/db"
	"github.com/advisorkit/consultant-backend/internal/handlers"
	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/server"
	"github.com/advisorkit/consultant-backend/internal/services"
	"github.com/advisorkit/consultant-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Redis (optional, settings cache only)
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
	}

	// Repos
	log.Info("Setting up Repos from main...")
	clientRepo := repos.NewClientRepo(thePG, log)
	meetingRepo := repos.NewMeetingRepo(thePG, log)
	summaryRepo := repos.NewSummaryRepo(thePG, log)
	hypothesisRepo := repos.NewHypothesisRepo(thePG, log)
	settingRepo := repos.NewSettingRepo(thePG, log)
	embeddingRepo := repos.NewMeetingEmbeddingRepo(thePG, log)
	chatRoomRepo := repos.NewChatRoomRepo(thePG, log)
	chatMessageRepo := repos.NewChatMessageRepo(thePG, log)
	chatEmbeddingRepo := repos.NewChatEmbeddingRepo(thePG, log)
	searchRepo := repos.NewSearchRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	embedder, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	model, err := services.NewClaudeClient(log)
	if err != nil {
		log.Error("Could not init ClaudeClient", "error", err)
		os.Exit(1)
	}
	fireflies, err := services.NewFirefliesClient(log)
	if err != nil {
		log.Error("Could not init FirefliesClient", "error", err)
		os.Exit(1)
	}
	settingsService := services.NewSettingsService(settingRepo, redisClient, log)
	chunker := services.NewChunker(services.DefaultChunkSize, services.DefaultChunkOverlap)
	indexingService := services.NewIndexingService(thePG, meetingRepo, embeddingRepo, embedder, chunker, log)
	transcriptService := services.NewTranscriptService(fireflies, meetingRepo, indexingService, log)
	ragService := services.NewRAGService(meetingRepo, chatRoomRepo, embeddingRepo, searchRepo, embedder, model, settingsService, log)
	summarizerService := services.NewSummarizerService(thePG, meetingRepo, summaryRepo, model, settingsService, log)
	telegramSync := services.NewTelegramSyncService(thePG, chatRoomRepo, chatMessageRepo, chatEmbeddingRepo, embedder, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	webhookHandler := handlers.NewWebhookHandler(log, transcriptService)
	ragHandler := handlers.NewRAGHandler(log, ragService, indexingService)
	meetingHandler := handlers.NewMeetingHandler(log, meetingRepo, summaryRepo)
	summaryHandler := handlers.NewSummaryHandler(log, summaryRepo, meetingRepo, summarizerService)
	clientHandler := handlers.NewClientHandler(log, clientRepo)
	hypothesisHandler := handlers.NewHypothesisHandler(log, hypothesisRepo)
	chatHandler := handlers.NewChatHandler(log, telegramSync)
	settingsHandler := handlers.NewSettingsHandler(log, settingsService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		WebhookHandler:    webhookHandler,
		RAGHandler:        ragHandler,
		MeetingHandler:    meetingHandler,
		SummaryHandler:    summaryHandler,
		ClientHandler:     clientHandler,
		HypothesisHandler: hypothesisHandler,
		ChatHandler:       chatHandler,
		SettingsHandler:   settingsHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
