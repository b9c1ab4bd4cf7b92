package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/advisorkit/consultant-backend/internal/handlers"
)

type RouterConfig struct {
	WebhookHandler    *handlers.WebhookHandler
	RAGHandler        *handlers.RAGHandler
	MeetingHandler    *handlers.MeetingHandler
	SummaryHandler    *handlers.SummaryHandler
	ClientHandler     *handlers.ClientHandler
	HypothesisHandler *handlers.HypothesisHandler
	ChatHandler       *handlers.ChatHandler
	SettingsHandler   *handlers.SettingsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Webhooks
		api.POST("/webhook/fireflies", cfg.WebhookHandler.Fireflies)

		// RAG
		api.POST("/rag/ask", cfg.RAGHandler.Ask)
		api.POST("/rag/index", cfg.RAGHandler.Index)
		api.GET("/rag/stats", cfg.RAGHandler.Stats)
		api.DELETE("/rag/index/:meeting_id", cfg.RAGHandler.DeleteIndex)
		api.POST("/rag/reindex/:meeting_id", cfg.RAGHandler.Reindex)
		api.POST("/rag/meeting-context/:meeting_id", cfg.RAGHandler.MeetingContext)

		// Meetings
		api.GET("/meetings", cfg.MeetingHandler.List)
		api.POST("/meetings", cfg.MeetingHandler.Create)
		api.GET("/meetings/:id", cfg.MeetingHandler.Get)
		api.PATCH("/meetings/:id/type", cfg.MeetingHandler.UpdateType)
		api.GET("/meetings/:id/summaries", cfg.MeetingHandler.ListSummaries)

		// Summaries
		api.POST("/summaries", cfg.SummaryHandler.Create)
		api.POST("/summaries/generate", cfg.SummaryHandler.Generate)

		// Clients
		api.GET("/clients", cfg.ClientHandler.List)
		api.POST("/clients", cfg.ClientHandler.Create)
		api.GET("/clients/:id", cfg.ClientHandler.Get)

		// Hypotheses
		api.GET("/hypotheses", cfg.HypothesisHandler.List)
		api.POST("/hypotheses", cfg.HypothesisHandler.Create)
		api.GET("/hypotheses/stats/:quarter", cfg.HypothesisHandler.QuarterStats)
		api.GET("/hypotheses/:id", cfg.HypothesisHandler.Get)
		api.PATCH("/hypotheses/:id/status", cfg.HypothesisHandler.UpdateStatus)

		// Telegram chats
		api.GET("/chats", cfg.ChatHandler.List)
		api.POST("/chats", cfg.ChatHandler.Register)

		// Settings
		api.GET("/settings", cfg.SettingsHandler.List)
		api.PUT("/settings/:key", cfg.SettingsHandler.Set)
	}

	return router
}
