package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	tgclient "github.com/advisorkit/consultant-backend/internal/clients/telegram"
	"github.com/advisorkit/consultant-backend/internal/db"
	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/services"
)

// The watcher runs as its own process so a Telegram outage or reconnect storm
// never touches API availability. It exits 3 on a dead session string, which
// the supervisor treats as "do not restart, re-authorize first".
func main() {
	_ = godotenv.Load()

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

	chatRoomRepo := repos.NewChatRoomRepo(thePG, log)
	chatMessageRepo := repos.NewChatMessageRepo(thePG, log)
	chatEmbeddingRepo := repos.NewChatEmbeddingRepo(thePG, log)

	embedder, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	telegramSync := services.NewTelegramSyncService(thePG, chatRoomRepo, chatMessageRepo, chatEmbeddingRepo, embedder, log)

	sess, err := tgclient.NewGotdSession(log)
	if err != nil {
		log.Error("Could not init Telegram session", "error", err)
		os.Exit(1)
	}
	watcher := services.NewTelegramWatcher(sess, telegramSync, chatRoomRepo, services.DefaultReconcileInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Telegram watcher starting")
	if err := watcher.Run(ctx); err != nil {
		if errors.Is(err, tgclient.ErrNotAuthorized) {
			log.Error("Telegram session is not authorized, generate a new session string")
			log.Sync()
			os.Exit(3)
		}
		log.Error("Watcher stopped", "error", err)
		os.Exit(1)
	}
	log.Info("Telegram watcher stopped")
}
