package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/types"
	"github.com/advisorkit/consultant-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	dsn := utils.GetEnv("DATABASE_URL", "", log)
	if dsn == "" {
		host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
		port := utils.GetEnv("POSTGRES_PORT", "5432", log)
		user := utils.GetEnv("POSTGRES_USER", "postgres", log)
		password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
		name := utils.GetEnv("POSTGRES_NAME", "consultant", log)
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
	}

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	for _, ext := range []string{"uuid-ossp", "vector"} {
		if err := gdb.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS "%s";`, ext)).Error; err != nil {
			serviceLog.Error("Failed to enable extension", "extension", ext, "error", err)
			return nil, fmt.Errorf("enable %s extension: %w", ext, err)
		}
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Client{},
		&types.Meeting{},
		&types.Summary{},
		&types.Hypothesis{},
		&types.MeetingEmbedding{},
		&types.ChatRoom{},
		&types.ChatMessage{},
		&types.ChatEmbedding{},
		&types.Setting{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		sql  string
	}{
		{"fk_summaries_meeting_id", `ALTER TABLE "summaries" ADD CONSTRAINT "fk_summaries_meeting_id" FOREIGN KEY ("meeting_id") REFERENCES "meetings"("id") ON DELETE CASCADE`},
		{"fk_meetings_client_id", `ALTER TABLE "meetings" ADD CONSTRAINT "fk_meetings_client_id" FOREIGN KEY ("client_id") REFERENCES "clients"("id") ON DELETE SET NULL`},
		{"fk_hypotheses_client_id", `ALTER TABLE "hypotheses" ADD CONSTRAINT "fk_hypotheses_client_id" FOREIGN KEY ("client_id") REFERENCES "clients"("id") ON DELETE SET NULL`},
		{"fk_meeting_embeddings_meeting_id", `ALTER TABLE "meeting_embeddings" ADD CONSTRAINT "fk_meeting_embeddings_meeting_id" FOREIGN KEY ("meeting_id") REFERENCES "meetings"("id") ON DELETE CASCADE`},
		{"fk_telegram_chats_client_id", `ALTER TABLE "telegram_chats" ADD CONSTRAINT "fk_telegram_chats_client_id" FOREIGN KEY ("client_id") REFERENCES "clients"("id") ON DELETE SET NULL`},
		{"fk_telegram_messages_chat_id", `ALTER TABLE "telegram_messages" ADD CONSTRAINT "fk_telegram_messages_chat_id" FOREIGN KEY ("chat_id") REFERENCES "telegram_chats"("id") ON DELETE CASCADE`},
		{"fk_telegram_messages_meeting_id", `ALTER TABLE "telegram_messages" ADD CONSTRAINT "fk_telegram_messages_meeting_id" FOREIGN KEY ("meeting_id") REFERENCES "meetings"("id") ON DELETE SET NULL`},
		{"fk_telegram_embeddings_message_id", `ALTER TABLE "telegram_embeddings" ADD CONSTRAINT "fk_telegram_embeddings_message_id" FOREIGN KEY ("message_id") REFERENCES "telegram_messages"("id") ON DELETE CASCADE`},
	}
	for _, c := range constraints {
		stmt := fmt.Sprintf(`
      DO $$ BEGIN
        %s;
      EXCEPTION
        WHEN duplicate_object THEN NULL;
      END $$;
    `, c.sql)
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Error("Failed to add foreign key constraint", "constraint", c.name, "error", err)
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}

	return s.ensureVectorIndexes()
}

// ensureVectorIndexes creates the ANN indexes: HNSW over the meeting corpus,
// IVF-flat over the chat corpus. IVF-flat creation can fail on an empty table;
// that is tolerated and retried on the next boot.
func (s *PostgresService) ensureVectorIndexes() error {
	s.log.Info("Ensuring vector indexes...")
	if err := s.db.Exec(`
    CREATE INDEX IF NOT EXISTS ix_meeting_embeddings_vector
    ON meeting_embeddings USING hnsw (embedding vector_cosine_ops)
  `).Error; err != nil {
		s.log.Error("Failed to create HNSW index on meeting_embeddings", "error", err)
		return fmt.Errorf("create hnsw index: %w", err)
	}
	if err := s.db.Exec(`
    CREATE INDEX IF NOT EXISTS ix_telegram_embeddings_vector
    ON telegram_embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
  `).Error; err != nil {
		s.log.Warn("Failed to create IVF index on telegram_embeddings, will retry on next start", "error", err)
	}
	return nil
}
