package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	tgclient "github.com/advisorkit/consultant-backend/internal/clients/telegram"
	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

// MinMessageRunes is the indexing threshold: shorter messages carry too
// little signal to embed and are dropped silently.
const MinMessageRunes = 50

// TelegramSyncService persists chat messages and their vectors, and walks
// room history forward from the stored cursor.
type TelegramSyncService interface {
	RegisterChat(ctx context.Context, id int64, title string, clientName *string, clientID *uuid.UUID) (*types.ChatRoom, error)
	ListChats(ctx context.Context) ([]*types.ChatRoom, error)
	SaveAndIndexMessage(ctx context.Context, msg tgclient.Message) (bool, error)
	CatchupChat(ctx context.Context, sess tgclient.Session, room *types.ChatRoom) (int, error)
	CatchupAll(ctx context.Context, sess tgclient.Session) error
}

type telegramSyncService struct {
	db       *gorm.DB
	rooms    repos.ChatRoomRepo
	messages repos.ChatMessageRepo
	vectors  repos.ChatEmbeddingRepo
	embedder EmbeddingClient
	log      *logger.Logger
}

func NewTelegramSyncService(
	db *gorm.DB,
	rooms repos.ChatRoomRepo,
	messages repos.ChatMessageRepo,
	vectors repos.ChatEmbeddingRepo,
	embedder EmbeddingClient,
	log *logger.Logger,
) TelegramSyncService {
	return &telegramSyncService{
		db:       db,
		rooms:    rooms,
		messages: messages,
		vectors:  vectors,
		embedder: embedder,
		log:      log.With("service", "TelegramSyncService"),
	}
}

func (s *telegramSyncService) RegisterChat(ctx context.Context, id int64, title string, clientName *string, clientID *uuid.UUID) (*types.ChatRoom, error) {
	if id == 0 {
		return nil, fmt.Errorf("chat id is required")
	}
	room := &types.ChatRoom{
		ID:         id,
		Title:      title,
		ClientName: clientName,
		ClientID:   clientID,
		IsActive:   true,
	}
	return s.rooms.Upsert(ctx, nil, room)
}

func (s *telegramSyncService) ListChats(ctx context.Context) ([]*types.ChatRoom, error) {
	return s.rooms.List(ctx, nil)
}

// SaveAndIndexMessage runs the save-and-index path: short messages are
// dropped, duplicates are skipped, and message + vector + cursor advance
// commit together or not at all. Returns true when a new row was stored.
func (s *telegramSyncService) SaveAndIndexMessage(ctx context.Context, msg tgclient.Message) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	if len([]rune(text)) < MinMessageRunes {
		return false, nil
	}

	saved := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.messages.Exists(ctx, tx, msg.ChatID, msg.MessageID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		row := &types.ChatMessage{
			ChatID:     msg.ChatID,
			MessageID:  msg.MessageID,
			Date:       msg.Date,
			SenderName: msg.SenderName,
			Text:       &text,
			HasMedia:   msg.HasMedia,
			MediaType:  msg.MediaType,
		}
		if _, err := s.messages.Create(ctx, tx, row); err != nil {
			return err
		}

		vec, err := s.embedder.EmbedOne(ctx, text)
		if err != nil {
			return fmt.Errorf("embed message %d/%d: %w", msg.ChatID, msg.MessageID, err)
		}
		if _, err := s.vectors.Create(ctx, tx, &types.ChatEmbedding{
			MessageID:  row.ID,
			ChunkText:  text,
			ChunkIndex: 0,
			Embedding:  pgvector.NewVector(vec),
		}); err != nil {
			return err
		}

		if err := s.rooms.AdvanceCursor(ctx, tx, msg.ChatID, msg.MessageID); err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return saved, nil
}

// CatchupChat replays a room's history above the stored cursor through the
// save-and-index path. Returns how many messages were newly stored.
func (s *telegramSyncService) CatchupChat(ctx context.Context, sess tgclient.Session, room *types.ChatRoom) (int, error) {
	saved := 0
	err := sess.History(ctx, room.ID, room.LastSyncedMessageID, func(msg tgclient.Message) error {
		ok, err := s.SaveAndIndexMessage(ctx, msg)
		if err != nil {
			// history replay keeps going; the next reconciler pass retries
			s.log.Error("saving history message failed",
				"chat_id", msg.ChatID,
				"message_id", msg.MessageID,
				"error", err.Error(),
			)
			return nil
		}
		if ok {
			saved++
		}
		return nil
	})
	if err != nil {
		return saved, err
	}
	if saved > 0 {
		s.log.Info("chat caught up", "chat_id", room.ID, "saved", saved)
	}
	return saved, nil
}

// CatchupAll walks every active room sequentially, checking for cancellation
// between rooms. A failing room is logged and skipped.
func (s *telegramSyncService) CatchupAll(ctx context.Context, sess tgclient.Session) error {
	rooms, err := s.rooms.ListActive(ctx, nil)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.CatchupChat(ctx, sess, room); err != nil {
			s.log.Error("reconciling chat failed", "chat_id", room.ID, "error", err.Error())
		}
	}
	return nil
}
