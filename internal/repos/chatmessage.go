package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type ChatMessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error)
	Exists(ctx context.Context, tx *gorm.DB, chatID, messageID int64) (bool, error)
	CountByChat(ctx context.Context, tx *gorm.DB, chatID int64) (int64, error)
}

type ChatEmbeddingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, emb *types.ChatEmbedding) (*types.ChatEmbedding, error)
	CountByChat(ctx context.Context, tx *gorm.DB, chatID int64) (int64, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *chatMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *chatMessageRepo) Exists(ctx context.Context, tx *gorm.DB, chatID, messageID int64) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ChatMessage{}).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Count(&count).Error
	return count > 0, err
}

func (r *chatMessageRepo) CountByChat(ctx context.Context, tx *gorm.DB, chatID int64) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ChatMessage{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error
	return count, err
}

type chatEmbeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) ChatEmbeddingRepo {
	return &chatEmbeddingRepo{db: db, log: baseLog.With("repo", "ChatEmbeddingRepo")}
}

func (r *chatEmbeddingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *chatEmbeddingRepo) Create(ctx context.Context, tx *gorm.DB, emb *types.ChatEmbedding) (*types.ChatEmbedding, error) {
	if emb.ID == uuid.Nil {
		emb.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(emb).Error; err != nil {
		return nil, err
	}
	return emb, nil
}

func (r *chatEmbeddingRepo) CountByChat(ctx context.Context, tx *gorm.DB, chatID int64) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ChatEmbedding{}).
		Joins("JOIN telegram_messages ON telegram_messages.id = telegram_embeddings.message_id").
		Where("telegram_messages.chat_id = ?", chatID).
		Count(&count).Error
	return count, err
}
