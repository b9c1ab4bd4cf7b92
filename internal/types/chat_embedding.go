package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ChatEmbedding is the single vector of a sufficiently long chat message.
// Messages are short enough to index as one chunk, so ChunkIndex is 0 and
// ChunkText equals the message text.
type ChatEmbedding struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MessageID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"message_id"`
	Message    *ChatMessage    `gorm:"constraint:OnDelete:CASCADE;foreignKey:MessageID;references:ID" json:"message,omitempty"`
	ChunkText  string          `gorm:"column:chunk_text;type:text;not null" json:"chunk_text"`
	ChunkIndex int             `gorm:"column:chunk_index;not null;default:0" json:"chunk_index"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	CreatedAt  time.Time       `gorm:"not null;default:now()" json:"created_at"`
}

func (ChatEmbedding) TableName() string { return "telegram_embeddings" }
