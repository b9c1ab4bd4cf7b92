package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the uniform vector dimension across both corpora.
const EmbeddingDim = 1536

// MeetingEmbedding is one vector chunk of a meeting transcript. Chunk indices
// are dense from 0 per meeting; replacement is delete-then-insert in one
// transaction, never incremental.
type MeetingEmbedding struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MeetingID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_meeting_embeddings_chunk;index" json:"meeting_id"`
	Meeting    *Meeting        `gorm:"constraint:OnDelete:CASCADE;foreignKey:MeetingID;references:ID" json:"meeting,omitempty"`
	ChunkText  string          `gorm:"column:chunk_text;type:text;not null" json:"chunk_text"`
	ChunkIndex int             `gorm:"column:chunk_index;not null;uniqueIndex:uq_meeting_embeddings_chunk" json:"chunk_index"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	CreatedAt  time.Time       `gorm:"not null;default:now()" json:"created_at"`
}

func (MeetingEmbedding) TableName() string { return "meeting_embeddings" }
