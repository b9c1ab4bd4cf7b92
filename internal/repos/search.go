package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
)

// TitleFilter is a case-insensitive substring filter over meeting titles.
// ClientNameFilter is an exact filter over chat-room client names. They are
// distinct types so the two cannot be swapped in a diversified query.
type (
	TitleFilter      string
	ClientNameFilter string
)

// DateRange bounds a search window, inclusive on both ends.
type DateRange struct {
	Start       time.Time
	End         time.Time
	Description string
}

// MeetingSearchParams parameterizes a diversified search over the meeting
// corpus. Group = meeting id.
type MeetingSearchParams struct {
	MaxPerGroup   int
	MaxTotal      int
	MinSimilarity float64
	ClientID      *uuid.UUID
	TitleFilter   TitleFilter
	DateRange     *DateRange
}

// ChatSearchParams parameterizes a diversified search over the chat corpus.
// Group = chat id.
type ChatSearchParams struct {
	MaxPerGroup   int
	MaxTotal      int
	MinSimilarity float64
	ClientName    ClientNameFilter
	DateRange     *DateRange
}

type MeetingHit struct {
	MeetingID    uuid.UUID  `gorm:"column:meeting_id"`
	MeetingTitle string     `gorm:"column:meeting_title"`
	MeetingDate  *time.Time `gorm:"column:meeting_date"`
	ChunkText    string     `gorm:"column:chunk_text"`
	Similarity   float64    `gorm:"column:similarity"`
}

type ChatHit struct {
	ChatID      int64     `gorm:"column:chat_id"`
	ChatTitle   string    `gorm:"column:chat_title"`
	ClientName  *string   `gorm:"column:client_name"`
	MessageDate time.Time `gorm:"column:message_date"`
	SenderName  *string   `gorm:"column:sender_name"`
	ChunkText   string    `gorm:"column:chunk_text"`
	Similarity  float64   `gorm:"column:similarity"`
}

type SearchRepo interface {
	SearchMeetings(ctx context.Context, queryVec []float32, p MeetingSearchParams) ([]MeetingHit, error)
	SearchChats(ctx context.Context, queryVec []float32, p ChatSearchParams) ([]ChatHit, error)
}

type searchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchRepo(db *gorm.DB, baseLog *logger.Logger) SearchRepo {
	return &searchRepo{db: db, log: baseLog.With("repo", "SearchRepo")}
}

// SearchMeetings ranks candidate chunks by cosine distance within each
// meeting, keeps at most MaxPerGroup per meeting above MinSimilarity, and
// returns the global top MaxTotal by similarity. The query vector is always a
// bound parameter, never interpolated into the SQL text.
func (r *searchRepo) SearchMeetings(ctx context.Context, queryVec []float32, p MeetingSearchParams) ([]MeetingHit, error) {
	query, args := buildMeetingSearchQuery(pgvector.NewVector(queryVec), p)

	var hits []MeetingHit
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&hits).Error; err != nil {
		return nil, err
	}
	return hits, nil
}

func buildMeetingSearchQuery(vec pgvector.Vector, p MeetingSearchParams) (string, []any) {
	var sb strings.Builder
	args := []any{vec, vec}
	sb.WriteString(`
    WITH ranked AS (
      SELECT
        e.meeting_id,
        m.title AS meeting_title,
        m.date  AS meeting_date,
        e.chunk_text,
        1 - (e.embedding <=> ?) AS similarity,
        ROW_NUMBER() OVER (
          PARTITION BY e.meeting_id
          ORDER BY e.embedding <=> ?
        ) AS group_rank
      FROM meeting_embeddings e
      JOIN meetings m ON m.id = e.meeting_id
      WHERE e.embedding IS NOT NULL`)
	if p.ClientID != nil {
		sb.WriteString("\n        AND m.client_id = ?")
		args = append(args, *p.ClientID)
	}
	if p.TitleFilter != "" {
		sb.WriteString("\n        AND LOWER(m.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(string(p.TitleFilter))+"%")
	}
	if p.DateRange != nil {
		sb.WriteString("\n        AND m.date >= ? AND m.date <= ?")
		args = append(args, p.DateRange.Start, p.DateRange.End)
	}
	sb.WriteString(`
    )
    SELECT meeting_id, meeting_title, meeting_date, chunk_text, similarity
    FROM ranked
    WHERE group_rank <= ? AND similarity > ?
    ORDER BY similarity DESC
    LIMIT ?`)
	args = append(args, p.MaxPerGroup, p.MinSimilarity, p.MaxTotal)
	return sb.String(), args
}

func (r *searchRepo) SearchChats(ctx context.Context, queryVec []float32, p ChatSearchParams) ([]ChatHit, error) {
	query, args := buildChatSearchQuery(pgvector.NewVector(queryVec), p)

	var hits []ChatHit
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&hits).Error; err != nil {
		return nil, err
	}
	return hits, nil
}

func buildChatSearchQuery(vec pgvector.Vector, p ChatSearchParams) (string, []any) {
	var sb strings.Builder
	args := []any{vec, vec}
	sb.WriteString(`
    WITH ranked AS (
      SELECT
        tm.chat_id,
        tc.title AS chat_title,
        tc.client_name,
        tm.date  AS message_date,
        tm.sender_name,
        te.chunk_text,
        1 - (te.embedding <=> ?) AS similarity,
        ROW_NUMBER() OVER (
          PARTITION BY tm.chat_id
          ORDER BY te.embedding <=> ?
        ) AS group_rank
      FROM telegram_embeddings te
      JOIN telegram_messages tm ON tm.id = te.message_id
      JOIN telegram_chats tc ON tc.id = tm.chat_id
      WHERE te.embedding IS NOT NULL`)
	if p.ClientName != "" {
		sb.WriteString("\n        AND tc.client_name = ?")
		args = append(args, string(p.ClientName))
	}
	if p.DateRange != nil {
		sb.WriteString("\n        AND tm.date >= ? AND tm.date <= ?")
		args = append(args, p.DateRange.Start, p.DateRange.End)
	}
	sb.WriteString(`
    )
    SELECT chat_id, chat_title, client_name, message_date, sender_name, chunk_text, similarity
    FROM ranked
    WHERE group_rank <= ? AND similarity > ?
    ORDER BY similarity DESC
    LIMIT ?`)
	args = append(args, p.MaxPerGroup, p.MinSimilarity, p.MaxTotal)
	return sb.String(), args
}
