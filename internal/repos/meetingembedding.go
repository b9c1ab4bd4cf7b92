package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type MeetingEmbeddingRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.MeetingEmbedding) error
	HasAny(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (bool, error)
	DeleteByMeeting(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (int64, error)
	GetChunks(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID, limit int) ([]*types.MeetingEmbedding, error)
	Stats(ctx context.Context, tx *gorm.DB) (*IndexStats, error)
}

// IndexStats describes the meeting corpus population.
type IndexStats struct {
	TotalChunks     int64 `json:"total_chunks"`
	IndexedMeetings int64 `json:"indexed_meetings"`
}

type meetingEmbeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMeetingEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) MeetingEmbeddingRepo {
	return &meetingEmbeddingRepo{db: db, log: baseLog.With("repo", "MeetingEmbeddingRepo")}
}

func (r *meetingEmbeddingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *meetingEmbeddingRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.MeetingEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	// Keep batches small because ChunkText plus a 1536-dim vector is a wide row.
	const batchSize = 100
	return r.conn(tx).WithContext(ctx).CreateInBatches(rows, batchSize).Error
}

func (r *meetingEmbeddingRepo) HasAny(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.MeetingEmbedding{}).
		Where("meeting_id = ?", meetingID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *meetingEmbeddingRepo) DeleteByMeeting(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Delete(&types.MeetingEmbedding{})
	return res.RowsAffected, res.Error
}

func (r *meetingEmbeddingRepo) GetChunks(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID, limit int) ([]*types.MeetingEmbedding, error) {
	var rows []*types.MeetingEmbedding
	q := r.conn(tx).WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("chunk_index ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (r *meetingEmbeddingRepo) Stats(ctx context.Context, tx *gorm.DB) (*IndexStats, error) {
	stats := &IndexStats{}
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.MeetingEmbedding{}).
		Count(&stats.TotalChunks).Error; err != nil {
		return nil, err
	}
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.MeetingEmbedding{}).
		Distinct("meeting_id").
		Count(&stats.IndexedMeetings).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
