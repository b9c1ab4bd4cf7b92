package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type SummaryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, summary *types.Summary) (*types.Summary, error)
	GetByMeeting(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.Summary, error)
	GetLatestByMeeting(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.Summary, error)
}

type summaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSummaryRepo(db *gorm.DB, baseLog *logger.Logger) SummaryRepo {
	return &summaryRepo{db: db, log: baseLog.With("repo", "SummaryRepo")}
}

func (r *summaryRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *summaryRepo) Create(ctx context.Context, tx *gorm.DB, summary *types.Summary) (*types.Summary, error) {
	if err := r.conn(tx).WithContext(ctx).Create(summary).Error; err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *summaryRepo) GetByMeeting(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.Summary, error) {
	var summaries []*types.Summary
	err := r.conn(tx).WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&summaries).Error
	return summaries, err
}

func (r *summaryRepo) GetLatestByMeeting(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.Summary, error) {
	var summary types.Summary
	err := r.conn(tx).WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at DESC").
		First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
