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

type MeetingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, meeting *types.Meeting) (*types.Meeting, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error)
	GetByFirefliesID(ctx context.Context, tx *gorm.DB, firefliesID string) (*types.Meeting, error)
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Meeting, error)
	ListByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID, limit int) ([]*types.Meeting, error)
	ListWithTranscripts(ctx context.Context, tx *gorm.DB) ([]*types.Meeting, error)
	UpdateType(ctx context.Context, tx *gorm.DB, id uuid.UUID, meetingType string) error
	DistinctTitles(ctx context.Context, tx *gorm.DB) ([]string, error)
}

type meetingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMeetingRepo(db *gorm.DB, baseLog *logger.Logger) MeetingRepo {
	return &meetingRepo{db: db, log: baseLog.With("repo", "MeetingRepo")}
}

func (r *meetingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *meetingRepo) Create(ctx context.Context, tx *gorm.DB, meeting *types.Meeting) (*types.Meeting, error) {
	if err := r.conn(tx).WithContext(ctx).Create(meeting).Error; err != nil {
		return nil, err
	}
	return meeting, nil
}

func (r *meetingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
	var meeting types.Meeting
	err := r.conn(tx).WithContext(ctx).First(&meeting, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (r *meetingRepo) GetByFirefliesID(ctx context.Context, tx *gorm.DB, firefliesID string) (*types.Meeting, error) {
	var meeting types.Meeting
	err := r.conn(tx).WithContext(ctx).First(&meeting, "fireflies_id = ?", firefliesID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (r *meetingRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Meeting, error) {
	var meetings []*types.Meeting
	err := r.conn(tx).WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&meetings).Error
	return meetings, err
}

func (r *meetingRepo) ListByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID, limit int) ([]*types.Meeting, error) {
	var meetings []*types.Meeting
	err := r.conn(tx).WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("date DESC NULLS LAST").
		Limit(limit).
		Find(&meetings).Error
	return meetings, err
}

func (r *meetingRepo) ListWithTranscripts(ctx context.Context, tx *gorm.DB) ([]*types.Meeting, error) {
	var meetings []*types.Meeting
	err := r.conn(tx).WithContext(ctx).
		Where("transcript IS NOT NULL AND transcript <> ''").
		Order("created_at ASC").
		Find(&meetings).Error
	return meetings, err
}

func (r *meetingRepo) UpdateType(ctx context.Context, tx *gorm.DB, id uuid.UUID, meetingType string) error {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.Meeting{}).
		Where("id = ?", id).
		Update("meeting_type", meetingType)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerr.ErrNotFound
	}
	return nil
}

func (r *meetingRepo) DistinctTitles(ctx context.Context, tx *gorm.DB) ([]string, error) {
	var titles []string
	err := r.conn(tx).WithContext(ctx).
		Model(&types.Meeting{}).
		Distinct("title").
		Where("title IS NOT NULL AND title <> ''").
		Pluck("title", &titles).Error
	return titles, err
}
