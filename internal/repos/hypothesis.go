package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type HypothesisRepo interface {
	Create(ctx context.Context, tx *gorm.DB, h *types.Hypothesis) (*types.Hypothesis, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Hypothesis, error)
	List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Hypothesis, error)
	ListByQuarter(ctx context.Context, tx *gorm.DB, quarter string) ([]*types.Hypothesis, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, result *string) (*types.Hypothesis, error)
}

// QuarterStats aggregates hypothesis outcomes for one quarter.
type QuarterStats struct {
	Quarter     string  `json:"quarter"`
	Total       int     `json:"total"`
	Active      int     `json:"active"`
	Testing     int     `json:"testing"`
	Validated   int     `json:"validated"`
	Failed      int     `json:"failed"`
	Paused      int     `json:"paused"`
	SuccessRate float64 `json:"success_rate"`
}

type hypothesisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHypothesisRepo(db *gorm.DB, baseLog *logger.Logger) HypothesisRepo {
	return &hypothesisRepo{db: db, log: baseLog.With("repo", "HypothesisRepo")}
}

func (r *hypothesisRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *hypothesisRepo) Create(ctx context.Context, tx *gorm.DB, h *types.Hypothesis) (*types.Hypothesis, error) {
	if err := r.conn(tx).WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

func (r *hypothesisRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Hypothesis, error) {
	var h types.Hypothesis
	err := r.conn(tx).WithContext(ctx).First(&h, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *hypothesisRepo) List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Hypothesis, error) {
	var hs []*types.Hypothesis
	err := r.conn(tx).WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&hs).Error
	return hs, err
}

func (r *hypothesisRepo) ListByQuarter(ctx context.Context, tx *gorm.DB, quarter string) ([]*types.Hypothesis, error) {
	var hs []*types.Hypothesis
	err := r.conn(tx).WithContext(ctx).
		Where("quarter = ?", quarter).
		Order("created_at ASC").
		Find(&hs).Error
	return hs, err
}

func (r *hypothesisRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, result *string) (*types.Hypothesis, error) {
	values := map[string]any{"status": status}
	if result != nil {
		values["result"] = *result
	}
	if status == types.HypothesisStatusValidated || status == types.HypothesisStatusFailed {
		values["tested_at"] = time.Now()
	}
	res := r.conn(tx).WithContext(ctx).
		Model(&types.Hypothesis{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerr.ErrNotFound
	}
	return r.GetByID(ctx, tx, id)
}

// Stats tallies hypothesis statuses for the quarter in Go rather than SQL;
// quarters hold tens of rows at most.
func Stats(ctx context.Context, repo HypothesisRepo, quarter string) (*QuarterStats, error) {
	hs, err := repo.ListByQuarter(ctx, nil, quarter)
	if err != nil {
		return nil, err
	}
	stats := &QuarterStats{Quarter: quarter, Total: len(hs)}
	for _, h := range hs {
		switch h.Status {
		case types.HypothesisStatusActive:
			stats.Active++
		case types.HypothesisStatusTesting:
			stats.Testing++
		case types.HypothesisStatusValidated:
			stats.Validated++
		case types.HypothesisStatusFailed:
			stats.Failed++
		case types.HypothesisStatusPaused:
			stats.Paused++
		}
	}
	if tested := stats.Validated + stats.Failed; tested > 0 {
		stats.SuccessRate = float64(stats.Validated) / float64(tested) * 100
	}
	return stats, nil
}
