package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type SettingRepo interface {
	Get(ctx context.Context, tx *gorm.DB, key string) (*types.Setting, error)
	Set(ctx context.Context, tx *gorm.DB, key, value string, description *string) error
	List(ctx context.Context, tx *gorm.DB) ([]*types.Setting, error)
}

type settingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingRepo(db *gorm.DB, baseLog *logger.Logger) SettingRepo {
	return &settingRepo{db: db, log: baseLog.With("repo", "SettingRepo")}
}

func (r *settingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *settingRepo) Get(ctx context.Context, tx *gorm.DB, key string) (*types.Setting, error) {
	var setting types.Setting
	err := r.conn(tx).WithContext(ctx).First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *settingRepo) Set(ctx context.Context, tx *gorm.DB, key, value string, description *string) error {
	setting := types.Setting{Key: key, Value: value, Description: description}
	assign := map[string]any{"value": value}
	if description != nil {
		assign["description"] = *description
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(assign),
		}).
		Create(&setting).Error
}

func (r *settingRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Setting, error) {
	var settings []*types.Setting
	err := r.conn(tx).WithContext(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}
