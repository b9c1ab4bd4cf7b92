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

type ClientRepo interface {
	Create(ctx context.Context, tx *gorm.DB, client *types.Client) (*types.Client, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Client, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Client, error)
}

type clientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
	return &clientRepo{db: db, log: baseLog.With("repo", "ClientRepo")}
}

func (r *clientRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *clientRepo) Create(ctx context.Context, tx *gorm.DB, client *types.Client) (*types.Client, error) {
	if err := r.conn(tx).WithContext(ctx).Create(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error) {
	var client types.Client
	err := r.conn(tx).WithContext(ctx).First(&client, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Client, error) {
	var client types.Client
	err := r.conn(tx).WithContext(ctx).First(&client, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Client, error) {
	var clients []*types.Client
	err := r.conn(tx).WithContext(ctx).Order("name ASC").Find(&clients).Error
	return clients, err
}
