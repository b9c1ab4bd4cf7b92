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

type ChatRoomRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, room *types.ChatRoom) (*types.ChatRoom, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.ChatRoom, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.ChatRoom, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.ChatRoom, error)
	DistinctClientNames(ctx context.Context, tx *gorm.DB) ([]string, error)
	AdvanceCursor(ctx context.Context, tx *gorm.DB, chatID, messageID int64) error
}

type chatRoomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRoomRepo(db *gorm.DB, baseLog *logger.Logger) ChatRoomRepo {
	return &chatRoomRepo{db: db, log: baseLog.With("repo", "ChatRoomRepo")}
}

func (r *chatRoomRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *chatRoomRepo) Upsert(ctx context.Context, tx *gorm.DB, room *types.ChatRoom) (*types.ChatRoom, error) {
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "client_name", "client_id", "is_active"}),
		}).
		Create(room).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tx, room.ID)
}

func (r *chatRoomRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.ChatRoom, error) {
	var room types.ChatRoom
	err := r.conn(tx).WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRoomRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.ChatRoom, error) {
	var rooms []*types.ChatRoom
	err := r.conn(tx).WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rooms).Error
	return rooms, err
}

func (r *chatRoomRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.ChatRoom, error) {
	var rooms []*types.ChatRoom
	err := r.conn(tx).WithContext(ctx).Order("id ASC").Find(&rooms).Error
	return rooms, err
}

func (r *chatRoomRepo) DistinctClientNames(ctx context.Context, tx *gorm.DB) ([]string, error) {
	var names []string
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ChatRoom{}).
		Distinct("client_name").
		Where("client_name IS NOT NULL AND client_name <> ''").
		Pluck("client_name", &names).Error
	return names, err
}

// AdvanceCursor moves the watermark forward only; concurrent live and
// reconciler commits cannot roll it back.
func (r *chatRoomRepo) AdvanceCursor(ctx context.Context, tx *gorm.DB, chatID, messageID int64) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.ChatRoom{}).
		Where("id = ?", chatID).
		Update("last_synced_message_id", gorm.Expr("GREATEST(last_synced_message_id, ?)", messageID)).Error
}
