package types

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name             string     `gorm:"column:name;size:255;not null;uniqueIndex:uq_clients_name" json:"name"`
	TelegramChatID   *int64     `gorm:"column:telegram_chat_id" json:"telegram_chat_id,omitempty"`
	TodoistProjectID *string    `gorm:"column:todoist_project_id;size:50" json:"todoist_project_id,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:now()" json:"created_at"`
	Meetings         []*Meeting `gorm:"foreignKey:ClientID;references:ID" json:"meetings,omitempty"`
}

func (Client) TableName() string { return "clients" }
