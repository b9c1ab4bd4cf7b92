package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom is a monitored Telegram conversation. The primary key is the
// external Telegram chat id (negative for groups and channels).
// LastSyncedMessageID is the reconciliation watermark: monotonic
// non-decreasing for active rooms.
type ChatRoom struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title               string     `gorm:"column:title;size:500;not null" json:"title"`
	ClientName          *string    `gorm:"column:client_name;size:255" json:"client_name,omitempty"`
	ClientID            *uuid.UUID `gorm:"type:uuid" json:"client_id,omitempty"`
	Client              *Client    `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	LastSyncedMessageID int64      `gorm:"column:last_synced_message_id;not null;default:0" json:"last_synced_message_id"`
	IsActive            bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt           time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (ChatRoom) TableName() string { return "telegram_chats" }
