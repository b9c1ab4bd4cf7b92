package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one Telegram message. (ChatID, MessageID) is unique, which
// makes every ingest path idempotent against replays.
type ChatMessage struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatID     int64      `gorm:"column:chat_id;not null;uniqueIndex:uq_telegram_message;index:ix_telegram_messages_chat_date,priority:1" json:"chat_id"`
	Chat       *ChatRoom  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChatID;references:ID" json:"chat,omitempty"`
	MessageID  int64      `gorm:"column:message_id;not null;uniqueIndex:uq_telegram_message" json:"message_id"`
	Date       time.Time  `gorm:"column:date;type:timestamptz;not null;index:ix_telegram_messages_chat_date,priority:2" json:"date"`
	SenderName *string    `gorm:"column:sender_name;size:255" json:"sender_name,omitempty"`
	Text       *string    `gorm:"column:text;type:text" json:"text,omitempty"`
	HasMedia   bool       `gorm:"column:has_media;not null;default:false" json:"has_media"`
	MediaType  *string    `gorm:"column:media_type;size:50" json:"media_type,omitempty"`
	MeetingID  *uuid.UUID `gorm:"type:uuid" json:"meeting_id,omitempty"`
	Meeting    *Meeting   `gorm:"foreignKey:MeetingID;references:ID" json:"meeting,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (ChatMessage) TableName() string { return "telegram_messages" }
