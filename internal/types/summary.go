package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Summary struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MeetingID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"meeting_id"`
	Meeting     *Meeting       `gorm:"constraint:OnDelete:CASCADE;foreignKey:MeetingID;references:ID" json:"meeting,omitempty"`
	MeetingType string         `gorm:"column:meeting_type;size:50;not null" json:"meeting_type"`
	ContentText string         `gorm:"column:content_text;type:text;not null" json:"content_text"`
	ContentJSON datatypes.JSON `gorm:"column:content_json;type:jsonb" json:"content_json,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (Summary) TableName() string { return "summaries" }
