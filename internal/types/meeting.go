package types

import (
	"time"

	"github.com/google/uuid"
)

// Meeting type tags form a closed set.
const (
	MeetingTypeWorking     = "working_meeting"
	MeetingTypeDiagnostics = "diagnostics"
	MeetingTypeTraction    = "traction"
	MeetingTypeIntro       = "intro"
)

func ValidMeetingType(t string) bool {
	switch t {
	case MeetingTypeWorking, MeetingTypeDiagnostics, MeetingTypeTraction, MeetingTypeIntro:
		return true
	default:
		return false
	}
}

type Meeting struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FirefliesID *string    `gorm:"column:fireflies_id;size:255;uniqueIndex:uq_meetings_fireflies_id" json:"fireflies_id,omitempty"`
	Title       string     `gorm:"column:title;size:500;not null" json:"title"`
	Date        *time.Time `gorm:"column:date;type:timestamptz" json:"date,omitempty"`
	Transcript  *string    `gorm:"column:transcript;type:text" json:"transcript,omitempty"`
	ClientID    *uuid.UUID `gorm:"type:uuid;index" json:"client_id,omitempty"`
	Client      *Client    `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	MeetingType *string    `gorm:"column:meeting_type;size:50" json:"meeting_type,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	Summaries   []*Summary `gorm:"foreignKey:MeetingID;references:ID" json:"summaries,omitempty"`
}

func (Meeting) TableName() string { return "meetings" }
