package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	HypothesisStatusNew       = "new"
	HypothesisStatusActive    = "active"
	HypothesisStatusTesting   = "testing"
	HypothesisStatusValidated = "validated"
	HypothesisStatusFailed    = "failed"
	HypothesisStatusPaused    = "paused"
)

func ValidHypothesisStatus(s string) bool {
	switch s {
	case HypothesisStatusNew, HypothesisStatusActive, HypothesisStatusTesting,
		HypothesisStatusValidated, HypothesisStatusFailed, HypothesisStatusPaused:
		return true
	default:
		return false
	}
}

// Hypothesis is a business experiment tracked per client per quarter,
// e.g. "Q1 2026".
type Hypothesis struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ClientID    *uuid.UUID     `gorm:"type:uuid;index" json:"client_id,omitempty"`
	Client      *Client        `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	Title       string         `gorm:"column:title;size:500;not null" json:"title"`
	Description *string        `gorm:"column:description;type:text" json:"description,omitempty"`
	Status      string         `gorm:"column:status;size:50;not null;default:'new'" json:"status"`
	Quarter     string         `gorm:"column:quarter;size:20;index" json:"quarter"`
	Result      *string        `gorm:"column:result;type:text" json:"result,omitempty"`
	ResultData  datatypes.JSON `gorm:"column:result_data;type:jsonb" json:"result_data,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	TestedAt    *time.Time     `gorm:"column:tested_at" json:"tested_at,omitempty"`
}

func (Hypothesis) TableName() string { return "hypotheses" }
