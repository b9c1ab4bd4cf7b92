package types

import "time"

// Setting is a string-keyed configuration cell. Retrieval tunables and the
// system prompt live here and are re-read per request, unlike environment
// configuration which is fixed at boot.
type Setting struct {
	Key         string    `gorm:"column:key;size:100;primaryKey" json:"key"`
	Value       string    `gorm:"column:value;type:text;not null" json:"value"`
	Description *string   `gorm:"column:description;size:500" json:"description,omitempty"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }
