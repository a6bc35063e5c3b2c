// internal/models/content.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ContentPage is an editable block of the marketing site (home hero, about,
// solutions, industries...).
type ContentPage struct {
	BaseModel
	Slug        string         `json:"slug" gorm:"uniqueIndex;size:150;not null"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Section     string         `json:"section" gorm:"size:50;index"`
	Summary     string         `json:"summary" gorm:"type:text"`
	Body        string         `json:"body" gorm:"type:text"`
	Images      pq.StringArray `json:"images" gorm:"type:text[]"`
	Metadata    JSONB          `json:"metadata" gorm:"type:jsonb"`
	Published   bool           `json:"published" gorm:"default:false;index"`
	PublishedAt *time.Time     `json:"published_at"`
	SortOrder   int            `json:"sort_order" gorm:"default:0"`
	UpdatedBy   *uuid.UUID     `json:"updated_by" gorm:"type:uuid"`
}
