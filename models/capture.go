package models

import (
	"time"
)

// Capture represents one stored stat screen image, whether uploaded over
// HTTP or grabbed from the screen by the device trigger.
type Capture struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileName    string  `gorm:"size:255;not null;uniqueIndex:idx_profile_file"`
	StorePath   string  `gorm:"column:store_path;size:512"` // relative path under the capture base dir
	ProfileID   uint    `gorm:"index;not null;uniqueIndex:idx_profile_file"`
	Profile     Profile `gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ContentType string  `gorm:"size:128"`
	Source      string  `gorm:"size:32"` // upload, screen, import
	SheetID     *uint   `gorm:"index"`   // FK to stat_sheets.id (nullable)
	// Failed marks captures whose extraction came up short. The record stays
	// so the sheet can be filled in by hand.
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}
