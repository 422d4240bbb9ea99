package models

import (
	"time"

	"umaka/pkg/rating"
)

// StatSheet holds one scanned or hand-entered stat screen: the five
// current/max pairs plus the categories the rating was asked for.
// TotalScore and Rank are recomputed from the stats on every write; they are
// stored only so listings and reports can sort without re-evaluating.
type StatSheet struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint   `gorm:"index;not null;uniqueIndex:idx_user_file"`
	FileName  string `gorm:"size:255;not null;uniqueIndex:idx_user_file"`

	SpeedCurrent   int `gorm:"not null"`
	SpeedMax       int `gorm:"not null"`
	StaminaCurrent int `gorm:"not null"`
	StaminaMax     int `gorm:"not null"`
	PowerCurrent   int `gorm:"not null"`
	PowerMax       int `gorm:"not null"`
	GutsCurrent    int `gorm:"not null"`
	GutsMax        int `gorm:"not null"`
	WisdomCurrent  int `gorm:"not null"`
	WisdomMax      int `gorm:"not null"`

	Distance string `gorm:"size:16;not null"`
	Strategy string `gorm:"size:16;not null"`
	Label    string `gorm:"size:255"`

	TotalScore int       `gorm:"not null;index"`
	Rank       string    `gorm:"size:4;not null"`
	ScannedAt  time.Time `gorm:"not null;index"`

	// NeedsReview is set when the sheet was created zeroed after a failed
	// extraction and still waits for manual entry.
	NeedsReview bool `gorm:"default:false;index"`
}

// Block maps the stored columns onto a rating.StatBlock.
func (s *StatSheet) Block() rating.StatBlock {
	return rating.StatBlock{
		Speed:   rating.StatPair{Current: s.SpeedCurrent, Max: s.SpeedMax},
		Stamina: rating.StatPair{Current: s.StaminaCurrent, Max: s.StaminaMax},
		Power:   rating.StatPair{Current: s.PowerCurrent, Max: s.PowerMax},
		Guts:    rating.StatPair{Current: s.GutsCurrent, Max: s.GutsMax},
		Wisdom:  rating.StatPair{Current: s.WisdomCurrent, Max: s.WisdomMax},
	}
}

// SetBlock writes b into the stat columns.
func (s *StatSheet) SetBlock(b rating.StatBlock) {
	s.SpeedCurrent, s.SpeedMax = b.Speed.Current, b.Speed.Max
	s.StaminaCurrent, s.StaminaMax = b.Stamina.Current, b.Stamina.Max
	s.PowerCurrent, s.PowerMax = b.Power.Current, b.Power.Max
	s.GutsCurrent, s.GutsMax = b.Guts.Current, b.Guts.Max
	s.WisdomCurrent, s.WisdomMax = b.Wisdom.Current, b.Wisdom.Max
}

// Reevaluate refreshes the denormalized TotalScore and Rank from the current
// stats and categories.
func (s *StatSheet) Reevaluate() rating.Evaluation {
	ev := rating.Evaluate(s.Block(), rating.Distance(s.Distance), rating.Strategy(s.Strategy))
	s.TotalScore = ev.Total
	s.Rank = ev.Rank
	return ev
}
