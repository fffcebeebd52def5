package models

import (
	"time"
)

// UserProgress tracks gamified progression for each wallet (denormalized for reads)
type UserProgress struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Wallet string `gorm:"uniqueIndex;not null;type:varchar(64)" json:"wallet"`

	// Core progression
	XP    int64 `json:"xp" gorm:"not null;default:0"`
	Level int   `json:"level" gorm:"not null;default:1"`

	// Daily activity
	Streak         int    `json:"streak" gorm:"not null;default:0"`
	LongestStreak  int    `json:"longest_streak" gorm:"not null;default:0"`
	LastActiveDate string `json:"last_active_date,omitempty" gorm:"type:varchar(10)"` // YYYY-MM-DD

	MissionsCompleted int64 `json:"missions_completed" gorm:"not null;default:0"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
