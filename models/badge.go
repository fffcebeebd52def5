package models

import (
	"time"
)

// BadgeType: static config, seeded from BadgeTriggers
type BadgeType struct {
	Code        string `gorm:"primaryKey;type:varchar(48)" json:"code"` // e.g., "FIRST_MISSION", "STREAK_7"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	// Every key must be met: level, streak, missions_completed
	Threshold map[string]int64 `gorm:"serializer:json;type:text" json:"threshold"`
}

// UserBadge: awarded instance, at most one per (wallet, badge)
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Wallet    string    `gorm:"uniqueIndex:idx_user_badge;not null;type:varchar(64)" json:"wallet"`
	BadgeCode string    `gorm:"uniqueIndex:idx_user_badge;not null;type:varchar(48)" json:"badge_code"`
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

// Predefined badge triggers
var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_MISSION",
		Name:        "First Proof",
		Description: "Completed your first mission",
		Rarity:      "common",
		Threshold:   map[string]int64{"missions_completed": 1},
	},
	{
		Code:        "MISSIONS_25",
		Name:        "Grinder",
		Description: "Completed 25 missions",
		Rarity:      "rare",
		Threshold:   map[string]int64{"missions_completed": 25},
	},
	{
		Code:        "STREAK_7",
		Name:        "On Fire",
		Description: "Active seven days in a row",
		Rarity:      "rare",
		Threshold:   map[string]int64{"streak": 7},
	},
	{
		Code:        "STREAK_30",
		Name:        "Unbreakable",
		Description: "Active thirty days in a row",
		Rarity:      "epic",
		Threshold:   map[string]int64{"streak": 30},
	},
	{
		Code:        "LEVEL_5",
		Name:        "Rising Vibe",
		Description: "Reached level 5",
		Rarity:      "common",
		Threshold:   map[string]int64{"level": 5},
	},
	{
		Code:        "LEVEL_25",
		Name:        "Proof Master",
		Description: "Reached level 25",
		Rarity:      "legendary",
		Threshold:   map[string]int64{"level": 25},
	},
}
