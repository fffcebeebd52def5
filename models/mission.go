package models

import (
	"time"
)

// VerificationType selects the adapter that evaluates a mission's criteria.
type VerificationType string

const (
	VerifySolanaRecentTx           VerificationType = "solana_recent_tx"
	VerifySolanaMinBalance         VerificationType = "solana_min_balance"
	VerifySolanaSelfTransfer       VerificationType = "solana_self_transfer"
	VerifySolanaProgramInteraction VerificationType = "solana_program_interaction"
	VerifyXPostHashtag             VerificationType = "x_post_hashtag"
	VerifyXReply                   VerificationType = "x_reply"
	VerifyXFollow                  VerificationType = "x_follow"
	VerifyAppAction                VerificationType = "app_action"
	VerifyManual                   VerificationType = "manual"
)

type MissionCategory string

const (
	CategoryRepeatable MissionCategory = "repeatable"
	CategoryOneTime    MissionCategory = "one_time"
)

type Recurrence string

const (
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceOneTime Recurrence = "one_time"
)

// VerificationConfig is interpreted only by the adapter matching the mission's
// verification type. Numbers decoded from JSON arrive as float64.
type VerificationConfig map[string]any

// MissionTemplate is the static definition of a completable task.
type MissionTemplate struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Category           MissionCategory    `json:"category"`
	VerificationType   VerificationType   `json:"verification_type"`
	VerificationConfig VerificationConfig `json:"verification_config"`
	XPReward           int64              `json:"xp_reward"`
	Active             bool               `json:"active"`
	Recurrence         Recurrence         `json:"recurrence"`
}

// MissionInstance is a dated occurrence of a repeatable template.
// ID is always TemplateID + "_" + Period.
type MissionInstance struct {
	ID                 string             `gorm:"primaryKey;type:varchar(128)" json:"id"`
	TemplateID         string             `gorm:"index;not null;type:varchar(64)" json:"template_id"`
	Period             string             `gorm:"index;not null;type:varchar(16)" json:"period"`
	Title              string             `gorm:"not null" json:"title"`
	Description        string             `gorm:"type:text" json:"description"`
	VerificationType   VerificationType   `gorm:"type:varchar(48);not null" json:"verification_type"`
	VerificationConfig VerificationConfig `gorm:"serializer:json;type:text" json:"verification_config"`
	XPReward           int64              `gorm:"not null;default:0" json:"xp_reward"`
	StartsAt           time.Time          `gorm:"not null" json:"starts_at"`
	ExpiresAt          *time.Time         `json:"expires_at,omitempty"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
}
