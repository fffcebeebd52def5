package models

import (
	"time"
)

// CompletionStatus is the lifecycle state of one verification attempt.
type CompletionStatus string

const (
	CompletionPending   CompletionStatus = "pending"
	CompletionVerifying CompletionStatus = "verifying"
	CompletionVerified  CompletionStatus = "verified"
	CompletionFailed    CompletionStatus = "failed"
	CompletionExpired   CompletionStatus = "expired"
)

// Blocking reports whether a row in this state prevents a new attempt
// for the same (user, mission) key. It mirrors the partial unique indexes.
func (s CompletionStatus) Blocking() bool {
	return s == CompletionPending || s == CompletionVerifying || s == CompletionVerified
}

// MissionCompletion is one attempt to satisfy a mission's criteria.
// Exactly one of MissionInstanceID / MissionTemplateID is set.
type MissionCompletion struct {
	ID                 string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID             string           `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	MissionInstanceID  *string          `gorm:"index;type:varchar(128);check:chk_completion_one_mission_key,(mission_instance_id IS NULL) <> (mission_template_id IS NULL)" json:"mission_instance_id,omitempty"`
	MissionTemplateID  *string          `gorm:"index;type:varchar(64)" json:"mission_template_id,omitempty"`
	VerificationType   VerificationType `gorm:"type:varchar(48);not null" json:"verification_type"`
	Status             CompletionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ProofData          map[string]any   `gorm:"serializer:json;type:text" json:"proof_data,omitempty"`
	VerificationResult map[string]any   `gorm:"serializer:json;type:text" json:"verification_result,omitempty"`
	XPAwarded          int64            `gorm:"not null;default:0" json:"xp_awarded"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	VerifiedAt         *time.Time       `json:"verified_at,omitempty"`
	CreatedAt          time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// MissionKey returns whichever mission id the completion is keyed on.
func (c *MissionCompletion) MissionKey() string {
	if c.MissionInstanceID != nil {
		return *c.MissionInstanceID
	}
	if c.MissionTemplateID != nil {
		return *c.MissionTemplateID
	}
	return ""
}
