package models

import (
	"time"
)

// Social providers a wallet can link.
const (
	ProviderX = "x"
)

// UserProfile is the local app state read by app_action missions.
type UserProfile struct {
	Wallet      string          `gorm:"primaryKey;type:varchar(64)" json:"wallet"`
	Username    string          `gorm:"type:varchar(32)" json:"username"`
	CheckedInOn string          `gorm:"type:varchar(10)" json:"checked_in_on,omitempty"` // YYYY-MM-DD
	Flags       map[string]bool `gorm:"serializer:json;type:text" json:"flags,omitempty"`

	Timestamps
}

// SocialAccount holds the OAuth token a client obtained for a linked provider.
type SocialAccount struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Wallet         string    `gorm:"uniqueIndex:idx_social_wallet_provider;not null;type:varchar(64)" json:"wallet"`
	Provider       string    `gorm:"uniqueIndex:idx_social_wallet_provider;not null;type:varchar(16)" json:"provider"`
	ExternalUserID string    `gorm:"not null;type:varchar(64)" json:"external_user_id"`
	Username       string    `gorm:"type:varchar(64)" json:"username"`
	AccessToken    string    `gorm:"type:text" json:"-"`
	LinkedAt       time.Time `gorm:"autoCreateTime" json:"linked_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
