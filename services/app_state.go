package services

import (
	"context"
	"errors"
	"strings"

	"vibeproof/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppStateReader is the local state consulted by app_action and social missions.
type AppStateReader interface {
	Profile(ctx context.Context, wallet string) (*models.UserProfile, error)
	LinkedAccount(ctx context.Context, wallet, provider string) (*models.SocialAccount, error)
	LinkedProviders(ctx context.Context, wallet string) ([]string, error)
}

// AppStateService owns user_profiles and social_accounts.
type AppStateService struct {
	DB *gorm.DB
}

func NewAppStateService(db *gorm.DB) *AppStateService {
	return &AppStateService{DB: db}
}

// Profile returns nil, nil when the wallet has no profile yet.
func (s *AppStateService) Profile(ctx context.Context, wallet string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.DB.WithContext(ctx).Where("wallet = ?", wallet).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile creates an empty profile for the wallet if none exists.
func (s *AppStateService) EnsureProfile(ctx context.Context, wallet string) (*models.UserProfile, error) {
	p := models.UserProfile{Wallet: wallet}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return nil, err
	}
	return s.Profile(ctx, wallet)
}

// SetUsername upserts the profile with a new username.
func (s *AppStateService) SetUsername(ctx context.Context, wallet, username string) (*models.UserProfile, error) {
	if _, err := s.EnsureProfile(ctx, wallet); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.UserProfile{}).
		Where("wallet = ?", wallet).
		Update("username", strings.TrimSpace(username)).Error; err != nil {
		return nil, err
	}
	return s.Profile(ctx, wallet)
}

// CheckIn stamps the profile with the given calendar day.
func (s *AppStateService) CheckIn(ctx context.Context, wallet, day string) (*models.UserProfile, error) {
	if _, err := s.EnsureProfile(ctx, wallet); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.UserProfile{}).
		Where("wallet = ?", wallet).
		Update("checked_in_on", day).Error; err != nil {
		return nil, err
	}
	return s.Profile(ctx, wallet)
}

// SetFlag records an app-action flag such as "opened_leaderboard".
func (s *AppStateService) SetFlag(ctx context.Context, wallet, flag string, value bool) (*models.UserProfile, error) {
	var out *models.UserProfile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p := models.UserProfile{Wallet: wallet}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
			return err
		}
		if err := tx.Where("wallet = ?", wallet).First(&p).Error; err != nil {
			return err
		}
		if p.Flags == nil {
			p.Flags = map[string]bool{}
		}
		p.Flags[flag] = value
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

// LinkSocial stores or refreshes the linked account for (wallet, provider).
func (s *AppStateService) LinkSocial(ctx context.Context, acct *models.SocialAccount) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if _, err := s.EnsureProfile(ctx, acct.Wallet); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"external_user_id", "username", "access_token", "updated_at"}),
	}).Create(acct).Error
}

// LinkedAccount returns nil, nil when the provider is not linked.
func (s *AppStateService) LinkedAccount(ctx context.Context, wallet, provider string) (*models.SocialAccount, error) {
	var acct models.SocialAccount
	err := s.DB.WithContext(ctx).Where("wallet = ? AND provider = ?", wallet, provider).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *AppStateService) LinkedProviders(ctx context.Context, wallet string) ([]string, error) {
	var providers []string
	err := s.DB.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("wallet = ?", wallet).
		Order("provider").
		Pluck("provider", &providers).Error
	return providers, err
}
