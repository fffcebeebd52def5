package services

import (
	"context"
	"fmt"
	"time"

	"vibeproof/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XPPerLevel: level = floor(xp / XPPerLevel) + 1
const XPPerLevel = 1000

// LevelForXP is the only level formula; every write recomputes level with it.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// nextStreak applies the daily rule: yesterday -> +1, today -> unchanged, anything else -> 1.
func nextStreak(lastActive, today, yesterday string, streak int) int {
	switch lastActive {
	case today:
		if streak < 1 {
			return 1
		}
		return streak
	case yesterday:
		return streak + 1
	default:
		return 1
	}
}

type ProgressionService struct {
	DB     *gorm.DB
	Badges *BadgeService
	Clock  Clock
	Logger *zap.Logger
}

func NewProgressionService(db *gorm.DB, badges *BadgeService, clock Clock, logger *zap.Logger) *ProgressionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressionService{DB: db, Badges: badges, Clock: clock, Logger: logger}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(ctx context.Context, wallet string) (*models.UserProgress, error) {
	if err := ensureProgressRow(s.DB.WithContext(ctx), wallet); err != nil {
		return nil, err
	}
	var prog models.UserProgress
	if err := s.DB.WithContext(ctx).Where("wallet = ?", wallet).First(&prog).Error; err != nil {
		return nil, err
	}
	return &prog, nil
}

func ensureProgressRow(tx *gorm.DB, wallet string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		DoNothing: true,
	}).Create(&models.UserProgress{
		ID:     uuid.NewString(),
		Wallet: wallet,
		Level:  1,
	}).Error
}

// mutate runs fn on the locked progress row and saves it in one transaction.
func (s *ProgressionService) mutate(ctx context.Context, wallet string, fn func(prog *models.UserProgress, now time.Time)) (*models.UserProgress, []string, error) {
	var updated models.UserProgress
	var badges []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProgressRow(tx, wallet); err != nil {
			return err
		}

		var prog models.UserProgress
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("wallet = ?", wallet).
			First(&prog).Error; err != nil {
			return fmt.Errorf("progress record not found for %s: %w", wallet, err)
		}

		now := s.Clock.Now()
		oldLevel := prog.Level
		fn(&prog, now)

		prog.Level = LevelForXP(prog.XP)
		if prog.Level > oldLevel {
			at := now
			prog.LastLevelUpAt = &at
		}
		if prog.Streak > prog.LongestStreak {
			prog.LongestStreak = prog.Streak
		}

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}

		if s.Badges != nil {
			awarded, err := s.Badges.AutoAwardBadges(tx, &prog)
			if err != nil {
				return err
			}
			badges = awarded
		}

		updated = prog
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &updated, badges, nil
}

func (s *ProgressionService) touchStreak(prog *models.UserProgress, now time.Time) {
	today := now.Format(dayLayout)
	yesterday := now.AddDate(0, 0, -1).Format(dayLayout)
	prog.Streak = nextStreak(prog.LastActiveDate, today, yesterday, prog.Streak)
	prog.LastActiveDate = today
}

// AwardXP adds a verified completion's reward, recomputes level and applies the
// streak rule for today. Negative amounts are rejected before any write.
func (s *ProgressionService) AwardXP(ctx context.Context, wallet string, amount int64, reason string) (*models.UserProgress, error) {
	if amount < 0 {
		return nil, ErrNegativeXP
	}
	if wallet == "" {
		return nil, validationErr("wallet is required")
	}

	prog, badges, err := s.mutate(ctx, wallet, func(prog *models.UserProgress, now time.Time) {
		prog.XP += amount
		prog.MissionsCompleted++
		s.touchStreak(prog, now)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("xp awarded",
		zap.String("wallet", wallet),
		zap.Int64("amount", amount),
		zap.Int64("xp", prog.XP),
		zap.Int("level", prog.Level),
		zap.Int("streak", prog.Streak),
		zap.Strings("badges", badges),
		zap.String("reason", reason),
	)
	return prog, nil
}

// RecordActivity applies only the streak rule, for the daily check-in.
func (s *ProgressionService) RecordActivity(ctx context.Context, wallet string) (*models.UserProgress, error) {
	if wallet == "" {
		return nil, validationErr("wallet is required")
	}
	prog, _, err := s.mutate(ctx, wallet, func(prog *models.UserProgress, now time.Time) {
		s.touchStreak(prog, now)
	})
	return prog, err
}
