package services

import (
	"context"
	"time"

	"vibeproof/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewBadgeService(db *gorm.DB, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{DB: db, Logger: logger}
}

// AutoAwardBadges checks all badge triggers after a progress update. It runs on
// the caller's transaction so badges commit together with the progress row.
func (s *BadgeService) AutoAwardBadges(tx *gorm.DB, prog *models.UserProgress) ([]string, error) {
	var owned []string
	if err := tx.Model(&models.UserBadge{}).
		Where("wallet = ?", prog.Wallet).
		Pluck("badge_code", &owned).Error; err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(owned))
	for _, code := range owned {
		have[code] = true
	}

	var awarded []string
	for _, trigger := range models.BadgeTriggers {
		if have[trigger.Code] || !meetsThreshold(prog, trigger.Threshold) {
			continue
		}
		ub := models.UserBadge{
			ID:        uuid.NewString(),
			Wallet:    prog.Wallet,
			BadgeCode: trigger.Code,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ub).Error; err != nil {
			return nil, err
		}
		awarded = append(awarded, trigger.Code)
		s.Logger.Info("badge awarded", zap.String("wallet", prog.Wallet), zap.String("badge", trigger.Code))
	}
	return awarded, nil
}

func meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "streak":
			if int64(prog.Streak) < required {
				return false
			}
		case "missions_completed":
			if prog.MissionsCompleted < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// AwardedBadge is a badge joined with its catalog entry.
type AwardedBadge struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rarity      string    `json:"rarity"`
	AwardedAt   time.Time `json:"awarded_at"`
}

func (s *BadgeService) ListForWallet(ctx context.Context, wallet string) ([]AwardedBadge, error) {
	var rows []models.UserBadge
	if err := s.DB.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("awarded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]models.BadgeType, len(models.BadgeTriggers))
	for _, b := range models.BadgeTriggers {
		byCode[b.Code] = b
	}
	out := make([]AwardedBadge, 0, len(rows))
	for _, r := range rows {
		b := byCode[r.BadgeCode]
		out = append(out, AwardedBadge{
			Code:        r.BadgeCode,
			Name:        b.Name,
			Description: b.Description,
			Rarity:      b.Rarity,
			AwardedAt:   r.AwardedAt,
		})
	}
	return out, nil
}
