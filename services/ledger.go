package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"vibeproof/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MissionRef names the mission a completion is keyed on: exactly one field is set.
type MissionRef struct {
	InstanceID string `json:"instance_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
}

func (r MissionRef) Validate() error {
	hasInstance := strings.TrimSpace(r.InstanceID) != ""
	hasTemplate := strings.TrimSpace(r.TemplateID) != ""
	switch {
	case hasInstance && hasTemplate:
		return validationErr("supply instance_id or template_id, not both")
	case !hasInstance && !hasTemplate:
		return validationErr("one of instance_id or template_id is required")
	}
	return nil
}

// Key is the mission id the ref points at.
func (r MissionRef) Key() string {
	if r.InstanceID != "" {
		return r.InstanceID
	}
	return r.TemplateID
}

// Ledger stores mission completions. The partial unique indexes created by
// database.Migrate are the only at-most-once guard; there are no in-process locks.
type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

// EnsureInstances inserts instances, ignoring ids that already exist.
func (l *Ledger) EnsureInstances(ctx context.Context, instances []models.MissionInstance) error {
	if len(instances) == 0 {
		return nil
	}
	return l.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&instances).Error
}

// Begin inserts a verifying row. A live row for the same key yields ErrAlreadyCompleted.
func (l *Ledger) Begin(ctx context.Context, principal string, ref MissionRef, vt models.VerificationType, proof map[string]any) (*models.MissionCompletion, error) {
	c := models.MissionCompletion{
		ID:               uuid.NewString(),
		UserID:           principal,
		VerificationType: vt,
		Status:           models.CompletionVerifying,
		ProofData:        proof,
	}
	if ref.InstanceID != "" {
		id := ref.InstanceID
		c.MissionInstanceID = &id
	} else {
		id := ref.TemplateID
		c.MissionTemplateID = &id
	}

	if err := l.DB.WithContext(ctx).Create(&c).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrAlreadyCompleted
		}
		return nil, err
	}
	return &c, nil
}

// Finish moves a verifying row to verified or failed. When the row already left
// verifying (a sweep expired it), nothing is written and transitioned is false.
func (l *Ledger) Finish(ctx context.Context, id string, res VerificationResult, xpReward int64, at time.Time) (row *models.MissionCompletion, transitioned bool, err error) {
	upd := models.MissionCompletion{
		Status:             models.CompletionFailed,
		VerificationResult: res.AsMap(),
		CompletedAt:        &at,
	}
	if res.Verified {
		upd.Status = models.CompletionVerified
		upd.XPAwarded = xpReward
		upd.VerifiedAt = &at
	}

	tx := l.DB.WithContext(ctx).Model(&models.MissionCompletion{}).
		Where("id = ? AND status = ?", id, models.CompletionVerifying).
		Select("status", "verification_result", "xp_awarded", "completed_at", "verified_at").
		Updates(&upd)
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	row, err = l.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return row, tx.RowsAffected == 1, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*models.MissionCompletion, error) {
	var c models.MissionCompletion
	if err := l.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByPrincipal returns the newest completions first.
func (l *Ledger) ListByPrincipal(ctx context.Context, principal string, limit int) ([]models.MissionCompletion, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var rows []models.MissionCompletion
	err := l.DB.WithContext(ctx).
		Where("user_id = ?", principal).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountByKey counts every row, any status, for one principal and mission key.
func (l *Ledger) CountByKey(ctx context.Context, principal string, ref MissionRef) (int64, error) {
	q := l.DB.WithContext(ctx).Model(&models.MissionCompletion{}).Where("user_id = ?", principal)
	if ref.InstanceID != "" {
		q = q.Where("mission_instance_id = ?", ref.InstanceID)
	} else {
		q = q.Where("mission_template_id = ?", ref.TemplateID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// StatusByMission maps each mission key to the status of its latest attempt.
// Keys with no attempts are absent.
func (l *Ledger) StatusByMission(ctx context.Context, principal string, keys []string) (map[string]models.CompletionStatus, error) {
	out := make(map[string]models.CompletionStatus, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []models.MissionCompletion
	err := l.DB.WithContext(ctx).
		Where("user_id = ?", principal).
		Where("mission_instance_id IN ? OR mission_template_id IN ?", keys, keys).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.MissionKey()] = r.Status
	}
	return out, nil
}
