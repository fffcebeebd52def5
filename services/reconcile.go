package services

import (
	"context"
	"sort"
	"time"

	"vibeproof/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// XPDrift is a wallet whose accumulated XP differs from its verified completions.
type XPDrift struct {
	Wallet     string `json:"wallet"`
	LedgerXP   int64  `json:"ledger_xp"`
	ProgressXP int64  `json:"progress_xp"`
}

// Missing is how much XP the wallet is owed (negative when overpaid).
func (d XPDrift) Missing() int64 {
	return d.LedgerXP - d.ProgressXP
}

type Reconciler struct {
	DB      *gorm.DB
	Clock   Clock
	Metrics *Metrics
	Logger  *zap.Logger
}

func NewReconciler(db *gorm.DB, clock Clock, metrics *Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{DB: db, Clock: clock, Metrics: metrics, Logger: logger}
}

// ExpireStale moves pending and verifying rows older than olderThan to expired.
func (r *Reconciler) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.Clock.Now().Add(-olderThan).UTC()
	res := r.DB.WithContext(ctx).Model(&models.MissionCompletion{}).
		Where("status IN ? AND created_at < ?",
			[]models.CompletionStatus{models.CompletionPending, models.CompletionVerifying}, cutoff).
		Update("status", models.CompletionExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.Logger.Info("expired stale completions", zap.Int64("count", res.RowsAffected), zap.Time("cutoff", cutoff))
	}
	r.Metrics.observeSweep(res.RowsAffected)
	return res.RowsAffected, nil
}

// FindXPDrift compares SUM(xp_awarded) of verified completions with user_progress.xp
// per wallet. It only reports; repairing a wallet is an operator decision.
func (r *Reconciler) FindXPDrift(ctx context.Context) ([]XPDrift, error) {
	var ledger []struct {
		Wallet string
		Total  int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.MissionCompletion{}).
		Select("user_id AS wallet, COALESCE(SUM(xp_awarded), 0) AS total").
		Where("status = ?", models.CompletionVerified).
		Group("user_id").
		Scan(&ledger).Error; err != nil {
		return nil, err
	}

	var progress []struct {
		Wallet string
		XP     int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.UserProgress{}).
		Select("wallet, xp").
		Scan(&progress).Error; err != nil {
		return nil, err
	}

	byWallet := map[string]*XPDrift{}
	for _, l := range ledger {
		byWallet[l.Wallet] = &XPDrift{Wallet: l.Wallet, LedgerXP: l.Total}
	}
	for _, p := range progress {
		d, ok := byWallet[p.Wallet]
		if !ok {
			d = &XPDrift{Wallet: p.Wallet}
			byWallet[p.Wallet] = d
		}
		d.ProgressXP = p.XP
	}

	var drift []XPDrift
	for _, d := range byWallet {
		if d.LedgerXP != d.ProgressXP {
			drift = append(drift, *d)
		}
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].Wallet < drift[j].Wallet })

	r.Metrics.setDrift(len(drift))
	for _, d := range drift {
		r.Logger.Warn("xp drift detected",
			zap.String("wallet", d.Wallet),
			zap.Int64("ledger_xp", d.LedgerXP),
			zap.Int64("progress_xp", d.ProgressXP))
	}
	return drift, nil
}
