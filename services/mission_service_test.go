package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"vibeproof/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type missionFixture struct {
	db       *gorm.DB
	svc      *MissionService
	verifier *fakeVerifier
	progress *ProgressionService
	metrics  *Metrics
}

// now is inside the 2026-02-18 daily window.
func newMissionFixture(t *testing.T, now time.Time) *missionFixture {
	t.Helper()
	db := newTestDB(t)
	clock := fixedClock(now)
	metrics := NewMetrics(prometheus.NewRegistry())
	progress := NewProgressionService(db, NewBadgeService(db, nil), clock, nil)
	verifier := &fakeVerifier{result: passed("ok", map[string]any{"signature": "abc"})}
	svc := NewMissionService(NewCatalog(time.UTC), NewLedger(db), verifier, progress, clock, metrics, nil)
	return &missionFixture{db: db, svc: svc, verifier: verifier, progress: progress, metrics: metrics}
}

func (f *missionFixture) completions(t *testing.T) []models.MissionCompletion {
	t.Helper()
	var rows []models.MissionCompletion
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func dailyTxRequest() CompleteRequest {
	return CompleteRequest{
		Ref:                MissionRef{InstanceID: "daily_tx_2026-02-18"},
		VerificationType:   models.VerifySolanaRecentTx,
		VerificationConfig: models.VerificationConfig{"hours": 24},
		XPReward:           100,
	}
}

func TestVerifyAndCompleteAwardsOnce(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)

	row, err := f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	assert.Equal(t, models.CompletionVerified, row.Status)
	assert.Equal(t, int64(100), row.XPAwarded)
	require.NotNil(t, row.VerifiedAt)
	assert.Equal(t, true, row.VerificationResult["verified"])

	_, err = f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 1, f.verifier.Calls(), "a conflicting attempt never reaches the adapter")

	assert.Len(t, f.completions(t), 1)
	prog, err := f.progress.EnsureProgressRecord(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(100), prog.XP)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.verifications.WithLabelValues(string(models.VerifySolanaRecentTx), "conflict")))
}

func TestVerifyAndCompleteRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	f.verifier.result = notMet("No confirmed transaction found in the last 24 hours")

	row, err := f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	assert.Equal(t, models.CompletionFailed, row.Status)
	assert.Zero(t, row.XPAwarded)
	assert.Nil(t, row.VerifiedAt)
	require.NotNil(t, row.CompletedAt)

	f.verifier.result = passed("ok", nil)
	row, err = f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	assert.Equal(t, models.CompletionVerified, row.Status)

	rows := f.completions(t)
	require.Len(t, rows, 2)
	assert.Equal(t, models.CompletionFailed, rows[0].Status)
	assert.Equal(t, models.CompletionVerified, rows[1].Status)

	n, err := f.svc.Ledger.CountByKey(ctx, testWallet, dailyTxRequest().Ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestVerifyAndCompleteConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	req := CompleteRequest{
		Ref:              MissionRef{TemplateID: "ot_connect"},
		VerificationType: models.VerifyAppAction,
		XPReward:         50,
	}

	const attempts = 16
	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := f.svc.VerifyAndComplete(ctx, testWallet, req)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyCompleted):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)

	var verified int64
	require.NoError(t, f.db.Model(&models.MissionCompletion{}).
		Where("user_id = ? AND mission_template_id = ? AND status = ?", testWallet, "ot_connect", models.CompletionVerified).
		Count(&verified).Error)
	assert.Equal(t, int64(1), verified)

	prog, err := f.progress.EnsureProgressRecord(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(50), prog.XP)
}

func TestProgressMatchesVerifiedSum(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)

	for i, id := range []string{"daily_tx_2026-02-18", "daily_memo_2026-02-18", "daily_reply_2026-02-18"} {
		if i == 1 {
			f.verifier.result = notMet("nope")
		} else {
			f.verifier.result = passed("ok", nil)
		}
		_, err := f.svc.VerifyAndComplete(ctx, testWallet, CompleteRequest{
			Ref:              MissionRef{InstanceID: id},
			VerificationType: models.VerifySolanaRecentTx,
			XPReward:         int64(100 * (i + 1)),
		})
		require.NoError(t, err)
	}

	rec := NewReconciler(f.db, fixedClock(checkNow), nil, nil)
	drift, err := rec.FindXPDrift(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	prog, err := f.progress.EnsureProgressRecord(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(400), prog.XP)
	assert.Equal(t, int64(2), prog.MissionsCompleted)
}

func TestVerifyAndCompleteValidation(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)

	tests := []struct {
		name      string
		principal string
		req       CompleteRequest
	}{
		{"no principal", "", dailyTxRequest()},
		{"no mission", testWallet, CompleteRequest{VerificationType: models.VerifyManual}},
		{"both keys", testWallet, CompleteRequest{Ref: MissionRef{InstanceID: "a", TemplateID: "b"}, VerificationType: models.VerifyManual}},
		{"negative xp", testWallet, CompleteRequest{Ref: MissionRef{TemplateID: "ot_connect"}, VerificationType: models.VerifyAppAction, XPReward: -10}},
		{"no type", testWallet, CompleteRequest{Ref: MissionRef{TemplateID: "ot_connect"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.VerifyAndComplete(ctx, tt.principal, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.completions(t))
	assert.Zero(t, f.verifier.Calls())
}

func TestVerifyAndCompleteSourceFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	dispatcher := NewDispatcher(newSolanaChecks(&fakeSolana{err: errors.New("rpc 503")}), nil, nil, time.Second, nil, nil)
	f.svc.Verifier = dispatcher

	row, err := f.svc.VerifyAndComplete(ctx, testWallet, CompleteRequest{
		Ref:                MissionRef{InstanceID: "daily_balance_2026-02-19"},
		VerificationType:   models.VerifySolanaMinBalance,
		VerificationConfig: models.VerificationConfig{"min_balance": 0.1},
		XPReward:           100,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CompletionFailed, row.Status)
	assert.Contains(t, row.VerificationResult["message"], "rpc 503")
}

func TestVerifyAndCompleteAwardFailureShowsAsDrift(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	f.svc.Progress = failingAwarder{err: errors.New("database is locked")}

	row, err := f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err, "the completion is committed even though the award failed")
	assert.Equal(t, models.CompletionVerified, row.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.xpAwardFailures))

	rec := NewReconciler(f.db, fixedClock(checkNow), f.metrics, nil)
	drift, err := rec.FindXPDrift(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, testWallet, drift[0].Wallet)
	assert.Equal(t, int64(100), drift[0].Missing())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.driftWallets))
}

func TestSweptCompletionIsNotFinished(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	sweeper := NewReconciler(f.db, fixedClock(time.Now().Add(time.Hour)), nil, nil)
	f.verifier.hook = func() {
		n, err := sweeper.ExpireStale(ctx, time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	row, err := f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	assert.Equal(t, models.CompletionExpired, row.Status)
	assert.Zero(t, row.XPAwarded)

	prog, err := f.progress.EnsureProgressRecord(ctx, testWallet)
	require.NoError(t, err)
	assert.Zero(t, prog.XP)

	// expired rows do not block a new attempt
	f.verifier.hook = nil
	row, err = f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	assert.Equal(t, models.CompletionVerified, row.Status)
}

func TestVerifyAndCompleteArchivesVerified(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	sink := &recordingSink{}
	f.svc.WithArchive(sink)

	f.verifier.result = notMet("nope")
	_, err := f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	assert.Zero(t, sink.Len())

	f.verifier.result = passed("ok", nil)
	row, err := f.svc.VerifyAndComplete(ctx, testWallet, dailyTxRequest())
	require.NoError(t, err)
	require.Equal(t, 1, sink.Len())
	assert.Equal(t, row.ID, sink.rows[0].ID)
}

func TestVerifyAndCompleteManual(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)
	req := CompleteRequest{
		Ref:              MissionRef{InstanceID: "weekly_showcase_2026-W08"},
		VerificationType: models.VerifyManual,
		XPReward:         300,
	}

	row, err := f.svc.VerifyAndComplete(ctx, testWallet, req)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionFailed, row.Status, "blank proof")

	req.ManualProof = "https://github.com/me/vibe-dapp"
	row, err = f.svc.VerifyAndComplete(ctx, testWallet, req)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionVerified, row.Status)
	assert.Equal(t, "https://github.com/me/vibe-dapp", row.ProofData["manual_proof"])
	assert.Zero(t, f.verifier.Calls())
}

func TestVerifyMission(t *testing.T) {
	ctx := context.Background()

	t.Run("instance resolves from catalog", func(t *testing.T) {
		f := newMissionFixture(t, checkNow)
		row, err := f.svc.VerifyMission(ctx, testWallet, MissionRef{InstanceID: "daily_tx_2026-02-18"}, "")
		require.NoError(t, err)
		assert.Equal(t, models.VerifySolanaRecentTx, row.VerificationType)
		assert.Equal(t, int64(100), row.XPAwarded)

		var inst models.MissionInstance
		require.NoError(t, f.db.Where("id = ?", "daily_tx_2026-02-18").First(&inst).Error)
		assert.Equal(t, "daily_tx", inst.TemplateID)
	})

	t.Run("expired instance", func(t *testing.T) {
		f := newMissionFixture(t, checkNow.AddDate(0, 0, 1))
		_, err := f.svc.VerifyMission(ctx, testWallet, MissionRef{InstanceID: "daily_tx_2026-02-18"}, "")
		assert.ErrorIs(t, err, ErrMissionNotActive)
		assert.Empty(t, f.completions(t))
	})

	t.Run("future instance", func(t *testing.T) {
		f := newMissionFixture(t, checkNow.AddDate(0, 0, -1))
		_, err := f.svc.VerifyMission(ctx, testWallet, MissionRef{InstanceID: "daily_tx_2026-02-18"}, "")
		assert.ErrorIs(t, err, ErrMissionNotActive)
	})

	t.Run("unknown ids", func(t *testing.T) {
		f := newMissionFixture(t, checkNow)
		_, err := f.svc.VerifyMission(ctx, testWallet, MissionRef{InstanceID: "daily_nope_2026-02-18"}, "")
		assert.ErrorIs(t, err, ErrMissionNotFound)
		_, err = f.svc.VerifyMission(ctx, testWallet, MissionRef{TemplateID: "ot_nope"}, "")
		assert.ErrorIs(t, err, ErrMissionNotFound)
	})

	t.Run("repeating template needs an instance", func(t *testing.T) {
		f := newMissionFixture(t, checkNow)
		_, err := f.svc.VerifyMission(ctx, testWallet, MissionRef{TemplateID: "daily_tx"}, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("one-time template", func(t *testing.T) {
		f := newMissionFixture(t, checkNow)
		row, err := f.svc.VerifyMission(ctx, testWallet, MissionRef{TemplateID: "ot_connect"}, "")
		require.NoError(t, err)
		require.NotNil(t, row.MissionTemplateID)
		assert.Equal(t, "ot_connect", *row.MissionTemplateID)
		assert.Nil(t, row.MissionInstanceID)
	})
}

func TestMaterializeInstancesIsRepeatable(t *testing.T) {
	ctx := context.Background()
	f := newMissionFixture(t, checkNow)

	for i := 0; i < 2; i++ {
		n, err := f.svc.MaterializeInstances(ctx, checkNow)
		require.NoError(t, err)
		assert.Equal(t, DailyCount+WeeklyCount, n)
	}
	var count int64
	require.NoError(t, f.db.Model(&models.MissionInstance{}).Count(&count).Error)
	assert.Equal(t, int64(DailyCount+WeeklyCount), count)
}
