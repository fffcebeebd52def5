package services

import (
	"context"
	"testing"
	"time"

	"vibeproof/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissionRefValidate(t *testing.T) {
	assert.NoError(t, MissionRef{InstanceID: "daily_tx_2026-02-18"}.Validate())
	assert.NoError(t, MissionRef{TemplateID: "ot_connect"}.Validate())
	assert.ErrorIs(t, MissionRef{}.Validate(), ErrValidation)
	assert.ErrorIs(t, MissionRef{InstanceID: " "}.Validate(), ErrValidation)
	assert.ErrorIs(t, MissionRef{InstanceID: "a", TemplateID: "b"}.Validate(), ErrValidation)
}

func TestLedgerBeginConflicts(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newTestDB(t))
	ref := MissionRef{TemplateID: "ot_connect"}

	first, err := l.Begin(ctx, testWallet, ref, models.VerifyAppAction, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionVerifying, first.Status)

	_, err = l.Begin(ctx, testWallet, ref, models.VerifyAppAction, nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted, "a verifying row blocks")

	// another wallet, or the same template id used as an instance key, is a different key
	_, err = l.Begin(ctx, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", ref, models.VerifyAppAction, nil)
	assert.NoError(t, err)
	_, err = l.Begin(ctx, testWallet, MissionRef{InstanceID: "ot_connect"}, models.VerifyAppAction, nil)
	assert.NoError(t, err)
}

func TestLedgerFinish(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newTestDB(t))
	at := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

	row, err := l.Begin(ctx, testWallet, MissionRef{TemplateID: "ot_hold"}, models.VerifySolanaMinBalance, nil)
	require.NoError(t, err)

	done, transitioned, err := l.Finish(ctx, row.ID, passed("ok", map[string]any{"balance": 0.7}), 250, at)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, models.CompletionVerified, done.Status)
	assert.Equal(t, int64(250), done.XPAwarded)
	require.NotNil(t, done.VerifiedAt)
	assert.True(t, at.Equal(*done.VerifiedAt))
	assert.Equal(t, 0.7, done.VerificationResult["proof"].(map[string]any)["balance"])

	// terminal rows are never rewritten
	again, transitioned, err := l.Finish(ctx, row.ID, notMet("late"), 0, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, models.CompletionVerified, again.Status)
	assert.Equal(t, int64(250), again.XPAwarded)
}

func TestLedgerFailedRowFreesTheKey(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newTestDB(t))
	ref := MissionRef{InstanceID: "daily_tx_2026-02-18"}

	row, err := l.Begin(ctx, testWallet, ref, models.VerifySolanaRecentTx, nil)
	require.NoError(t, err)
	_, _, err = l.Finish(ctx, row.ID, notMet("no tx"), 100, time.Now())
	require.NoError(t, err)

	_, err = l.Begin(ctx, testWallet, ref, models.VerifySolanaRecentTx, nil)
	assert.NoError(t, err)
}

func TestLedgerStatusAndListing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	l := NewLedger(db)

	failed, err := l.Begin(ctx, testWallet, MissionRef{InstanceID: "daily_tx_2026-02-18"}, models.VerifySolanaRecentTx, nil)
	require.NoError(t, err)
	_, _, err = l.Finish(ctx, failed.ID, notMet("no"), 100, time.Now())
	require.NoError(t, err)
	// created_at has sub-second resolution; keep the retry strictly later.
	require.NoError(t, db.Model(&models.MissionCompletion{}).Where("id = ?", failed.ID).
		Update("created_at", time.Now().UTC().Add(-time.Minute)).Error)

	retry, err := l.Begin(ctx, testWallet, MissionRef{InstanceID: "daily_tx_2026-02-18"}, models.VerifySolanaRecentTx, nil)
	require.NoError(t, err)
	_, _, err = l.Finish(ctx, retry.ID, passed("ok", nil), 100, time.Now())
	require.NoError(t, err)

	_, err = l.Begin(ctx, testWallet, MissionRef{TemplateID: "ot_connect"}, models.VerifyAppAction, nil)
	require.NoError(t, err)

	status, err := l.StatusByMission(ctx, testWallet, []string{"daily_tx_2026-02-18", "ot_connect", "daily_memo_2026-02-18"})
	require.NoError(t, err)
	assert.Equal(t, map[string]models.CompletionStatus{
		"daily_tx_2026-02-18": models.CompletionVerified,
		"ot_connect":          models.CompletionVerifying,
	}, status)

	rows, err := l.ListByPrincipal(ctx, testWallet, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, failed.ID, rows[2].ID, "oldest last")

	rows, err = l.ListByPrincipal(ctx, testWallet, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnsureInstancesIgnoresExisting(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newTestDB(t))
	c := NewCatalog(time.UTC)
	insts := c.DailyInstances(day("2026-02-18"))

	require.NoError(t, l.EnsureInstances(ctx, insts))
	require.NoError(t, l.EnsureInstances(ctx, insts))
	require.NoError(t, l.EnsureInstances(ctx, nil))

	var count int64
	require.NoError(t, l.DB.Model(&models.MissionInstance{}).Count(&count).Error)
	assert.Equal(t, int64(len(insts)), count)
}
