package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vibeproof/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchUnknownType(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, time.Second, nil, nil)
	res := d.Dispatch(context.Background(), "bogus", testWallet, nil)
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, "bogus")
}

func TestDispatchEveryKnownTypeIsRouted(t *testing.T) {
	d := NewDispatcher(newSolanaChecks(&fakeSolana{}), NewSocialChecks(nil, nil), NewAppChecks(nil, Clock{}), time.Second, nil, nil)
	for _, vt := range []models.VerificationType{
		models.VerifySolanaRecentTx,
		models.VerifySolanaMinBalance,
		models.VerifySolanaSelfTransfer,
		models.VerifySolanaProgramInteraction,
		models.VerifyXPostHashtag,
		models.VerifyXReply,
		models.VerifyXFollow,
		models.VerifyAppAction,
		models.VerifyManual,
	} {
		adapter, known := d.adapterFor(vt)
		assert.True(t, known, vt)
		assert.NotNil(t, adapter, vt)
	}
}

func TestDispatchMissingAdapterIsUnavailable(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, time.Second, nil, nil)
	res := d.Dispatch(context.Background(), models.VerifySolanaMinBalance, testWallet, models.VerificationConfig{"min_balance": 0.1})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, ErrAdapterUnavailable.Error())
}

func TestDispatchFoldsAdapterErrors(t *testing.T) {
	d := NewDispatcher(newSolanaChecks(&fakeSolana{err: fmt.Errorf("rpc 503")}), nil, nil, time.Second, nil, nil)
	res := d.Dispatch(context.Background(), models.VerifySolanaMinBalance, testWallet, models.VerificationConfig{"min_balance": 0.1})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, "rpc 503")

	res = d.Dispatch(context.Background(), models.VerifySolanaMinBalance, testWallet, models.VerificationConfig{})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, "misconfigured")
}

func TestDispatchTimesOut(t *testing.T) {
	d := NewDispatcher(newSolanaChecks(blockingSolana{}), nil, nil, 20*time.Millisecond, nil, nil)

	start := time.Now()
	res := d.Dispatch(context.Background(), models.VerifySolanaMinBalance, testWallet, models.VerificationConfig{"min_balance": 0.1})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, "timed out")
}

type panickyRPC struct{ *fakeSolana }

func (panickyRPC) GetBalance(ctx context.Context, address string) (uint64, error) {
	panic("nil map write")
}

func TestDispatchRecoversPanics(t *testing.T) {
	d := NewDispatcher(newSolanaChecks(panickyRPC{}), nil, nil, time.Second, nil, nil)
	var res VerificationResult
	require.NotPanics(t, func() {
		res = d.Dispatch(context.Background(), models.VerifySolanaMinBalance, testWallet, models.VerificationConfig{"min_balance": 0.1})
	})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, "panic")
}

func TestDispatchPassesThroughResults(t *testing.T) {
	d := NewDispatcher(newSolanaChecks(&fakeSolana{balance: 200_000_000}), nil, nil, time.Second, nil, nil)
	res := d.Dispatch(context.Background(), models.VerifySolanaMinBalance, testWallet, models.VerificationConfig{"min_balance": 0.1})
	assert.True(t, res.Verified)
	assert.Equal(t, 0.2, res.Proof["balance"])
}

func TestManualCheck(t *testing.T) {
	assert.False(t, ManualCheck("   ").Verified)
	res := ManualCheck("https://x.com/me/status/1")
	assert.True(t, res.Verified)
	assert.Equal(t, "https://x.com/me/status/1", res.Proof["manual_proof"])
}
