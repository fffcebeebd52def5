package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"vibeproof/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func newSolanaChecks(rpc SolanaRPC) *SolanaChecks {
	s := NewSolanaChecks(rpc)
	s.Now = func() time.Time { return checkNow }
	return s
}

func TestMinBalance(t *testing.T) {
	cfg := models.VerificationConfig{"min_balance": 0.1}

	t.Run("pass", func(t *testing.T) {
		s := newSolanaChecks(&fakeSolana{balance: 200_000_000})
		res, err := s.MinBalance(context.Background(), testWallet, cfg)
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.Equal(t, 0.2, res.Proof["balance"])
		assert.Equal(t, 0.1, res.Proof["min_balance"])
	})

	t.Run("fail names both values", func(t *testing.T) {
		s := newSolanaChecks(&fakeSolana{balance: 20_000_000})
		res, err := s.MinBalance(context.Background(), testWallet, cfg)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Contains(t, res.Message, "0.0200")
		assert.Contains(t, res.Message, "0.1000")
	})

	t.Run("json number config", func(t *testing.T) {
		s := newSolanaChecks(&fakeSolana{balance: 1_000_000_000})
		res, err := s.MinBalance(context.Background(), testWallet, models.VerificationConfig{"min_balance": float64(1)})
		require.NoError(t, err)
		assert.True(t, res.Verified)
	})

	t.Run("missing threshold is a config error", func(t *testing.T) {
		s := newSolanaChecks(&fakeSolana{balance: 1})
		_, err := s.MinBalance(context.Background(), testWallet, models.VerificationConfig{})
		assert.True(t, isConfigError(err))
	})

	t.Run("rpc error propagates", func(t *testing.T) {
		boom := errors.New("connection refused")
		s := newSolanaChecks(&fakeSolana{err: boom})
		_, err := s.MinBalance(context.Background(), testWallet, cfg)
		assert.ErrorIs(t, err, boom)
	})
}

func TestRecentTransaction(t *testing.T) {
	sigs := []SignatureInfo{
		{Signature: "failed1", Slot: 300, BlockTime: ptrTime(checkNow.Add(-1 * time.Hour)), Failed: true},
		{Signature: "good1", Slot: 299, BlockTime: ptrTime(checkNow.Add(-2 * time.Hour))},
		{Signature: "good2", Slot: 250, BlockTime: ptrTime(checkNow.Add(-3 * time.Hour))},
	}
	s := newSolanaChecks(&fakeSolana{sigs: sigs})

	res, err := s.RecentTransaction(context.Background(), testWallet, models.VerificationConfig{"hours": 24})
	require.NoError(t, err)
	require.True(t, res.Verified)
	assert.Equal(t, "good1", res.Proof["signature"], "newest successful transaction wins")
	assert.Equal(t, uint64(299), res.Proof["slot"])

	old := newSolanaChecks(&fakeSolana{sigs: []SignatureInfo{
		{Signature: "old", Slot: 1, BlockTime: ptrTime(checkNow.Add(-30 * time.Hour))},
		// older entries are never reached once one falls outside the window
		{Signature: "unordered", Slot: 2, BlockTime: ptrTime(checkNow.Add(-1 * time.Hour))},
	}})
	res, err = old.RecentTransaction(context.Background(), testWallet, models.VerificationConfig{"hours": 24})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Contains(t, res.Message, "24 hours")
}

func TestSelfTransfer(t *testing.T) {
	other := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	sigs := []SignatureInfo{
		{Signature: "received", BlockTime: ptrTime(checkNow.Add(-time.Hour))},
		{Signature: "sent", BlockTime: ptrTime(checkNow.Add(-2 * time.Hour))},
	}
	txs := map[string]*TransactionInfo{
		"received": {AccountKeys: []string{other, testWallet}, PreBalances: []uint64{10, 5}, PostBalances: []uint64{4, 10}},
		"sent":     {AccountKeys: []string{testWallet, other}, PreBalances: []uint64{100, 0}, PostBalances: []uint64{60, 35}},
	}
	s := newSolanaChecks(&fakeSolana{sigs: sigs, txs: txs})

	res, err := s.SelfTransfer(context.Background(), testWallet, models.VerificationConfig{})
	require.NoError(t, err)
	require.True(t, res.Verified)
	assert.Equal(t, "sent", res.Proof["signature"])

	onlyReceived := newSolanaChecks(&fakeSolana{sigs: sigs[:1], txs: txs})
	res, err = onlyReceived.SelfTransfer(context.Background(), testWallet, models.VerificationConfig{})
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestProgramInteraction(t *testing.T) {
	sigs := []SignatureInfo{
		{Signature: "swap", BlockTime: ptrTime(checkNow.Add(-time.Hour))},
	}
	txs := map[string]*TransactionInfo{
		"swap": {AccountKeys: []string{testWallet, models.JupiterProgramID}},
	}
	s := newSolanaChecks(&fakeSolana{sigs: sigs, txs: txs})

	res, err := s.ProgramInteraction(context.Background(), testWallet, models.VerificationConfig{"program_id": models.JupiterProgramID})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, models.JupiterProgramID, res.Proof["program_id"])

	res, err = s.ProgramInteraction(context.Background(), testWallet, models.VerificationConfig{"program_id": models.RaydiumAMMProgram})
	require.NoError(t, err)
	assert.False(t, res.Verified)

	_, err = s.ProgramInteraction(context.Background(), testWallet, models.VerificationConfig{})
	assert.True(t, isConfigError(err))
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	_, err := parseAddress("not-a-wallet")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = parseAddress(testWallet)
	assert.NoError(t, err)
}
