package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vibeproof/config"
	"vibeproof/database"
	"vibeproof/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// A syntactically valid base58 wallet; no RPC is ever made for it in tests.
const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "vibeproof.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func fixedClock(t time.Time) Clock {
	return NewClockFunc(func() time.Time { return t }, time.UTC)
}

// steppingClock lets a test move time forward between calls.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *steppingClock) Clock() Clock {
	return NewClockFunc(c.Now, time.UTC)
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(dayLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeSolana serves canned RPC answers.
type fakeSolana struct {
	mu       sync.Mutex
	balance  uint64
	err      error
	sigs     []SignatureInfo
	txs      map[string]*TransactionInfo
	sigCalls int
}

func (f *fakeSolana) GetBalance(ctx context.Context, address string) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

func (f *fakeSolana) RecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	f.mu.Lock()
	f.sigCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.sigs) {
		return f.sigs[:limit], nil
	}
	return f.sigs, nil
}

func (f *fakeSolana) GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error) {
	tx, ok := f.txs[signature]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return tx, nil
}

// blockingSolana waits for cancellation on every call.
type blockingSolana struct{}

func (blockingSolana) GetBalance(ctx context.Context, address string) (uint64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingSolana) RecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSolana) GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeVerifier returns a fixed result and counts calls.
type fakeVerifier struct {
	mu     sync.Mutex
	result VerificationResult
	calls  int
	hook   func()
}

func (f *fakeVerifier) Dispatch(ctx context.Context, vt models.VerificationType, principal string, cfg models.VerificationConfig) VerificationResult {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.result
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingAwarder simulates an accumulator outage after the ledger commit.
type failingAwarder struct{ err error }

func (f failingAwarder) AwardXP(ctx context.Context, wallet string, amount int64, reason string) (*models.UserProgress, error) {
	return nil, f.err
}

// recordingSink captures archived completions.
type recordingSink struct {
	mu   sync.Mutex
	rows []models.MissionCompletion
}

func (r *recordingSink) Enqueue(c models.MissionCompletion) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, c)
	return true
}

func (r *recordingSink) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func ptrTime(t time.Time) *time.Time { return &t }
