package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vibeproof/models"
)

const lamportsPerSOL = 1_000_000_000

// SolanaChecks answers on-chain mission criteria for a wallet.
type SolanaChecks struct {
	RPC SolanaRPC
	Now func() time.Time
}

func NewSolanaChecks(rpc SolanaRPC) *SolanaChecks {
	return &SolanaChecks{RPC: rpc, Now: time.Now}
}

func missingConfig(key string) error {
	return fmt.Errorf("%w: verification config is missing %q", ErrValidation, key)
}

// windowSignatures returns successful signatures inside the trailing window, newest first.
// Signatures are ordered newest first, so the scan stops at the first one older than the cutoff.
func (s *SolanaChecks) windowSignatures(ctx context.Context, principal string, cfg models.VerificationConfig, defHours int) ([]SignatureInfo, time.Duration, error) {
	window := cfgWindow(cfg, defHours)
	limit := cfgInt(cfg, "limit", 10)

	sigs, err := s.RPC.RecentSignatures(ctx, principal, limit)
	if err != nil {
		return nil, window, err
	}
	cutoff := s.Now().Add(-window)

	var inWindow []SignatureInfo
	for _, sig := range sigs {
		if sig.BlockTime == nil {
			continue
		}
		if sig.BlockTime.Before(cutoff) {
			break
		}
		if sig.Failed {
			continue
		}
		inWindow = append(inWindow, sig)
	}
	return inWindow, window, nil
}

func sigProof(sig SignatureInfo) map[string]any {
	p := map[string]any{
		"signature": sig.Signature,
		"slot":      sig.Slot,
	}
	if sig.BlockTime != nil {
		p["block_time"] = sig.BlockTime.UTC().Format(time.RFC3339)
	}
	return p
}

// RecentTransaction: at least one confirmed, successful transaction inside the window.
func (s *SolanaChecks) RecentTransaction(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	sigs, window, err := s.windowSignatures(ctx, principal, cfg, 24)
	if err != nil {
		return VerificationResult{}, err
	}
	if len(sigs) == 0 {
		return notMet("No confirmed transaction found in the last %s", formatWindow(window)), nil
	}
	return passed("Found a recent transaction", sigProof(sigs[0])), nil
}

// MinBalance: current balance in SOL is at least min_balance.
func (s *SolanaChecks) MinBalance(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	minSOL, ok := cfgFloat(cfg, "min_balance")
	if !ok {
		return VerificationResult{}, missingConfig("min_balance")
	}

	lamports, err := s.RPC.GetBalance(ctx, principal)
	if err != nil {
		return VerificationResult{}, err
	}
	balance := float64(lamports) / lamportsPerSOL
	proof := map[string]any{
		"balance":     balance,
		"min_balance": minSOL,
		"lamports":    lamports,
	}
	if balance < minSOL {
		res := notMet("Balance %.4f SOL is below the required %.4f SOL", balance, minSOL)
		res.Proof = proof
		return res, nil
	}
	return passed(fmt.Sprintf("Balance %.4f SOL meets the required %.4f SOL", balance, minSOL), proof), nil
}

// SelfTransfer: principal paid the fee (static index 0) of a successful transaction
// in the window and its own balance went down.
func (s *SolanaChecks) SelfTransfer(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	sigs, window, err := s.windowSignatures(ctx, principal, cfg, 24)
	if err != nil {
		return VerificationResult{}, err
	}
	for _, sig := range sigs {
		tx, err := s.RPC.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return VerificationResult{}, err
		}
		if tx.Failed || len(tx.AccountKeys) == 0 || tx.AccountKeys[0] != principal {
			continue
		}
		if len(tx.PreBalances) == 0 || len(tx.PostBalances) == 0 {
			continue
		}
		if tx.PreBalances[0] > tx.PostBalances[0] {
			proof := sigProof(sig)
			proof["pre_balance"] = tx.PreBalances[0]
			proof["post_balance"] = tx.PostBalances[0]
			return passed("Found a transfer paid by this wallet", proof), nil
		}
	}
	return notMet("No transfer paid by this wallet in the last %s", formatWindow(window)), nil
}

// ProgramInteraction: a transaction in the window lists program_id among its static account keys.
func (s *SolanaChecks) ProgramInteraction(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	programID := cfgString(cfg, "program_id")
	if programID == "" {
		return VerificationResult{}, missingConfig("program_id")
	}
	sigs, window, err := s.windowSignatures(ctx, principal, cfg, 24)
	if err != nil {
		return VerificationResult{}, err
	}
	for _, sig := range sigs {
		tx, err := s.RPC.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return VerificationResult{}, err
		}
		if tx.Failed {
			continue
		}
		for _, key := range tx.AccountKeys {
			if key == programID {
				proof := sigProof(sig)
				proof["program_id"] = programID
				return passed("Found an interaction with the program", proof), nil
			}
		}
	}
	return notMet("No interaction with program %s in the last %s", programID, formatWindow(window)), nil
}

func formatWindow(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours%24 == 0 && hours >= 48 {
		return fmt.Sprintf("%d days", hours/24)
	}
	if hours == 1 {
		return "hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

// isConfigError distinguishes a broken mission definition from an unreachable source.
func isConfigError(err error) bool {
	return errors.Is(err, ErrValidation)
}
