package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vibeproof/models"

	"go.uber.org/zap"
)

const DefaultVerificationTimeout = 8 * time.Second

// Adapter answers one mission criterion. A criterion that is simply not met is
// a result with Verified=false and a nil error; errors mean the source could not be read.
type Adapter func(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error)

// Dispatcher routes a verification type to its adapter and normalizes every
// outcome into a VerificationResult. Nil adapter groups are reported as unavailable.
type Dispatcher struct {
	Solana  *SolanaChecks
	Social  *SocialChecks
	App     *AppChecks
	Timeout time.Duration
	Metrics *Metrics
	Logger  *zap.Logger
}

func NewDispatcher(solana *SolanaChecks, social *SocialChecks, app *AppChecks, timeout time.Duration, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultVerificationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		Solana:  solana,
		Social:  social,
		App:     app,
		Timeout: timeout,
		Metrics: metrics,
		Logger:  logger,
	}
}

// ManualCheck verifies a manual mission: any non-blank proof text passes.
func ManualCheck(proof string) VerificationResult {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return notMet("Proof text is required for this mission")
	}
	return passed("Proof submitted for review", map[string]any{"manual_proof": proof})
}

// adapterFor reports known=false only for types outside the enum.
func (d *Dispatcher) adapterFor(vt models.VerificationType) (adapter Adapter, known bool) {
	switch vt {
	case models.VerifySolanaRecentTx:
		if d.Solana != nil {
			adapter = d.Solana.RecentTransaction
		}
	case models.VerifySolanaMinBalance:
		if d.Solana != nil {
			adapter = d.Solana.MinBalance
		}
	case models.VerifySolanaSelfTransfer:
		if d.Solana != nil {
			adapter = d.Solana.SelfTransfer
		}
	case models.VerifySolanaProgramInteraction:
		if d.Solana != nil {
			adapter = d.Solana.ProgramInteraction
		}
	case models.VerifyXPostHashtag:
		if d.Social != nil {
			adapter = d.Social.PostHashtag
		}
	case models.VerifyXReply:
		if d.Social != nil {
			adapter = d.Social.Reply
		}
	case models.VerifyXFollow:
		if d.Social != nil {
			adapter = d.Social.Follow
		}
	case models.VerifyAppAction:
		if d.App != nil {
			adapter = d.App.Action
		}
	case models.VerifyManual:
		adapter = func(_ context.Context, _ string, cfg models.VerificationConfig) (VerificationResult, error) {
			return ManualCheck(cfgString(cfg, "manual_proof")), nil
		}
	default:
		return nil, false
	}
	return adapter, true
}

// Dispatch never returns an error: unknown types, adapter errors, timeouts and
// panics all become Verified=false with an explanatory message.
func (d *Dispatcher) Dispatch(ctx context.Context, vt models.VerificationType, principal string, cfg models.VerificationConfig) VerificationResult {
	log := d.Logger.With(zap.String("wallet", principal), zap.String("verification_type", string(vt)))

	adapter, known := d.adapterFor(vt)
	if !known {
		log.Warn("unknown verification type")
		return notMet("Unknown verification type %q", string(vt))
	}
	if adapter == nil {
		log.Warn("verification source not configured")
		return notMet("Could not verify right now: %v", ErrAdapterUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	type outcome struct {
		res VerificationResult
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		res, err := adapter(ctx, principal, cfg)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}
	d.Metrics.observeAdapter(string(vt), time.Since(start))

	if out.err != nil {
		log.Warn("verification adapter error", zap.Error(out.err))
		return d.errorResult(out.err)
	}
	return out.res
}

func (d *Dispatcher) errorResult(err error) VerificationResult {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return notMet("Could not verify right now: timed out after %s", d.Timeout)
	case errors.Is(err, context.Canceled):
		return notMet("Could not verify right now: request cancelled")
	case isConfigError(err):
		return notMet("Mission is misconfigured: %v", err)
	case errors.Is(err, ErrSocialAuthExpired):
		return notMet("Your X authorization expired, relink your account")
	case errors.Is(err, ErrInvalidAddress):
		return notMet("Wallet address is not a valid Solana address")
	default:
		return notMet("Could not verify right now: %v", err)
	}
}
