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

// Verifier is satisfied by *Dispatcher.
type Verifier interface {
	Dispatch(ctx context.Context, vt models.VerificationType, principal string, cfg models.VerificationConfig) VerificationResult
}

// XPAwarder is satisfied by *ProgressionService.
type XPAwarder interface {
	AwardXP(ctx context.Context, wallet string, amount int64, reason string) (*models.UserProgress, error)
}

// ProofSink is satisfied by *ProofArchiver.
type ProofSink interface {
	Enqueue(c models.MissionCompletion) bool
}

// CompleteRequest is one verify-and-complete call. Exactly one of Ref's fields is set.
type CompleteRequest struct {
	Ref                MissionRef
	VerificationType   models.VerificationType
	VerificationConfig models.VerificationConfig
	XPReward           int64
	ManualProof        string
}

// MissionService ties the catalog, dispatcher, ledger and accumulator together.
type MissionService struct {
	Catalog  *Catalog
	Ledger   *Ledger
	Verifier Verifier
	Progress XPAwarder
	Archive  ProofSink // optional
	Clock    Clock
	Metrics  *Metrics
	Logger   *zap.Logger
}

func NewMissionService(catalog *Catalog, ledger *Ledger, verifier Verifier, progress XPAwarder, clock Clock, metrics *Metrics, logger *zap.Logger) *MissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MissionService{
		Catalog:  catalog,
		Ledger:   ledger,
		Verifier: verifier,
		Progress: progress,
		Clock:    clock,
		Metrics:  metrics,
		Logger:   logger,
	}
}

// WithArchive enables proof archival for verified completions.
func (s *MissionService) WithArchive(sink ProofSink) *MissionService {
	s.Archive = sink
	return s
}

func (r CompleteRequest) validate(principal string) error {
	if strings.TrimSpace(principal) == "" {
		return validationErr("principal is required")
	}
	if err := r.Ref.Validate(); err != nil {
		return err
	}
	if r.XPReward < 0 {
		return validationErr("xp_reward must not be negative")
	}
	if r.VerificationType == "" {
		return validationErr("verification_type is required")
	}
	return nil
}

// VerifyAndComplete records one attempt and pays XP at most once per mission key.
// Only validation errors and ErrAlreadyCompleted are returned as errors; a failed
// check, an unreachable source or a timeout all come back as a failed row.
func (s *MissionService) VerifyAndComplete(ctx context.Context, principal string, req CompleteRequest) (*models.MissionCompletion, error) {
	if err := req.validate(principal); err != nil {
		s.Metrics.observeVerification(string(req.VerificationType), "invalid")
		return nil, err
	}
	log := s.Logger.With(
		zap.String("wallet", principal),
		zap.String("mission", req.Ref.Key()),
		zap.String("verification_type", string(req.VerificationType)),
	)

	var proof map[string]any
	if p := strings.TrimSpace(req.ManualProof); p != "" {
		proof = map[string]any{"manual_proof": p}
	}

	row, err := s.Ledger.Begin(ctx, principal, req.Ref, req.VerificationType, proof)
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			s.Metrics.observeVerification(string(req.VerificationType), "conflict")
			log.Info("mission already completed")
		}
		return nil, err
	}
	log = log.With(zap.String("completion_id", row.ID))

	var result VerificationResult
	if req.VerificationType == models.VerifyManual {
		result = ManualCheck(req.ManualProof)
	} else {
		result = s.Verifier.Dispatch(ctx, req.VerificationType, principal, req.VerificationConfig)
	}

	row, transitioned, err := s.Ledger.Finish(ctx, row.ID, result, req.XPReward, s.Clock.Now())
	if err != nil {
		// The row stays verifying; the sweep expires it.
		log.Error("failed to record verification outcome", zap.Error(err))
		return nil, fmt.Errorf("recording verification outcome: %w", err)
	}
	if !transitioned {
		log.Warn("completion left verifying before the outcome was recorded", zap.String("status", string(row.Status)))
		s.Metrics.observeVerification(string(req.VerificationType), string(row.Status))
		return row, nil
	}
	s.Metrics.observeVerification(string(req.VerificationType), string(row.Status))

	if row.Status != models.CompletionVerified {
		log.Info("mission verification failed", zap.String("message", result.Message))
		return row, nil
	}

	// Commit point passed. A failed award is reconciled later, never retried here.
	if _, err := s.Progress.AwardXP(ctx, principal, req.XPReward, "mission:"+req.Ref.Key()); err != nil {
		s.Metrics.observeXPFailure()
		log.Error("xp award failed for verified completion", zap.Int64("xp_reward", req.XPReward), zap.Error(err))
	} else {
		s.Metrics.observeXP(req.XPReward)
	}

	if s.Archive != nil && !s.Archive.Enqueue(*row) {
		log.Warn("proof not queued for archival")
	}

	log.Info("mission verified", zap.Int64("xp_awarded", row.XPAwarded))
	return row, nil
}

// VerifyMission resolves the mission from the catalog, so type, config and
// reward come from the definition rather than the caller.
func (s *MissionService) VerifyMission(ctx context.Context, principal string, ref MissionRef, manualProof string) (*models.MissionCompletion, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	if ref.InstanceID != "" {
		inst, err := s.Catalog.ResolveInstance(ref.InstanceID)
		if err != nil {
			return nil, err
		}
		now := s.Clock.Now()
		if now.Before(inst.StartsAt) {
			return nil, fmt.Errorf("%w: %s has not started", ErrMissionNotActive, inst.ID)
		}
		if inst.ExpiresAt != nil && !now.Before(*inst.ExpiresAt) {
			return nil, fmt.Errorf("%w: %s has expired", ErrMissionNotActive, inst.ID)
		}
		if err := s.Ledger.EnsureInstances(ctx, []models.MissionInstance{inst}); err != nil {
			return nil, fmt.Errorf("persisting mission instance: %w", err)
		}
		return s.VerifyAndComplete(ctx, principal, CompleteRequest{
			Ref:                MissionRef{InstanceID: inst.ID},
			VerificationType:   inst.VerificationType,
			VerificationConfig: inst.VerificationConfig,
			XPReward:           inst.XPReward,
			ManualProof:        manualProof,
		})
	}

	t, ok := s.Catalog.Template(ref.TemplateID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissionNotFound, ref.TemplateID)
	}
	if t.Recurrence != models.RecurrenceOneTime {
		return nil, validationErr("%s repeats; complete it through its instance id", t.ID)
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: %s", ErrMissionNotActive, t.ID)
	}
	return s.VerifyAndComplete(ctx, principal, CompleteRequest{
		Ref:                MissionRef{TemplateID: t.ID},
		VerificationType:   t.VerificationType,
		VerificationConfig: t.VerificationConfig,
		XPReward:           t.XPReward,
		ManualProof:        manualProof,
	})
}

// MaterializeInstances persists the daily and weekly rotation for date. Safe to repeat.
func (s *MissionService) MaterializeInstances(ctx context.Context, date time.Time) (int, error) {
	instances := append(s.Catalog.DailyInstances(date), s.Catalog.WeeklyInstances(date)...)
	if err := s.Ledger.EnsureInstances(ctx, instances); err != nil {
		return 0, err
	}
	return len(instances), nil
}
