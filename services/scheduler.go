// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SchedulerConfig sets the background job cadence.
type SchedulerConfig struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

// StartScheduler registers the background jobs and starts the scheduler:
// instance materialization (hourly, and at startup), the stale-attempt sweep,
// and the hourly XP drift report. Call Shutdown on the result to stop it.
func StartScheduler(ctx context.Context, missions *MissionService, rec *Reconciler, cfg SchedulerConfig, logger *zap.Logger) (gocron.Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(missions.Clock.Location()))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	// Every hour: persist today's and this week's rotation
	_, err = sched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			n, err := missions.MaterializeInstances(ctx, missions.Clock.Now())
			if err != nil {
				logger.Error("[scheduler] materialize instances failed", zap.Error(err))
				return
			}
			logger.Debug("[scheduler] instances materialized", zap.Int("count", n))
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("materialize-instances"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering materialize job: %w", err)
	}

	// Expire attempts abandoned in verifying
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			if _, err := rec.ExpireStale(ctx, cfg.StaleAfter); err != nil {
				logger.Error("[scheduler] sweep failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("sweep-stale-completions"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering sweep job: %w", err)
	}

	// Report XP drift
	_, err = sched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			if _, err := rec.FindXPDrift(ctx); err != nil {
				logger.Error("[scheduler] drift report failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("xp-drift-report"),
	)
	if err != nil {
		return nil, fmt.Errorf("registering drift job: %w", err)
	}

	sched.Start()
	return sched, nil
}
