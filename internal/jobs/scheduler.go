package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/config"
	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the periodic maintenance jobs: the package expiry sweep and
// the removal of expired OTP codes.
type Scheduler struct {
	cron    *cron.Cron
	expiry  services.ExpiryService
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler registers the jobs on their configured schedules. A run that
// is still in progress when the next one is due is skipped.
func NewScheduler(expiry services.ExpiryService, cfg config.JobsConfig, logger *zap.Logger) (*Scheduler, error) {
	clog := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		expiry:  expiry,
		timeout: cfg.RunTimeout,
		logger:  logger,
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}

	if _, err := s.cron.AddFunc(cfg.ExpirySchedule, func() { s.RunExpirySweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", cfg.ExpirySchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.OTPCleanup, func() { s.RunOTPCleanup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid OTP cleanup schedule %q: %w", cfg.OTPCleanup, err)
	}
	return s, nil
}

// Run starts the scheduler, sweeps once immediately and blocks until ctx is
// cancelled. Running jobs are allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RunExpirySweep(ctx)

	s.cron.Start()
	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("job scheduler stopped")
	return nil
}

// RunExpirySweep deactivates lapsed subscriptions
func (s *Scheduler) RunExpirySweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expired, err := s.expiry.Sweep(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("expiry sweep finished", zap.Int64("expired", expired))
}

// RunOTPCleanup deletes expired codes
func (s *Scheduler) RunOTPCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.expiry.CleanupOTPs(ctx)
	if err != nil {
		s.logger.Error("otp cleanup failed", zap.Error(err))
		return
	}
	s.logger.Debug("otp cleanup finished", zap.Int64("deleted", deleted))
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
