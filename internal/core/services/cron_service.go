package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/config"
)

const jobTimeout = 5 * time.Minute

// CronService runs the periodic maintenance jobs
type CronService struct {
	cron    *cron.Cron
	ratings *RatingsService
	users   repositories.UserRepository
	cfg     config.CronConfig
	log     *zap.Logger
	now     func() time.Time
}

// NewCronService creates a new cron service
func NewCronService(ratings *RatingsService, users repositories.UserRepository, cfg config.CronConfig, log *zap.Logger) *CronService {
	return &CronService{
		cron:    cron.New(cron.WithLogger(newCronLogger(log)), cron.WithChain(cron.Recover(newCronLogger(log)))),
		ratings: ratings,
		users:   users,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// cronLogger routes scheduler messages to zap. Scheduler chatter goes to
// debug; recovered job panics are errors.
type cronLogger struct {
	log *zap.SugaredLogger
}

func newCronLogger(log *zap.Logger) cron.Logger {
	return cronLogger{log: log.Named("cron").Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("cron disabled")
		return nil
	}

	// Nightly reconcile of every tour's rating aggregate
	if _, err := s.cron.AddFunc(s.cfg.RatingsSchedule, s.ReconcileRatings); err != nil {
		return err
	}
	// Expired password reset tokens
	if _, err := s.cron.AddFunc(s.cfg.ResetCleanupSchedule, s.ClearExpiredResetTokens); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("cron started",
		zap.String("ratings", s.cfg.RatingsSchedule),
		zap.String("reset_cleanup", s.cfg.ResetCleanupSchedule),
	)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
}

// ReconcileRatings recomputes the ratings of every tour
func (s *CronService) ReconcileRatings() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.ratings.RecomputeAll(ctx); err != nil {
		s.log.Error("ratings reconcile failed", zap.Error(err))
	}
}

// ClearExpiredResetTokens drops reset tokens that can no longer be used
func (s *CronService) ClearExpiredResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.users.ClearExpiredResetTokens(ctx, s.now())
	if err != nil {
		s.log.Error("reset token cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("expired reset tokens cleared", zap.Int64("count", n))
	}
}
