// Package scheduler runs the in-process background schedule: periodic trigger
// evaluation plus housekeeping (purging expired check-in session stamps).
//
// The service also exposes evaluation over HTTP for external schedulers; both
// paths share the evaluator, and the conditional alert-marker commit keeps
// overlapping runs safe.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/afoster/go-switch-backend/internal/repo"
	"github.com/afoster/go-switch-backend/internal/services"
)

const (
	defaultEvalSpec  = "@every 5m"
	defaultPurgeSpec = "@hourly"
)

// Runner executes one trigger evaluation pass.
type Runner interface {
	Run(ctx context.Context) (*services.Summary, error)
}

// Scheduler coordinates the periodic evaluation and maintenance jobs.
type Scheduler struct {
	db   *gorm.DB
	eval Runner
	cron *cron.Cron
	now  func() time.Time

	evalSchedule  string
	purgeSchedule string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used by the maintenance jobs.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvaluationSchedule overrides the cron specification for trigger
// evaluation.
func WithEvaluationSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.evalSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron specification for stamp purging.
func WithPurgeSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.purgeSchedule = spec
		}
	}
}

// New constructs a Scheduler with sensible defaults. A nil evaluator disables
// the evaluation job; a nil db disables housekeeping.
func New(db *gorm.DB, eval Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:            db,
		eval:          eval,
		now:           time.Now,
		evalSchedule:  defaultEvalSpec,
		purgeSchedule: defaultPurgeSpec,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the jobs with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if s.eval != nil {
		if _, err := s.cron.AddFunc(s.evalSchedule, func() {
			if _, err := s.eval.Run(context.Background()); err != nil {
				log.Error().Err(err).Msg("scheduled evaluation failed")
			}
		}); err != nil {
			return err
		}
	}

	if s.db != nil {
		if _, err := s.cron.AddFunc(s.purgeSchedule, func() {
			n, err := repo.PurgeExpiredCheckinStamps(context.Background(), s.db, s.now().UTC())
			if err != nil {
				log.Warn().Err(err).Msg("check-in stamp purge failed")
				return
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired check-in stamps removed")
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, returning a context that is done once
// running jobs have completed.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used in tests and for
// one-shot invocations.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.eval != nil {
		if _, err := s.eval.Run(ctx); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if s.db != nil {
		if _, err := repo.PurgeExpiredCheckinStamps(ctx, s.db, s.now().UTC()); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
