package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepRunner runs the delinquency sweep for one business date
type SweepRunner interface {
	Run(ctx context.Context, asOf time.Time) (*applending.SweepSummary, error)
}

// Config holds sweep scheduler configuration
type Config struct {
	Enabled bool
	// Schedule is a standard five-field cron expression
	Schedule string
	// Location decides both when the schedule fires and which date the sweep
	// runs as of
	Location      *time.Location
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig runs the sweep at 00:30 India time
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return Config{
		Enabled:       true,
		Schedule:      "30 0 * * *",
		Location:      loc,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Minute,
	}
}

// ConfigFrom converts the application scheduler settings
func ConfigFrom(cfg config.SchedulerConfig) (Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, cfg.Timezone, err)
	}
	return Config{
		Enabled:       cfg.Enabled,
		Schedule:      cfg.SweepCronSchedule,
		Location:      loc,
		JobTimeout:    cfg.JobTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, nil
}

// SweepScheduler fires the daily delinquency sweep on a cron schedule and
// guarantees that at most one sweep runs at a time, scheduled or manual.
type SweepScheduler struct {
	config Config
	runner SweepRunner
	logger *zap.Logger
	cron   *cron.Cron
	now    func() time.Time

	inProgress atomic.Bool

	mu      sync.Mutex
	started bool
	baseCtx context.Context
	cancel  context.CancelFunc
	lastJob *Job
}

// Option configures a SweepScheduler
type Option func(*SweepScheduler)

// WithNow replaces time.Now, for tests
func WithNow(now func() time.Time) Option {
	return func(s *SweepScheduler) { s.now = now }
}

// NewSweepScheduler validates the schedule and registers the sweep
func NewSweepScheduler(cfg Config, runner SweepRunner, logger *zap.Logger, opts ...Option) (*SweepScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if cfg.RetryAttempts < 0 {
		return nil, fmt.Errorf("%w: retry attempts must not be negative", ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, cfg.Schedule, err)
	}

	cronLog := cronLogger{log: logger.Sugar()}
	s := &SweepScheduler{
		config:  cfg,
		runner:  runner,
		logger:  logger,
		now:     time.Now,
		baseCtx: context.Background(),
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runScheduled); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// Start starts the cron loop. A disabled scheduler still accepts Trigger.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Sweep scheduler disabled")
		return nil
	}

	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron.Start()
	s.started = true

	s.logger.Info("Sweep scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.String("timezone", s.config.Location.String()),
		zap.Time("next_run", s.NextRun()),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop stops the cron loop, cancels a running sweep and waits for it to
// return or for ctx to expire
func (s *SweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := s.cron.Stop().Done()

	select {
	case <-done:
		s.logger.Info("Sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// NextRun returns when the schedule fires next, or the zero time when the
// cron loop is not running
func (s *SweepScheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Trigger runs the sweep now on the caller's context. A zero asOf means
// today in the scheduler's timezone.
func (s *SweepScheduler) Trigger(ctx context.Context, asOf time.Time) (*Job, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.inProgress.Store(false)

	if asOf.IsZero() {
		asOf = s.today()
	}
	job := NewJob(lending.DateOf(asOf), s.config.RetryAttempts)
	err := s.execute(ctx, job)
	return job, err
}

// LastJob returns a copy of the most recent job, or nil
func (s *SweepScheduler) LastJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastJob == nil {
		return nil
	}
	j := *s.lastJob
	return &j
}

func (s *SweepScheduler) today() time.Time {
	return lending.DateOf(s.now().In(s.config.Location))
}

// runScheduled is the cron entry point
func (s *SweepScheduler) runScheduled() {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.logger.Warn("Skipping scheduled sweep, previous run still in progress")
		return
	}
	defer s.inProgress.Store(false)

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	job := NewJob(s.today(), s.config.RetryAttempts)
	_ = s.execute(ctx, job)
}

// execute runs job, retrying after RetryDelay until it succeeds, runs out of
// retries or ctx is done
func (s *SweepScheduler) execute(ctx context.Context, job *Job) error {
	defer s.record(job)

	for {
		job.Start(s.now())
		s.logger.Info("Running delinquency sweep",
			zap.String("job_id", job.ID.String()),
			zap.Time("as_of", job.AsOf),
			zap.Int("attempt", job.RetryCount+1),
		)

		summary, err := s.run(ctx, job.AsOf)
		if err == nil {
			job.Complete(s.now())
			job.Summary = summary
			s.logger.Info("Delinquency sweep completed",
				zap.String("job_id", job.ID.String()),
				zap.Int("processed", summary.Processed),
				zap.Int("transitioned", summary.Transitioned),
				zap.Int("failed", summary.Failed),
				zap.String("outcome", summary.Outcome()),
				zap.Duration("duration", summary.Duration),
			)
			return nil
		}

		job.Fail(s.now(), err.Error())
		s.logger.Error("Delinquency sweep failed",
			zap.String("job_id", job.ID.String()),
			zap.Time("as_of", job.AsOf),
			zap.Error(err),
		)
		if !job.ShouldRetry() {
			return err
		}

		job.ScheduleRetry()
		s.logger.Info("Sweep scheduled for retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("delay", s.config.RetryDelay),
		)

		timer := time.NewTimer(s.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			job.Fail(s.now(), ctx.Err().Error())
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *SweepScheduler) run(ctx context.Context, asOf time.Time) (*applending.SweepSummary, error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	return s.runner.Run(jobCtx, asOf)
}

func (s *SweepScheduler) record(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJob = job
}

// cronLogger routes cron's own logging to zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
