package lending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSweepConcurrency is the number of loans recomputed in parallel
const DefaultSweepConcurrency = 8

// Sweep outcomes
const (
	SweepOutcomeSuccess = "success"
	SweepOutcomePartial = "partial"
	SweepOutcomeFailed  = "failed"
)

// SweepObserver receives the summary of each sweep run
type SweepObserver interface {
	Observe(run telemetry.SweepRun)
}

// SweepConfig configures the daily sweep
type SweepConfig struct {
	Concurrency int
	Observer    SweepObserver
}

// SweepSummary reports one run of the daily sweep
type SweepSummary struct {
	AsOf           time.Time              `json:"as_of"`
	Processed      int                    `json:"processed"`
	Transitioned   int                    `json:"transitioned"`
	Failed         int                    `json:"failed"`
	PenaltyAccrued valueobject.Money      `json:"penalty_accrued"`
	Buckets        map[lending.Bucket]int `json:"buckets"`
	Failures       map[uuid.UUID]string   `json:"failures,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	Duration       time.Duration          `json:"duration"`
}

// Outcome names the result of the run for metrics
func (s *SweepSummary) Outcome() string {
	switch {
	case s.Failed == 0:
		return SweepOutcomeSuccess
	case s.Failed < s.Processed+s.Failed:
		return SweepOutcomePartial
	default:
		return SweepOutcomeFailed
	}
}

// SweepService runs the daily delinquency sweep: penalty accrual,
// classification and transitions for every active loan
type SweepService struct {
	delinquency *DelinquencyService
	concurrency int
	observer    SweepObserver
}

// NewSweepService creates a new SweepService
func NewSweepService(delinquency *DelinquencyService, cfg SweepConfig) *SweepService {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &SweepService{
		delinquency: delinquency,
		concurrency: concurrency,
		observer:    cfg.Observer,
	}
}

// Run recomputes every active loan as of asOf. Each loan goes through the
// same per-loan lock as payments. A failing loan is counted and logged and
// does not stop the sweep; only failing to list the loans is an error.
func (s *SweepService) Run(ctx context.Context, asOf time.Time) (*SweepSummary, error) {
	d := s.delinquency
	ctx, span := telemetry.StartServiceSpan(ctx, "sweep", "run")
	defer span.End()

	if asOf.IsZero() {
		asOf = d.now()
	}
	asOf = lending.DateOf(asOf)
	summary := &SweepSummary{
		AsOf:           asOf,
		PenaltyAccrued: valueobject.Zero(d.engine.Policy().Currency),
		Buckets:        make(map[lending.Bucket]int),
		Failures:       make(map[uuid.UUID]string),
		StartedAt:      time.Now(),
	}

	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LendingOperationLabels(telemetry.OperationSweep, ""), func(c context.Context) {
		ids, err := d.loanRepo.FindActiveIDs(c)
		if err != nil {
			telemetry.RecordError(span, err)
			operationErr = fmt.Errorf("failed to list active loans: %w", err)
			return
		}
		telemetry.SetAttribute(span, "loans", len(ids))
		d.logger.Info("delinquency sweep started",
			zap.Time("as_of", asOf),
			zap.Int("loans", len(ids)),
			zap.Int("concurrency", s.concurrency),
		)

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(c)
		g.SetLimit(s.concurrency)
		for _, id := range ids {
			g.Go(func() error {
				res, err := d.recompute(gctx, uuid.Nil, id, asOf)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					summary.Failures[id] = err.Error()
					d.logger.Warn("sweep failed to recompute loan",
						zap.String("loan_id", id.String()),
						zap.Error(err),
					)
					return nil
				}
				summary.Processed++
				summary.Buckets[res.Bucket]++
				if res.Changed {
					summary.Transitioned++
				}
				if sum, err := summary.PenaltyAccrued.Add(res.PenaltyAccrued); err == nil {
					summary.PenaltyAccrued = sum
				}
				return nil
			})
		}
		_ = g.Wait()
	})

	summary.FinishedAt = time.Now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	outcome := summary.Outcome()
	if operationErr != nil {
		outcome = SweepOutcomeFailed
	}
	s.report(ctx, summary, outcome)
	if operationErr != nil {
		return nil, operationErr
	}

	telemetry.SetAttributes(span,
		"processed", summary.Processed,
		"transitioned", summary.Transitioned,
		"failed", summary.Failed,
	)
	d.logger.Info("delinquency sweep finished",
		zap.Time("as_of", asOf),
		zap.Int("processed", summary.Processed),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("failed", summary.Failed),
		zap.String("penalty_accrued", summary.PenaltyAccrued.String()),
		zap.Any("buckets", summary.Buckets),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (s *SweepService) report(ctx context.Context, summary *SweepSummary, outcome string) {
	if m := s.delinquency.metrics; m != nil {
		m.RecordSweep(ctx, summary.Duration, outcome)
	}
	if s.observer == nil {
		return
	}
	buckets := make(map[string]int, len(summary.Buckets))
	for b, n := range summary.Buckets {
		buckets[string(b)] = n
	}
	s.observer.Observe(telemetry.SweepRun{
		Outcome:      outcome,
		Duration:     summary.Duration,
		Processed:    summary.Processed,
		Transitioned: summary.Transitioned,
		Failed:       summary.Failed,
		Buckets:      buckets,
		FinishedAt:   summary.FinishedAt,
	})
}
