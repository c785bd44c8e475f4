package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LendingMetrics records repayment and delinquency activity as OTel metrics.
// Attribute values are plain strings so this package does not import the domain.
type LendingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	paymentsTotal      *Counter
	allocatedMinor     *Counter
	transitionsTotal   *Counter
	legalCasesOpened   *Counter
	allocationRetries  *Counter
	disbursementsTotal *Counter
	sweepDuration      *Histogram
	loansByBucket      *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	portfolioProvider PortfolioMetricsProvider
}

// PortfolioMetricsProvider supplies the committed bucket distribution of a tenant
type PortfolioMetricsProvider interface {
	CountByBucket(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)
}

// TenantProvider lists tenants that currently hold active loans
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LendingMetricsConfig holds configuration for lending metrics.
type LendingMetricsConfig struct {
	Meter             metric.Meter
	Logger            *zap.Logger
	PortfolioProvider PortfolioMetricsProvider
}

// PaymentStatus is the outcome of a payment request for metrics labeling.
type PaymentStatus string

const (
	PaymentStatusApplied   PaymentStatus = "applied"
	PaymentStatusReplayed  PaymentStatus = "replayed"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusConflicts PaymentStatus = "conflict"
)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLendingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewLendingMetrics creates the lending instruments on cfg.Meter.
func NewLendingMetrics(cfg LendingMetricsConfig) (*LendingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LendingMetrics{
		meter:             cfg.Meter,
		logger:            logger,
		stopChan:          make(chan struct{}),
		portfolioProvider: cfg.PortfolioProvider,
	}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&lm.paymentsTotal, "lms_payment_total", "Payments received, by outcome", "{payments}"},
		{&lm.allocatedMinor, "lms_payment_allocated_minor_total", "Allocated payment amount in minor units, by waterfall component", "{minor_units}"},
		{&lm.transitionsTotal, "lms_bucket_transition_total", "Delinquency bucket transitions", "{transitions}"},
		{&lm.legalCasesOpened, "lms_legal_case_opened_total", "Legal cases opened", "{cases}"},
		{&lm.allocationRetries, "lms_allocation_retry_total", "Payment allocations retried after a concurrent modification", "{retries}"},
		{&lm.disbursementsTotal, "lms_loan_disbursed_total", "Loans disbursed, by interest method", "{loans}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	lm.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "lms_sweep_duration_seconds",
		Description: "Duration of the delinquency sweep",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
	})
	if err != nil {
		return nil, err
	}
	lm.loansByBucket, err = NewGauge(cfg.Meter, "lms_loans_by_bucket", "Active loans per committed delinquency bucket", "{loans}")
	if err != nil {
		return nil, err
	}
	return lm, nil
}

// RecordDisbursement counts a disbursed loan
func (lm *LendingMetrics) RecordDisbursement(ctx context.Context, tenantID uuid.UUID, method string) {
	lm.disbursementsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		attribute.String("method", method),
	)
}

// RecordPayment counts a payment request by outcome
func (lm *LendingMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, status PaymentStatus) {
	lm.paymentsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentStatus.String(string(status)),
	)
}

// RecordAllocation adds an allocated amount for one waterfall component.
// Zero amounts are skipped.
func (lm *LendingMetrics) RecordAllocation(ctx context.Context, tenantID uuid.UUID, component, currency string, minor int64) {
	if minor == 0 {
		return
	}
	lm.allocatedMinor.Add(ctx, minor,
		AttrTenantID.String(tenantID.String()),
		AttrComponent.String(component),
		AttrCurrency.String(currency),
	)
}

// RecordTransition counts a bucket transition
func (lm *LendingMetrics) RecordTransition(ctx context.Context, tenantID uuid.UUID, from, to, trigger string) {
	lm.transitionsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrFromBucket.String(from),
		AttrBucket.String(to),
		AttrTrigger.String(trigger),
	)
}

// RecordLegalCaseOpened counts a newly opened legal case
func (lm *LendingMetrics) RecordLegalCaseOpened(ctx context.Context, tenantID uuid.UUID) {
	lm.legalCasesOpened.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordAllocationRetry counts one retry of the read-allocate-commit sequence
func (lm *LendingMetrics) RecordAllocationRetry(ctx context.Context, tenantID uuid.UUID) {
	lm.allocationRetries.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordSweep records the duration of a sweep run
func (lm *LendingMetrics) RecordSweep(ctx context.Context, d time.Duration, outcome string) {
	lm.sweepDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordBucketCount records the number of active loans in a bucket
func (lm *LendingMetrics) RecordBucketCount(ctx context.Context, tenantID uuid.UUID, bucket string, count int64) {
	lm.loansByBucket.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrBucket.String(bucket),
	)
}

// StartPeriodicCollection samples the bucket distribution every interval
// (default 5 minutes) until Stop is called or ctx is done.
func (lm *LendingMetrics) StartPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, tenants, interval)
	})
}

func (lm *LendingMetrics) runPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collectPortfolio(ctx, tenants)
	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic lending metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic lending metrics collection")
			return
		case <-ticker.C:
			lm.collectPortfolio(ctx, tenants)
		}
	}
}

func (lm *LendingMetrics) collectPortfolio(ctx context.Context, tenants TenantProvider) {
	if lm.portfolioProvider == nil {
		lm.logger.Debug("No portfolio provider configured, skipping bucket metrics collection")
		return
	}
	tenantIDs, err := tenants.GetActiveTenantIDs(ctx)
	if err != nil {
		lm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}
	for _, tenantID := range tenantIDs {
		counts, err := lm.portfolioProvider.CountByBucket(ctx, tenantID)
		if err != nil {
			lm.logger.Warn("Failed to count loans by bucket",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		for bucket, n := range counts {
			lm.RecordBucketCount(ctx, tenantID, bucket, n)
		}
	}
}

// Stop stops the periodic collection.
func (lm *LendingMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}
