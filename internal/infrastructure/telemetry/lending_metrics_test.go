package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLendingMetrics(t *testing.T, provider telemetry.PortfolioMetricsProvider) *telemetry.LendingMetrics {
	t.Helper()
	lm, err := telemetry.NewLendingMetrics(telemetry.LendingMetricsConfig{
		Meter:             noop.NewMeterProvider().Meter("test"),
		Logger:            zap.NewNop(),
		PortfolioProvider: provider,
	})
	require.NoError(t, err)
	return lm
}

func TestNewLendingMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLendingMetrics(telemetry.LendingMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLendingMetrics: meter cannot be nil", err.Error())
}

func TestLendingMetrics_Record(t *testing.T) {
	lm := newLendingMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	lm.RecordDisbursement(ctx, tenantID, "REDUCING_BALANCE")
	lm.RecordPayment(ctx, tenantID, telemetry.PaymentStatusApplied)
	lm.RecordPayment(ctx, tenantID, telemetry.PaymentStatusReplayed)
	lm.RecordAllocation(ctx, tenantID, "PENALTY", "INR", 50000)
	lm.RecordAllocation(ctx, tenantID, "ADVANCE", "INR", 0)
	lm.RecordTransition(ctx, tenantID, "M3", "LEGAL", "CLASSIFICATION")
	lm.RecordLegalCaseOpened(ctx, tenantID)
	lm.RecordAllocationRetry(ctx, tenantID)
	lm.RecordSweep(ctx, 1500*time.Millisecond, "success")
	lm.RecordBucketCount(ctx, tenantID, "X", 4)
}

type stubTenants struct {
	ids []uuid.UUID
	err error
}

func (s stubTenants) GetActiveTenantIDs(context.Context) ([]uuid.UUID, error) {
	return s.ids, s.err
}

type countingPortfolio struct {
	calls atomic.Int32
	err   error
}

func (c *countingPortfolio) CountByBucket(context.Context, uuid.UUID) (map[string]int64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return map[string]int64{"CURRENT": 10, "M1": 2}, nil
}

func TestLendingMetrics_PeriodicCollection(t *testing.T) {
	portfolio := &countingPortfolio{}
	lm := newLendingMetrics(t, portfolio)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm.StartPeriodicCollection(ctx, stubTenants{ids: []uuid.UUID{uuid.New(), uuid.New()}}, 20*time.Millisecond)
	lm.StartPeriodicCollection(ctx, stubTenants{}, time.Millisecond)

	require.Eventually(t, func() bool { return portfolio.calls.Load() >= 4 }, time.Second, 10*time.Millisecond)
	lm.Stop()
	lm.Stop()
}

func TestLendingMetrics_PeriodicCollection_ToleratesErrors(t *testing.T) {
	portfolio := &countingPortfolio{err: errors.New("db down")}
	lm := newLendingMetrics(t, portfolio)
	ctx, cancel := context.WithCancel(context.Background())

	lm.StartPeriodicCollection(ctx, stubTenants{ids: []uuid.UUID{uuid.New()}}, 10*time.Millisecond)
	require.Eventually(t, func() bool { return portfolio.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestGormPortfolioMetricsProvider(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE loans (
		id TEXT PRIMARY KEY, tenant_id TEXT, bucket TEXT, status TEXT
	)`).Error)

	tenantA, tenantB := uuid.New(), uuid.New()
	rows := []struct {
		tenant uuid.UUID
		bucket string
		status string
	}{
		{tenantA, "CURRENT", "ACTIVE"},
		{tenantA, "CURRENT", "ACTIVE"},
		{tenantA, "M2", "ACTIVE"},
		{tenantA, "RECOVERED", "CLOSED"},
		{tenantB, "WRITTEN_OFF", "WRITTEN_OFF"},
	}
	for _, r := range rows {
		require.NoError(t, db.Exec("INSERT INTO loans (id, tenant_id, bucket, status) VALUES (?, ?, ?, ?)",
			uuid.NewString(), r.tenant.String(), r.bucket, r.status).Error)
	}

	counts, err := telemetry.NewGormPortfolioMetricsProvider(db).CountByBucket(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"CURRENT": 2, "M2": 1}, counts)

	ids, err := telemetry.NewGormTenantProvider(db).GetActiveTenantIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tenantA}, ids)
}
