package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type observedLoan struct {
	ID     string `gorm:"primaryKey"`
	Bucket string
}

func (observedLoan) TableName() string { return "loans" }

func newObservedDB(t *testing.T, cfg DBConfig) (*gorm.DB, *GormObserver, *sdkmetric.ManualReader) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&observedLoan{}))

	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zaptest.NewLogger(t))
	observer, err := InstrumentGorm(db, mp, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(observer.Stop)
	return db, observer, reader
}

func operationCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	m, ok := collect(t, reader, "db_query_total")
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
		op, _ := dp.Attributes.Value(AttrDBOperation)
		counts[op.AsString()] += dp.Value
	}
	return counts
}

func TestGormObserver_CountsStatements(t *testing.T) {
	db, _, reader := newObservedDB(t, DBConfig{DBSystem: "sqlite"})
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&observedLoan{ID: "loan-1", Bucket: "CURRENT"}).Error)
	require.NoError(t, db.WithContext(ctx).Model(&observedLoan{ID: "loan-1"}).Update("bucket", "X").Error)
	var loan observedLoan
	require.NoError(t, db.WithContext(ctx).First(&loan, "id = ?", "loan-1").Error)
	var n int64
	require.NoError(t, db.WithContext(ctx).Raw("SELECT COUNT(*) FROM loans").Scan(&n).Error)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM loans WHERE id = ?", "loan-1").Error)

	counts := operationCounts(t, reader)
	assert.EqualValues(t, 1, counts["INSERT"])
	assert.EqualValues(t, 1, counts["UPDATE"])
	assert.GreaterOrEqual(t, counts["SELECT"], int64(2))
	assert.EqualValues(t, 1, counts["DELETE"])

	_, ok := collect(t, reader, "db_query_duration_seconds")
	assert.True(t, ok)
}

func TestGormObserver_SlowQueriesAndSpans(t *testing.T) {
	recorder := installRecorder(t)
	db, _, reader := newObservedDB(t, DBConfig{DBSystem: "sqlite", SlowQueryThreshold: time.Nanosecond})

	ctx, span := otel.Tracer(TracerName).Start(context.Background(), "sweep.run")
	require.NoError(t, db.WithContext(ctx).Create(&observedLoan{ID: "loan-2", Bucket: "M1"}).Error)
	err := db.WithContext(ctx).Exec("INSERT INTO missing_table VALUES (1)").Error
	require.Error(t, err)
	span.End()

	m, ok := collect(t, reader, "db_slow_query_total")
	require.True(t, ok)
	assert.GreaterOrEqual(t, sumInt64(t, m), int64(1))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	attrs := attrMap(ended[0].Attributes())
	assert.True(t, attrs["db.slow_query"].AsBool())
	assert.NotEmpty(t, ended[0].Events())
}

func TestGormObserver_PoolStats(t *testing.T) {
	_, observer, reader := newObservedDB(t, DBConfig{DBSystem: "sqlite", PoolStatsInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observer.StartPoolStats(ctx)
	require.Eventually(t, func() bool {
		_, ok := collect(t, reader, "db_pool_connections")
		return ok
	}, time.Second, 10*time.Millisecond)

	observer.Stop()
	observer.Stop()
}

func TestOperationOf(t *testing.T) {
	assert.Equal(t, "SELECT", operationOf("  select * from loans"))
	assert.Equal(t, "SELECT", operationOf("WITH due AS (SELECT 1) SELECT * FROM due"))
	assert.Equal(t, "UPDATE", operationOf("UPDATE loans SET version = version + 1"))
	assert.Equal(t, "OTHER", operationOf("PRAGMA foreign_keys = ON"))
	assert.Equal(t, "OTHER", operationOf(""))
}
