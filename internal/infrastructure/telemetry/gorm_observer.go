package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig configures database instrumentation
type DBConfig struct {
	// Tracing registers otelgorm so every statement gets a client span
	Tracing bool
	// LogFullSQL keeps bound values in span statements; development only
	LogFullSQL bool
	// DBSystem is reported as db.system on spans
	DBSystem           string
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

func (c DBConfig) withDefaults() DBConfig {
	if c.DBSystem == "" {
		c.DBSystem = "postgresql"
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval <= 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	return c
}

// GormObserver is a GORM plugin that times every statement. It counts
// statements and slow statements, records their latency and marks the
// active span when a statement fails or runs slow.
type GormObserver struct {
	cfg    DBConfig
	logger *zap.Logger

	queries     *Counter
	slowQueries *Counter
	latency     *Histogram
	poolConns   *Gauge
	poolMax     *Gauge

	sqlDB    *sql.DB
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGormObserver creates the database instruments on meter
func NewGormObserver(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*GormObserver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &GormObserver{cfg: cfg.withDefaults(), logger: logger, stop: make(chan struct{})}

	var err error
	if o.queries, err = NewCounter(meter, "db_query_total", "Database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if o.slowQueries, err = NewCounter(meter, "db_slow_query_total", "Statements slower than the slow query threshold, by table", "{query}"); err != nil {
		return nil, err
	}
	if o.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if o.poolConns, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if o.poolMax, err = NewGauge(meter, "db_pool_connections_max", "Maximum open connections", "{connection}"); err != nil {
		return nil, err
	}
	return o, nil
}

// Name implements gorm.Plugin
func (o *GormObserver) Name() string {
	return "lms:observer"
}

type statementStartKey struct{}

// Initialize implements gorm.Plugin
func (o *GormObserver) Initialize(db *gorm.DB) error {
	if o.cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(o.cfg.DBSystem)}
		if !o.cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	cb := db.Callback()
	regs := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("lms:before_create", o.before) },
		func() error { return cb.Query().Before("gorm:query").Register("lms:before_query", o.before) },
		func() error { return cb.Update().Before("gorm:update").Register("lms:before_update", o.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("lms:before_delete", o.before) },
		func() error { return cb.Row().Before("gorm:row").Register("lms:before_row", o.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("lms:before_raw", o.before) },
		func() error { return cb.Create().After("gorm:create").Register("lms:after_create", o.after("INSERT")) },
		func() error { return cb.Query().After("gorm:query").Register("lms:after_query", o.after("SELECT")) },
		func() error { return cb.Update().After("gorm:update").Register("lms:after_update", o.after("UPDATE")) },
		func() error { return cb.Delete().After("gorm:delete").Register("lms:after_delete", o.after("DELETE")) },
		func() error { return cb.Row().After("gorm:row").Register("lms:after_row", o.after("")) },
		func() error { return cb.Raw().After("gorm:raw").Register("lms:after_raw", o.after("")) },
	}
	for _, register := range regs {
		if err := register(); err != nil {
			return err
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		o.sqlDB = sqlDB
	}
	o.logger.Info("Database instrumentation registered",
		zap.Bool("tracing", o.cfg.Tracing),
		zap.Duration("slow_query_threshold", o.cfg.SlowQueryThreshold),
	)
	return nil
}

func (o *GormObserver) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, statementStartKey{}, time.Now())
}

// after records the statement; an empty op is read from the SQL text
func (o *GormObserver) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		operation := op
		if operation == "" {
			operation = operationOf(db.Statement.SQL.String())
		}
		var elapsed time.Duration
		if start, ok := ctx.Value(statementStartKey{}).(time.Time); ok {
			elapsed = time.Since(start)
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		o.queries.Inc(ctx, AttrDBOperation.String(operation))
		o.latency.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))
		slow := elapsed > o.cfg.SlowQueryThreshold
		if slow {
			o.slowQueries.Inc(ctx, AttrDBTable.String(table))
		}

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(
			attribute.String("db.sql.table", table),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}
		if slow {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", o.cfg.SlowQueryThreshold.Milliseconds()),
			))
		}
	}
}

// operationOf classifies raw SQL by its leading keyword
func operationOf(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	case "WITH":
		return "SELECT"
	default:
		return "OTHER"
	}
}

// StartPoolStats records connection pool gauges every PoolStatsInterval
// until ctx ends or Stop is called
func (o *GormObserver) StartPoolStats(ctx context.Context) {
	if o.sqlDB == nil {
		o.logger.Warn("Pool stats unavailable: no sql.DB")
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cfg.PoolStatsInterval)
		defer ticker.Stop()
		for {
			o.recordPoolStats(ctx)
			select {
			case <-ticker.C:
			case <-o.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (o *GormObserver) recordPoolStats(ctx context.Context) {
	stats := o.sqlDB.Stats()
	o.poolMax.Record(ctx, int64(stats.MaxOpenConnections))
	o.poolConns.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	o.poolConns.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	o.poolConns.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call more than once.
func (o *GormObserver) Stop() {
	o.stopOnce.Do(func() {
		close(o.stop)
		o.wg.Wait()
	})
}

// InstrumentGorm registers a GormObserver on db using a meter from mp
func InstrumentGorm(db *gorm.DB, mp *MeterProvider, cfg DBConfig, logger *zap.Logger) (*GormObserver, error) {
	observer, err := NewGormObserver(mp.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(observer); err != nil {
		return nil, err
	}
	return observer, nil
}
