// Package testutil provides helpers shared by the loan engine's integration
// tests: a sqlmock-backed GORM handle, deterministic IDs, the standard
// lending policy and polling assertions.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB wraps a GORM database with sqlmock
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a mock PostgreSQL database. It is closed on cleanup.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "Failed to open GORM connection")

	m := &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	return m.SqlDB.Close()
}

// ExpectationsWereMet fails t when a registered expectation was not used
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestTenantID returns the tenant used by tests that need only one
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// TestOperatorID returns the operator used by tests that need only one
func TestOperatorID() uuid.UUID {
	return NewTestUUID("test-operator")
}

// StandardPolicy is the policy the tests run with: INR, 24% penalty a year,
// a 2% processing fee, advances shorten the tenure and the standard buckets
func StandardPolicy() lending.Policy {
	return lending.Policy{
		Currency:         valueobject.INR,
		PenaltyRateBps:   2400,
		ProcessingFeeBps: 200,
		AdvancePolicy:    lending.AdvanceReduceTenure,
		Thresholds:       lending.StandardThresholds(),
	}
}

// NewEngine builds an engine on StandardPolicy
func NewEngine(t *testing.T) *lending.Engine {
	t.Helper()
	engine, err := lending.NewEngine(StandardPolicy())
	require.NoError(t, err)
	return engine
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FixedClock returns a clock frozen at t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ContextWithTimeout creates a context that is cancelled on cleanup
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition until it holds or timeout passes
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
