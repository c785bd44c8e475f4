package lending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockLoanRepository is a mock implementation of lending.LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*lending.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Loan), args.Error(1)
}

func (m *MockLoanRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*lending.Loan, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Loan), args.Error(1)
}

func (m *MockLoanRepository) FindByLoanNumber(ctx context.Context, tenantID uuid.UUID, loanNumber string) (*lending.Loan, error) {
	args := m.Called(ctx, tenantID, loanNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Loan), args.Error(1)
}

func (m *MockLoanRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter lending.LoanFilter) ([]lending.Loan, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]lending.Loan), args.Get(1).(int64), args.Error(2)
}

func (m *MockLoanRepository) FindActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockLoanRepository) CountByBucket(ctx context.Context, tenantID uuid.UUID) (map[lending.Bucket]int64, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[lending.Bucket]int64), args.Error(1)
}

func (m *MockLoanRepository) FindTransitions(ctx context.Context, loanID uuid.UUID) ([]lending.BucketTransition, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).([]lending.BucketTransition), args.Error(1)
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *lending.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) SaveWithLock(ctx context.Context, loan *lending.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of lending.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *lending.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByReference(ctx context.Context, loanID uuid.UUID, ref string) (*lending.Payment, error) {
	args := m.Called(ctx, loanID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByLoan(ctx context.Context, loanID uuid.UUID) ([]lending.Payment, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).([]lending.Payment), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// recordingLocker counts lock acquisitions and releases
type recordingLocker struct {
	mu       sync.Mutex
	locked   int
	unlocked int
	err      error
}

func (l *recordingLocker) Lock(context.Context, uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.locked++
	return func() {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
	}, nil
}

var testToday = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

type fixture struct {
	engine      *lending.Engine
	loanRepo    *MockLoanRepository
	paymentRepo *MockPaymentRepository
	publisher   *MockEventPublisher
	locker      *recordingLocker
	cfg         ServiceConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := lending.NewEngine(lending.Policy{
		Currency:         valueobject.INR,
		PenaltyRateBps:   2400,
		ProcessingFeeBps: 200,
		AdvancePolicy:    lending.AdvanceReduceTenure,
		Thresholds:       lending.StandardThresholds(),
	})
	require.NoError(t, err)

	f := &fixture{
		engine:      engine,
		loanRepo:    new(MockLoanRepository),
		paymentRepo: new(MockPaymentRepository),
		publisher:   new(MockEventPublisher),
		locker:      &recordingLocker{},
	}
	f.cfg = ServiceConfig{
		Engine:      engine,
		LoanRepo:    f.loanRepo,
		PaymentRepo: f.paymentRepo,
		Locker:      f.locker,
		Publisher:   f.publisher,
		Logger:      zap.NewNop(),
		Clock:       func() time.Time { return testToday },
	}
	return f
}

func testTerms() lending.LoanTerms {
	return lending.LoanTerms{
		Principal:        valueobject.MustINR("100000"),
		AnnualRateBps:    2400,
		TenureMonths:     12,
		Method:           lending.MethodReducingBalance,
		DisbursementDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

// newTestLoan disburses 100,000 at 24% over 12 months on 2024-01-15
func (f *fixture) newTestLoan(t *testing.T, tenantID uuid.UUID) *lending.Loan {
	t.Helper()
	loan, err := lending.NewLoan(tenantID, uuid.New(), "LN-2024-0001", testTerms(), f.engine)
	require.NoError(t, err)
	loan.ClearDomainEvents()
	return loan
}

// copyLoan disburses an identical loan with the same ID, standing in for a
// second read of the same row
func (f *fixture) copyLoan(t *testing.T, src *lending.Loan) *lending.Loan {
	t.Helper()
	loan := f.newTestLoan(t, src.TenantID)
	loan.ID = src.ID
	loan.BorrowerID = src.BorrowerID
	return loan
}

func (f *fixture) capturePublished() *[]shared.DomainEvent {
	var published []shared.DomainEvent
	f.publisher.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = append(published, args.Get(1).([]shared.DomainEvent)...)
	}).Return(nil)
	return &published
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType())
	}
	return types
}
