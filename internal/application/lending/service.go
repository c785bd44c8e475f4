package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the read-allocate-commit retries on a
// concurrent modification
const DefaultMaxAttempts = 3

// CodeLoanNotFound is returned when a loan does not exist for the tenant
const CodeLoanNotFound = "LOAN_NOT_FOUND"

// ServiceConfig holds the collaborators shared by the lending services
type ServiceConfig struct {
	Engine      *lending.Engine
	LoanRepo    lending.LoanRepository
	PaymentRepo lending.PaymentRepository
	TxScope     TransactionScope
	Locker      lending.LoanLocker
	Publisher   shared.EventPublisher
	Metrics     *telemetry.LendingMetrics
	Logger      *zap.Logger
	MaxAttempts int
	Clock       func() time.Time

	// DefaultMethod applies to disbursements that do not name an interest method
	DefaultMethod lending.InterestMethod
}

// errUnchanged ends a mutation without saving or publishing anything
var errUnchanged = errors.New("loan unchanged")

// mutation changes a loaded loan inside the unit of work
type mutation func(ctx context.Context, repos TransactionalRepositories, loan *lending.Loan) error

// loanMutator runs every state change of a loan through the same sequence:
// lock the loan, load it, mutate, save with the version check, retry on a
// concurrent modification, then publish the raised events after commit.
type loanMutator struct {
	engine      *lending.Engine
	loanRepo    lending.LoanRepository
	paymentRepo lending.PaymentRepository
	txScope     TransactionScope
	locker      lending.LoanLocker
	publisher   shared.EventPublisher
	metrics     *telemetry.LendingMetrics
	logger      *zap.Logger
	maxAttempts int
	clock       func() time.Time
}

func newLoanMutator(cfg ServiceConfig) *loanMutator {
	m := &loanMutator{
		engine:      cfg.Engine,
		loanRepo:    cfg.LoanRepo,
		paymentRepo: cfg.PaymentRepo,
		txScope:     cfg.TxScope,
		locker:      cfg.Locker,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		clock:       cfg.Clock,
	}
	if m.txScope == nil {
		m.txScope = NewNoOpTransactionScope(cfg.LoanRepo, cfg.PaymentRepo)
	}
	if m.locker == nil {
		m.locker = unlockedLocker{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = DefaultMaxAttempts
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m
}

// unlockedLocker is used when no locker is configured; the version check
// in SaveWithLock is then the only guard.
type unlockedLocker struct{}

func (unlockedLocker) Lock(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}

// mutate applies fn to the loan and returns the loan as committed. When fn
// returns errUnchanged the loan is returned as loaded and nothing is saved.
func (m *loanMutator) mutate(ctx context.Context, tenantID, loanID uuid.UUID, fn mutation) (*lending.Loan, error) {
	unlock, err := m.locker.Lock(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		var loan *lending.Loan
		unchanged := false
		err := m.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			l, err := m.load(ctx, repos.LoanRepo(), tenantID, loanID)
			if err != nil {
				return err
			}
			loan = l
			if err := fn(ctx, repos, l); err != nil {
				if errors.Is(err, errUnchanged) {
					unchanged = true
					return nil
				}
				if lending.KindOf(err) == lending.KindIllegalTransition {
					m.logger.Error("illegal bucket transition",
						zap.String("loan_id", l.ID.String()),
						zap.String("loan_number", l.LoanNumber),
						zap.String("bucket", string(l.Bucket())),
						zap.String("status", string(l.Status)),
						zap.Error(err),
					)
				}
				return err
			}
			if err := repos.LoanRepo().SaveWithLock(ctx, l); err != nil {
				return err
			}
			return nil
		})
		if err == nil {
			if unchanged {
				loan.ClearDomainEvents()
				return loan, nil
			}
			m.publish(ctx, loan)
			return loan, nil
		}
		if lending.CodeOf(err) != lending.CodeConcurrentModification || attempt >= m.maxAttempts {
			return nil, err
		}
		m.logger.Warn("concurrent loan modification, retrying",
			zap.String("loan_id", loanID.String()),
			zap.Int("attempt", attempt),
		)
		if m.metrics != nil {
			m.metrics.RecordAllocationRetry(ctx, tenantID)
		}
	}
}

// load reads the loan. A nil tenantID loads across tenants, which only the
// sweep does.
func (m *loanMutator) load(ctx context.Context, repo lending.LoanRepository, tenantID, loanID uuid.UUID) (*lending.Loan, error) {
	var (
		loan *lending.Loan
		err  error
	)
	if tenantID == uuid.Nil {
		loan, err = repo.FindByID(ctx, loanID)
	} else {
		loan, err = repo.FindByIDForTenant(ctx, tenantID, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return nil, shared.NewDomainError(CodeLoanNotFound, "Loan not found")
	}
	return loan, nil
}

// publish hands the loan's events to the publisher. A publish failure is
// logged and does not undo the committed change.
func (m *loanMutator) publish(ctx context.Context, loan *lending.Loan) {
	events := loan.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	m.observe(ctx, events)
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, events...); err != nil {
			m.logger.Warn("failed to publish loan events",
				zap.String("loan_id", loan.ID.String()),
				zap.Int("events", len(events)),
				zap.Error(err),
			)
		}
	}
	loan.ClearDomainEvents()
}

// observe derives transition metrics from the committed events
func (m *loanMutator) observe(ctx context.Context, events []shared.DomainEvent) {
	if m.metrics == nil {
		return
	}
	for _, evt := range events {
		switch e := evt.(type) {
		case *lending.BucketChangedEvent:
			m.metrics.RecordTransition(ctx, e.TenantID(), string(e.From), string(e.To), string(e.Trigger))
		case *lending.LegalCaseOpenedEvent:
			m.metrics.RecordLegalCaseOpened(ctx, e.TenantID())
		}
	}
}

func (m *loanMutator) now() time.Time {
	return m.clock()
}
