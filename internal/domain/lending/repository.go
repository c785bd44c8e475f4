package lending

import (
	"context"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
)

// LoanFilter defines filtering options for loan queries
type LoanFilter struct {
	shared.Filter
	Status     *LoanStatus
	Bucket     *Bucket
	BorrowerID *uuid.UUID
}

// LoanRepository persists the Loan aggregate together with its
// installments, legal cases and pending bucket transitions.
type LoanRepository interface {
	// FindByID loads a loan by ID. Returns nil, nil when not found.
	FindByID(ctx context.Context, id uuid.UUID) (*Loan, error)

	// FindByIDForTenant loads a loan by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Loan, error)

	// FindByLoanNumber loads a loan by its number within a tenant
	FindByLoanNumber(ctx context.Context, tenantID uuid.UUID, loanNumber string) (*Loan, error)

	// FindAllForTenant lists loans without their schedules
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter LoanFilter) ([]Loan, int64, error)

	// FindActiveIDs returns the IDs of every active loan, across tenants
	FindActiveIDs(ctx context.Context) ([]uuid.UUID, error)

	// CountByBucket returns the number of active loans per committed bucket
	CountByBucket(ctx context.Context, tenantID uuid.UUID) (map[Bucket]int64, error)

	// FindTransitions returns the bucket history of a loan, oldest first
	FindTransitions(ctx context.Context, loanID uuid.UUID) ([]BucketTransition, error)

	// Create inserts a newly disbursed loan
	Create(ctx context.Context, loan *Loan) error

	// SaveWithLock updates a loan if its version is unchanged since it was
	// loaded, and returns ErrConcurrentModification otherwise.
	SaveWithLock(ctx context.Context, loan *Loan) error
}

// PaymentRepository stores applied payments. Payments are immutable.
type PaymentRepository interface {
	// Create inserts a payment. The (loan, reference) pair is unique.
	Create(ctx context.Context, payment *Payment) error

	// FindByReference returns the payment with ref on the loan, or nil, nil
	FindByReference(ctx context.Context, loanID uuid.UUID, ref string) (*Payment, error)

	// FindByLoan returns all payments of a loan, oldest first
	FindByLoan(ctx context.Context, loanID uuid.UUID) ([]Payment, error)
}

// LoanLocker serializes work on a single loan. Payments, recomputes and
// operator actions on the same loan never interleave while the lock is held;
// the version check in SaveWithLock remains the final guard.
type LoanLocker interface {
	// Lock blocks until the loan is locked or ctx is done. The returned
	// function releases the lock and is safe to call more than once.
	// Failing to acquire the lock in time returns ErrLoanLocked.
	Lock(ctx context.Context, loanID uuid.UUID) (unlock func(), err error)
}
