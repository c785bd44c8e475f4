package lending

import (
	"context"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
)

// TransactionScope runs a unit of work against the lending repositories.
// Everything done through the repositories handed to fn is committed or
// rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction. If fn returns an error
	// the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the lending repositories bound to one transaction.
//
// LoanRepo persists the Loan aggregate together with its installments, legal
// cases and bucket transitions. PaymentRepo is append-only.
type TransactionalRepositories interface {
	LoanRepo() lending.LoanRepository
	PaymentRepo() lending.PaymentRepository
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used in tests and wherever the repositories are not transactional.
type NoOpTransactionScope struct {
	loanRepo    lending.LoanRepository
	paymentRepo lending.PaymentRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(loanRepo lending.LoanRepository, paymentRepo lending.PaymentRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{loanRepo: loanRepo, paymentRepo: paymentRepo}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LoanRepo returns the loan repository
func (s *NoOpTransactionScope) LoanRepo() lending.LoanRepository {
	return s.loanRepo
}

// PaymentRepo returns the payment repository
func (s *NoOpTransactionScope) PaymentRepo() lending.PaymentRepository {
	return s.paymentRepo
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
