package persistence

import (
	"context"

	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"gorm.io/gorm"
)

// GormLendingTransactionScope implements applending.TransactionScope using
// GORM transactions. The installments, payment, delinquency state, legal
// case and transitions of one payment commit together.
type GormLendingTransactionScope struct {
	db *gorm.DB
}

// NewGormLendingTransactionScope creates a new GormLendingTransactionScope.
func NewGormLendingTransactionScope(db *gorm.DB) *GormLendingTransactionScope {
	return &GormLendingTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormLendingTransactionScope) Execute(ctx context.Context, fn func(repos applending.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLendingRepositories{tx: tx})
	})
}

// gormLendingRepositories provides the lending repositories bound to one transaction.
type gormLendingRepositories struct {
	tx *gorm.DB
}

// LoanRepo returns the loan repository scoped to the current transaction.
func (r *gormLendingRepositories) LoanRepo() lending.LoanRepository {
	return NewGormLoanRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormLendingRepositories) PaymentRepo() lending.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

var (
	_ applending.TransactionScope          = (*GormLendingTransactionScope)(nil)
	_ applending.TransactionalRepositories = (*gormLendingRepositories)(nil)
)
