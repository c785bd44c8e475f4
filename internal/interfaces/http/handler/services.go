package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/scheduler"
)

// The interfaces below are the subsets of the application services the
// handlers call. The concrete services satisfy them.

// LoanService covers disbursement and loan queries
type LoanService interface {
	Disburse(ctx context.Context, req applending.DisburseLoanRequest) (*applending.LoanResponse, error)
	GetLoan(ctx context.Context, tenantID, loanID uuid.UUID, withSchedule bool) (*applending.LoanResponse, error)
	GetLoanByNumber(ctx context.Context, tenantID uuid.UUID, loanNumber string) (*applending.LoanResponse, error)
	ListLoans(ctx context.Context, tenantID uuid.UUID, filter lending.LoanFilter) ([]applending.LoanResponse, int64, error)
	ListTransitions(ctx context.Context, tenantID, loanID uuid.UUID) ([]applending.TransitionResponse, error)
	BucketDistribution(ctx context.Context, tenantID uuid.UUID) ([]applending.BucketCount, error)
}

// PaymentService covers payment posting
type PaymentService interface {
	ApplyPayment(ctx context.Context, req applending.ApplyPaymentRequest) (*applending.PaymentResult, error)
	ListPayments(ctx context.Context, tenantID, loanID uuid.UUID) ([]applending.PaymentResult, error)
}

// DelinquencyService covers recompute and operator bucket actions
type DelinquencyService interface {
	Recompute(ctx context.Context, tenantID, loanID uuid.UUID, asOf time.Time) (*applending.DelinquencyResult, error)
	EscalateToLegal(ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error)
	WriteOff(ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error)
	CureFromLegal(ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error)
	CloseLegalCase(ctx context.Context, req applending.OperatorActionRequest) (*applending.LegalCaseResponse, error)
}

// SweepTrigger runs the daily sweep on demand
type SweepTrigger interface {
	Trigger(ctx context.Context, asOf time.Time) (*scheduler.Job, error)
	LastJob() *scheduler.Job
	NextRun() time.Time
}

var (
	_ LoanService        = (*applending.LoanService)(nil)
	_ PaymentService     = (*applending.PaymentService)(nil)
	_ DelinquencyService = (*applending.DelinquencyService)(nil)
	_ SweepTrigger       = (*scheduler.SweepScheduler)(nil)
)
