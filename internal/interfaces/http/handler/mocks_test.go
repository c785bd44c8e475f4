package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/mock"
)

type mockLoanService struct{ mock.Mock }

func (m *mockLoanService) Disburse(ctx context.Context, req applending.DisburseLoanRequest) (*applending.LoanResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*applending.LoanResponse)
	return resp, args.Error(1)
}

func (m *mockLoanService) GetLoan(ctx context.Context, tenantID, loanID uuid.UUID, withSchedule bool) (*applending.LoanResponse, error) {
	args := m.Called(ctx, tenantID, loanID, withSchedule)
	resp, _ := args.Get(0).(*applending.LoanResponse)
	return resp, args.Error(1)
}

func (m *mockLoanService) GetLoanByNumber(ctx context.Context, tenantID uuid.UUID, loanNumber string) (*applending.LoanResponse, error) {
	args := m.Called(ctx, tenantID, loanNumber)
	resp, _ := args.Get(0).(*applending.LoanResponse)
	return resp, args.Error(1)
}

func (m *mockLoanService) ListLoans(ctx context.Context, tenantID uuid.UUID, filter lending.LoanFilter) ([]applending.LoanResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	resp, _ := args.Get(0).([]applending.LoanResponse)
	return resp, args.Get(1).(int64), args.Error(2)
}

func (m *mockLoanService) ListTransitions(ctx context.Context, tenantID, loanID uuid.UUID) ([]applending.TransitionResponse, error) {
	args := m.Called(ctx, tenantID, loanID)
	resp, _ := args.Get(0).([]applending.TransitionResponse)
	return resp, args.Error(1)
}

func (m *mockLoanService) BucketDistribution(ctx context.Context, tenantID uuid.UUID) ([]applending.BucketCount, error) {
	args := m.Called(ctx, tenantID)
	resp, _ := args.Get(0).([]applending.BucketCount)
	return resp, args.Error(1)
}

type mockPaymentService struct{ mock.Mock }

func (m *mockPaymentService) ApplyPayment(ctx context.Context, req applending.ApplyPaymentRequest) (*applending.PaymentResult, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*applending.PaymentResult)
	return resp, args.Error(1)
}

func (m *mockPaymentService) ListPayments(ctx context.Context, tenantID, loanID uuid.UUID) ([]applending.PaymentResult, error) {
	args := m.Called(ctx, tenantID, loanID)
	resp, _ := args.Get(0).([]applending.PaymentResult)
	return resp, args.Error(1)
}

type mockDelinquencyService struct{ mock.Mock }

func (m *mockDelinquencyService) Recompute(ctx context.Context, tenantID, loanID uuid.UUID, asOf time.Time) (*applending.DelinquencyResult, error) {
	args := m.Called(ctx, tenantID, loanID, asOf)
	resp, _ := args.Get(0).(*applending.DelinquencyResult)
	return resp, args.Error(1)
}

func (m *mockDelinquencyService) action(name string, ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error) {
	args := m.MethodCalled(name, ctx, req)
	resp, _ := args.Get(0).(*applending.DelinquencyResult)
	return resp, args.Error(1)
}

func (m *mockDelinquencyService) EscalateToLegal(ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error) {
	return m.action("EscalateToLegal", ctx, req)
}

func (m *mockDelinquencyService) WriteOff(ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error) {
	return m.action("WriteOff", ctx, req)
}

func (m *mockDelinquencyService) CureFromLegal(ctx context.Context, req applending.OperatorActionRequest) (*applending.DelinquencyResult, error) {
	return m.action("CureFromLegal", ctx, req)
}

func (m *mockDelinquencyService) CloseLegalCase(ctx context.Context, req applending.OperatorActionRequest) (*applending.LegalCaseResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*applending.LegalCaseResponse)
	return resp, args.Error(1)
}

type mockSweepTrigger struct{ mock.Mock }

func (m *mockSweepTrigger) Trigger(ctx context.Context, asOf time.Time) (*scheduler.Job, error) {
	args := m.Called(ctx, asOf)
	job, _ := args.Get(0).(*scheduler.Job)
	return job, args.Error(1)
}

func (m *mockSweepTrigger) LastJob() *scheduler.Job {
	job, _ := m.Called().Get(0).(*scheduler.Job)
	return job
}

func (m *mockSweepTrigger) NextRun() time.Time {
	return m.Called().Get(0).(time.Time)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }
