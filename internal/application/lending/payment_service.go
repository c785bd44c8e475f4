package lending

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentService applies payments to loans
type PaymentService struct {
	*loanMutator
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg ServiceConfig) *PaymentService {
	return &PaymentService{loanMutator: newLoanMutator(cfg)}
}

// ApplyPayment allocates a payment across the loan's schedule and
// reclassifies the loan, all in one transaction.
//
// Replaying a reference that was already applied with the same amount
// returns the recorded allocation and changes nothing. The same reference
// with a different amount is rejected as a duplicate.
func (s *PaymentService) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrLoanID, req.LoanID.String(),
		telemetry.SpanAttrReference, req.Reference,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	var result *PaymentResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LendingOperationLabels(telemetry.OperationApplyPayment, ""), func(c context.Context) {
		receivedAt := req.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = s.now()
		}
		// validate before taking the lock
		if _, err := lending.NewPayment(req.TenantID, req.LoanID, req.Reference, req.Amount, receivedAt); err != nil {
			telemetry.RecordError(span, err)
			s.recordPayment(c, req.TenantID, err)
			operationErr = err
			return
		}

		var (
			applied  *lending.Payment
			replayed *lending.Payment
			outcome  lending.Outcome
		)
		loan, err := s.mutate(c, req.TenantID, req.LoanID, func(c context.Context, repos TransactionalRepositories, loan *lending.Loan) error {
			applied, replayed = nil, nil
			payment, err := lending.NewPayment(loan.TenantID, loan.ID, req.Reference, req.Amount, receivedAt)
			if err != nil {
				return err
			}
			existing, err := repos.PaymentRepo().FindByReference(c, loan.ID, payment.Reference)
			if err != nil {
				return fmt.Errorf("failed to look up payment reference: %w", err)
			}
			if existing != nil {
				if !existing.Amount.Equals(payment.Amount) {
					return shared.NewDomainError(lending.CodeDuplicatePayment,
						fmt.Sprintf("Payment %s was already applied to loan %s with amount %s", payment.Reference, loan.LoanNumber, existing.Amount))
				}
				replayed = existing
				return errUnchanged
			}

			outcome, err = loan.ApplyPayment(payment, s.engine)
			if err != nil {
				return err
			}
			if err := repos.PaymentRepo().Create(c, payment); err != nil {
				return fmt.Errorf("failed to save payment: %w", err)
			}
			applied = payment
			return nil
		})
		if err != nil {
			telemetry.RecordError(span, err)
			s.recordPayment(c, req.TenantID, err)
			operationErr = err
			return
		}

		if replayed != nil {
			s.logger.Info("payment replayed",
				zap.String("loan_id", loan.ID.String()),
				zap.String("reference", replayed.Reference),
			)
			telemetry.AddEvent(span, "payment_replayed", "payment_id", replayed.ID.String())
			if s.metrics != nil {
				s.metrics.RecordPayment(c, loan.TenantID, telemetry.PaymentStatusReplayed)
			}
			result = toPaymentResult(loan, replayed, true)
			return
		}

		s.logger.Info("payment applied",
			zap.String("loan_id", loan.ID.String()),
			zap.String("reference", applied.Reference),
			zap.String("amount", applied.Amount.String()),
			zap.String("penalty", applied.Allocation.Penalty.String()),
			zap.String("interest", applied.Allocation.Interest.String()),
			zap.String("principal", applied.Allocation.Principal.String()),
			zap.String("advance", applied.Allocation.Advance.String()),
			zap.Int("dpd", outcome.DPD),
			zap.String("bucket", string(loan.Bucket())),
		)
		s.recordAllocation(c, loan.TenantID, applied.Allocation)
		telemetry.SetAttributes(span,
			telemetry.SpanAttrPaymentID, applied.ID.String(),
			telemetry.SpanAttrBucket, string(loan.Bucket()),
			telemetry.SpanAttrDPD, outcome.DPD,
		)
		telemetry.AddEvent(span, "payment_applied", "payment_id", applied.ID.String())
		result = toPaymentResult(loan, applied, false)
	})

	return result, operationErr
}

// ListPayments returns the payments of a loan, oldest first
func (s *PaymentService) ListPayments(ctx context.Context, tenantID, loanID uuid.UUID) ([]PaymentResult, error) {
	loan, err := s.load(ctx, s.loanRepo, tenantID, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.FindByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	items := make([]PaymentResult, 0, len(payments))
	for i := range payments {
		items = append(items, *toPaymentResult(loan, &payments[i], false))
	}
	return items, nil
}

func (s *PaymentService) recordPayment(ctx context.Context, tenantID uuid.UUID, err error) {
	if s.metrics == nil {
		return
	}
	status := telemetry.PaymentStatusRejected
	if lending.KindOf(err) == lending.KindAllocationConflict {
		status = telemetry.PaymentStatusConflicts
	}
	s.metrics.RecordPayment(ctx, tenantID, status)
}

func (s *PaymentService) recordAllocation(ctx context.Context, tenantID uuid.UUID, alloc lending.Allocation) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordPayment(ctx, tenantID, telemetry.PaymentStatusApplied)
	currency := string(alloc.Penalty.Currency())
	s.metrics.RecordAllocation(ctx, tenantID, string(lending.ComponentPenalty), currency, alloc.Penalty.MinorUnits())
	s.metrics.RecordAllocation(ctx, tenantID, string(lending.ComponentInterest), currency, alloc.Interest.MinorUnits())
	s.metrics.RecordAllocation(ctx, tenantID, string(lending.ComponentPrincipal), currency, alloc.Principal.MinorUnits())
	s.metrics.RecordAllocation(ctx, tenantID, string(lending.ComponentAdvance), currency, alloc.Advance.MinorUnits())
}

// toPaymentResult reports a payment together with the loan's current state
func toPaymentResult(loan *lending.Loan, p *lending.Payment, replayed bool) *PaymentResult {
	return &PaymentResult{
		PaymentID:     p.ID,
		LoanID:        loan.ID,
		Reference:     p.Reference,
		Amount:        p.Amount,
		ReceivedAt:    p.ReceivedAt,
		Allocation:    p.Allocation,
		Replayed:      replayed,
		DPD:           loan.Delinquency.DPD,
		Bucket:        loan.Bucket(),
		Outstanding:   loan.Outstanding(),
		CreditBalance: loan.CreditBalance,
		LoanStatus:    loan.Status,
	}
}
