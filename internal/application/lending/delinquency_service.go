package lending

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DelinquencyService recomputes delinquency and carries out operator
// actions on a loan's bucket
type DelinquencyService struct {
	*loanMutator
}

// NewDelinquencyService creates a new DelinquencyService
func NewDelinquencyService(cfg ServiceConfig) *DelinquencyService {
	return &DelinquencyService{loanMutator: newLoanMutator(cfg)}
}

// Recompute accrues penalty through asOf and reclassifies the loan.
// A zero asOf means today.
func (s *DelinquencyService) Recompute(ctx context.Context, tenantID, loanID uuid.UUID, asOf time.Time) (*DelinquencyResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "delinquency", "recompute")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrLoanID, loanID.String())

	var result *DelinquencyResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LendingOperationLabels(telemetry.OperationRecompute, ""), func(c context.Context) {
		result, operationErr = s.recompute(c, tenantID, loanID, asOf)
		if operationErr != nil {
			telemetry.RecordError(span, operationErr)
			return
		}
		telemetry.SetAttributes(span,
			telemetry.SpanAttrDPD, result.DPD,
			telemetry.SpanAttrBucket, string(result.Bucket),
		)
	})
	return result, operationErr
}

// recompute is shared with the sweep, which passes uuid.Nil as tenant
func (s *DelinquencyService) recompute(ctx context.Context, tenantID, loanID uuid.UUID, asOf time.Time) (*DelinquencyResult, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	var outcome lending.Outcome
	loan, err := s.mutate(ctx, tenantID, loanID, func(_ context.Context, _ TransactionalRepositories, loan *lending.Loan) error {
		if !loan.IsActive() {
			outcome, _ = loan.Recompute(asOf, s.engine)
			return errUnchanged
		}
		var err error
		outcome, err = loan.Recompute(asOf, s.engine)
		return err
	})
	if err != nil {
		return nil, err
	}
	if outcome.Decision.Changed() {
		s.logger.Info("loan reclassified",
			zap.String("loan_id", loan.ID.String()),
			zap.String("from", string(outcome.Decision.From)),
			zap.String("to", string(outcome.Decision.To)),
			zap.Int("dpd", outcome.DPD),
		)
	}
	return toDelinquencyResult(loan, outcome), nil
}

// EscalateToLegal moves a loan to Legal regardless of its DPD
func (s *DelinquencyService) EscalateToLegal(ctx context.Context, req OperatorActionRequest) (*DelinquencyResult, error) {
	return s.operatorAction(ctx, req, lending.TriggerLegalEscalation, func(l *lending.Loan, at time.Time) (lending.Outcome, error) {
		return l.EscalateToLegal(req.OperatorID, req.Reason, at, s.engine)
	})
}

// WriteOff writes a loan off from M3 or Legal
func (s *DelinquencyService) WriteOff(ctx context.Context, req OperatorActionRequest) (*DelinquencyResult, error) {
	return s.operatorAction(ctx, req, lending.TriggerWriteOff, func(l *lending.Loan, at time.Time) (lending.Outcome, error) {
		return l.WriteOff(req.OperatorID, req.Reason, at, s.engine)
	})
}

// CureFromLegal releases a loan from Legal to the bucket its DPD warrants
func (s *DelinquencyService) CureFromLegal(ctx context.Context, req OperatorActionRequest) (*DelinquencyResult, error) {
	return s.operatorAction(ctx, req, lending.TriggerOperatorCure, func(l *lending.Loan, at time.Time) (lending.Outcome, error) {
		return l.CureFromLegal(req.OperatorID, req.Reason, at, s.engine)
	})
}

func (s *DelinquencyService) operatorAction(
	ctx context.Context,
	req OperatorActionRequest,
	trigger lending.TransitionTrigger,
	apply func(l *lending.Loan, at time.Time) (lending.Outcome, error),
) (*DelinquencyResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "delinquency", strings.ToLower(string(trigger)))
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLoanID, req.LoanID.String(),
		telemetry.SpanAttrOperatorID, req.OperatorID.String(),
		telemetry.SpanAttrTrigger, string(trigger),
	)

	var result *DelinquencyResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LendingOperationLabels(telemetry.OperationOperatorAction, string(trigger)), func(c context.Context) {
		if strings.TrimSpace(req.Reason) == "" {
			operationErr = shared.NewDomainError(shared.CodeInvalidInput, "Reason is required")
			telemetry.RecordError(span, operationErr)
			return
		}
		at := req.At
		if at.IsZero() {
			at = s.now()
		}
		var outcome lending.Outcome
		loan, err := s.mutate(c, req.TenantID, req.LoanID, func(_ context.Context, _ TransactionalRepositories, loan *lending.Loan) error {
			var err error
			outcome, err = apply(loan, at)
			return err
		})
		if err != nil {
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}
		s.logger.Info("operator bucket action applied",
			zap.String("loan_id", loan.ID.String()),
			zap.String("operator_id", req.OperatorID.String()),
			zap.String("trigger", string(trigger)),
			zap.String("from", string(outcome.Decision.From)),
			zap.String("to", string(outcome.Decision.To)),
		)
		telemetry.AddEvent(span, "bucket_changed", "to", string(outcome.Decision.To))
		result = toDelinquencyResult(loan, outcome)
	})
	return result, operationErr
}

// CloseLegalCase closes the loan's open legal case. It does not move the
// loan out of Legal; that takes a cure.
func (s *DelinquencyService) CloseLegalCase(ctx context.Context, req OperatorActionRequest) (*LegalCaseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "delinquency", "close_legal_case")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLoanID, req.LoanID.String(),
		telemetry.SpanAttrOperatorID, req.OperatorID.String(),
	)

	if req.OperatorID == uuid.Nil {
		err := shared.NewDomainError(shared.CodeInvalidInput, "Operator is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	var closed *lending.LegalCase
	if _, err := s.mutate(ctx, req.TenantID, req.LoanID, func(_ context.Context, _ TransactionalRepositories, loan *lending.Loan) error {
		lc, err := loan.CloseLegalCase(req.OperatorID, req.Reason, at)
		closed = lc
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("legal case closed",
		zap.String("loan_id", req.LoanID.String()),
		zap.String("case_number", closed.CaseNumber),
	)
	return toLegalCaseResponse(closed), nil
}
