package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CodeLoanNumberExists is returned when a loan number is already taken in the tenant
const CodeLoanNumberExists = "LOAN_NUMBER_EXISTS"

// LoanService disburses loans and serves the loan read models
type LoanService struct {
	*loanMutator
	defaultMethod lending.InterestMethod
}

// NewLoanService creates a new LoanService
func NewLoanService(cfg ServiceConfig) *LoanService {
	method := cfg.DefaultMethod
	if method == "" {
		method = lending.MethodReducingBalance
	}
	return &LoanService{loanMutator: newLoanMutator(cfg), defaultMethod: method}
}

// Disburse validates the terms, generates the schedule and persists the new loan
func (s *LoanService) Disburse(ctx context.Context, req DisburseLoanRequest) (*LoanResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "loan", "disburse")
	defer span.End()

	method := req.Method
	if method == "" {
		method = s.defaultMethod
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBorrowerID, req.BorrowerID.String(),
		telemetry.SpanAttrAmount, req.Principal.String(),
		"interest_method", string(method),
	)

	var result *LoanResponse
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LendingOperationLabels(telemetry.OperationDisburse, string(method)), func(c context.Context) {
		loanNumber := strings.TrimSpace(req.LoanNumber)
		if loanNumber == "" {
			loanNumber = generateLoanNumber(s.now())
		} else {
			existing, err := s.loanRepo.FindByLoanNumber(c, req.TenantID, loanNumber)
			if err != nil {
				telemetry.RecordError(span, err)
				operationErr = fmt.Errorf("failed to check loan number: %w", err)
				return
			}
			if existing != nil {
				err := shared.NewDomainError(CodeLoanNumberExists, fmt.Sprintf("Loan number %s already exists", loanNumber))
				telemetry.RecordError(span, err)
				operationErr = err
				return
			}
		}

		disbursedOn := req.DisbursementDate
		if disbursedOn.IsZero() {
			disbursedOn = s.now()
		}
		terms := lending.LoanTerms{
			Principal:        req.Principal,
			AnnualRateBps:    req.AnnualRateBps,
			TenureMonths:     req.TenureMonths,
			Method:           method,
			DisbursementDate: disbursedOn,
		}
		loan, err := lending.NewLoan(req.TenantID, req.BorrowerID, loanNumber, terms, s.engine)
		if err != nil {
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}

		if err := s.txScope.Execute(c, func(repos TransactionalRepositories) error {
			return repos.LoanRepo().Create(c, loan)
		}); err != nil {
			telemetry.RecordError(span, err)
			operationErr = fmt.Errorf("failed to save loan: %w", err)
			return
		}

		telemetry.SetAttributes(span,
			telemetry.SpanAttrLoanID, loan.ID.String(),
			telemetry.SpanAttrLoanNumber, loan.LoanNumber,
		)
		s.logger.Info("loan disbursed",
			zap.String("loan_id", loan.ID.String()),
			zap.String("loan_number", loan.LoanNumber),
			zap.String("principal", loan.Terms.Principal.String()),
			zap.String("emi", loan.Schedule.EMI.String()),
			zap.Int("tenure_months", loan.Terms.TenureMonths),
		)
		if s.metrics != nil {
			s.metrics.RecordDisbursement(c, loan.TenantID, string(method))
		}
		s.publish(c, loan)

		telemetry.AddEvent(span, "loan_disbursed", "loan_number", loan.LoanNumber)
		resp := ToLoanResponse(loan, s.now(), true)
		result = &resp
	})

	return result, operationErr
}

// GetLoan returns a loan; the schedule is included when withSchedule is set
func (s *LoanService) GetLoan(ctx context.Context, tenantID, loanID uuid.UUID, withSchedule bool) (*LoanResponse, error) {
	loan, err := s.load(ctx, s.loanRepo, tenantID, loanID)
	if err != nil {
		return nil, err
	}
	resp := ToLoanResponse(loan, s.now(), withSchedule)
	return &resp, nil
}

// GetLoanByNumber returns a loan with its schedule by loan number
func (s *LoanService) GetLoanByNumber(ctx context.Context, tenantID uuid.UUID, loanNumber string) (*LoanResponse, error) {
	loan, err := s.loanRepo.FindByLoanNumber(ctx, tenantID, strings.TrimSpace(loanNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return nil, shared.NewDomainError(CodeLoanNotFound, "Loan not found")
	}
	resp := ToLoanResponse(loan, s.now(), true)
	return &resp, nil
}

// ListLoans returns a page of loans without their schedules
func (s *LoanService) ListLoans(ctx context.Context, tenantID uuid.UUID, filter lending.LoanFilter) ([]LoanResponse, int64, error) {
	loans, total, err := s.loanRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	now := s.now()
	items := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		items = append(items, ToLoanResponse(&loans[i], now, false))
	}
	return items, total, nil
}

// ListTransitions returns the bucket history of a loan, oldest first
func (s *LoanService) ListTransitions(ctx context.Context, tenantID, loanID uuid.UUID) ([]TransitionResponse, error) {
	if _, err := s.load(ctx, s.loanRepo, tenantID, loanID); err != nil {
		return nil, err
	}
	transitions, err := s.loanRepo.FindTransitions(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	items := make([]TransitionResponse, 0, len(transitions))
	for _, t := range transitions {
		items = append(items, toTransitionResponse(t))
	}
	return items, nil
}

// BucketDistribution counts active loans per committed bucket. Every
// delinquency bucket is listed, with its DPD range from the threshold table.
func (s *LoanService) BucketDistribution(ctx context.Context, tenantID uuid.UUID) ([]BucketCount, error) {
	counts, err := s.loanRepo.CountByBucket(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count loans by bucket: %w", err)
	}
	table := s.engine.Policy().Thresholds
	rows := make([]BucketCount, 0, len(lending.DelinquencyBuckets))
	for _, b := range lending.DelinquencyBuckets {
		lo, hi, _ := table.Range(b)
		row := BucketCount{Bucket: b, MinDPD: lo, Loans: counts[b]}
		if hi >= 0 {
			row.MaxDPD = &hi
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// generateLoanNumber returns a number of the form LN-20240115-1A2B3C4D
func generateLoanNumber(at time.Time) string {
	return fmt.Sprintf("LN-%s-%s", at.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
