package lending

import (
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// DisburseLoanRequest is the input of DisbursementService.Disburse.
// LoanNumber is generated when empty.
type DisburseLoanRequest struct {
	TenantID         uuid.UUID
	BorrowerID       uuid.UUID
	LoanNumber       string
	Principal        valueobject.Money
	AnnualRateBps    int64
	TenureMonths     int
	Method           lending.InterestMethod
	DisbursementDate time.Time
}

// ApplyPaymentRequest is the input of PaymentService.ApplyPayment
type ApplyPaymentRequest struct {
	TenantID   uuid.UUID
	LoanID     uuid.UUID
	Reference  string
	Amount     valueobject.Money
	ReceivedAt time.Time
}

// OperatorActionRequest carries a manual bucket action
type OperatorActionRequest struct {
	TenantID   uuid.UUID
	LoanID     uuid.UUID
	OperatorID uuid.UUID
	Reason     string
	At         time.Time
}

// LoanResponse is the read model of a loan
type LoanResponse struct {
	ID               uuid.UUID              `json:"id"`
	TenantID         uuid.UUID              `json:"tenant_id"`
	LoanNumber       string                 `json:"loan_number"`
	BorrowerID       uuid.UUID              `json:"borrower_id"`
	Principal        valueobject.Money      `json:"principal"`
	AnnualRateBps    int64                  `json:"annual_rate_bps"`
	TenureMonths     int                    `json:"tenure_months"`
	Method           lending.InterestMethod `json:"method"`
	DisbursementDate time.Time              `json:"disbursement_date"`
	EMI              valueobject.Money      `json:"emi"`
	ProcessingFee    valueobject.Money      `json:"processing_fee"`
	Status           lending.LoanStatus     `json:"status"`
	DPD              int                    `json:"dpd"`
	Bucket           lending.Bucket         `json:"bucket"`
	BucketSince      time.Time              `json:"bucket_since"`
	DaysInBucket     int                    `json:"days_in_bucket"`
	Outstanding      *OutstandingResponse   `json:"outstanding,omitempty"`
	CreditBalance    valueobject.Money      `json:"credit_balance"`
	LegalCase        *LegalCaseResponse     `json:"legal_case,omitempty"`
	ClosedAt         *time.Time             `json:"closed_at,omitempty"`
	Version          int                    `json:"version"`
	Installments     []InstallmentResponse  `json:"installments,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// OutstandingResponse breaks down what the borrower still owes
type OutstandingResponse struct {
	Principal valueobject.Money `json:"principal"`
	Interest  valueobject.Money `json:"interest"`
	Penalty   valueobject.Money `json:"penalty"`
	Total     valueobject.Money `json:"total"`
}

// InstallmentResponse is one schedule row
type InstallmentResponse struct {
	Seq            int                       `json:"seq"`
	DueDate        time.Time                 `json:"due_date"`
	EMI            valueobject.Money         `json:"emi"`
	Principal      valueobject.Money         `json:"principal"`
	Interest       valueobject.Money         `json:"interest"`
	PaidPrincipal  valueobject.Money         `json:"paid_principal"`
	PaidInterest   valueobject.Money         `json:"paid_interest"`
	PaidAmount     valueobject.Money         `json:"paid_amount"`
	PenaltyAccrued valueobject.Money         `json:"penalty_accrued"`
	PenaltyPaid    valueobject.Money         `json:"penalty_paid"`
	Outstanding    valueobject.Money         `json:"outstanding"`
	Status         lending.InstallmentStatus `json:"status"`
	PaidAt         *time.Time                `json:"paid_at,omitempty"`
}

// LegalCaseResponse is the read model of a legal case
type LegalCaseResponse struct {
	ID            uuid.UUID                 `json:"id"`
	CaseNumber    string                    `json:"case_number"`
	Status        lending.LegalCaseStatus   `json:"status"`
	Trigger       lending.TransitionTrigger `json:"trigger"`
	OpenedDPD     int                       `json:"opened_dpd"`
	OpenedAt      time.Time                 `json:"opened_at"`
	OpenedBy      *uuid.UUID                `json:"opened_by,omitempty"`
	ClosedAt      *time.Time                `json:"closed_at,omitempty"`
	ClosedBy      *uuid.UUID                `json:"closed_by,omitempty"`
	ClosureReason string                    `json:"closure_reason,omitempty"`
}

// PaymentResult reports how a payment was applied. Replayed is set when the
// reference had already been applied with the same amount.
type PaymentResult struct {
	PaymentID     uuid.UUID          `json:"payment_id"`
	LoanID        uuid.UUID          `json:"loan_id"`
	Reference     string             `json:"reference"`
	Amount        valueobject.Money  `json:"amount"`
	ReceivedAt    time.Time          `json:"received_at"`
	Allocation    lending.Allocation `json:"allocation"`
	Replayed      bool               `json:"replayed"`
	DPD           int                `json:"dpd"`
	Bucket        lending.Bucket     `json:"bucket"`
	Outstanding   valueobject.Money  `json:"outstanding"`
	CreditBalance valueobject.Money  `json:"credit_balance"`
	LoanStatus    lending.LoanStatus `json:"loan_status"`
}

// DelinquencyResult reports the outcome of a recompute or an operator action
type DelinquencyResult struct {
	LoanID         uuid.UUID                 `json:"loan_id"`
	DPD            int                       `json:"dpd"`
	From           lending.Bucket            `json:"from"`
	Bucket         lending.Bucket            `json:"bucket"`
	Changed        bool                      `json:"changed"`
	Trigger        lending.TransitionTrigger `json:"trigger"`
	PenaltyAccrued valueobject.Money         `json:"penalty_accrued"`
	LoanStatus     lending.LoanStatus        `json:"loan_status"`
	LegalCase      *LegalCaseResponse        `json:"legal_case,omitempty"`
}

// TransitionResponse is one entry of the bucket history
type TransitionResponse struct {
	ID         uuid.UUID                 `json:"id"`
	From       lending.Bucket            `json:"from"`
	To         lending.Bucket            `json:"to"`
	Trigger    lending.TransitionTrigger `json:"trigger"`
	DPD        int                       `json:"dpd"`
	OperatorID *uuid.UUID                `json:"operator_id,omitempty"`
	Reason     string                    `json:"reason,omitempty"`
	At         time.Time                 `json:"at"`
}

// BucketCount is one row of the bucket distribution report
type BucketCount struct {
	Bucket lending.Bucket `json:"bucket"`
	MinDPD int            `json:"min_dpd"`
	MaxDPD *int           `json:"max_dpd,omitempty"`
	Loans  int64          `json:"loans"`
}

// ToLoanResponse maps a loan to its read model. Installments are included
// when withSchedule is true.
func ToLoanResponse(l *lending.Loan, asOf time.Time, withSchedule bool) LoanResponse {
	resp := LoanResponse{
		ID:               l.ID,
		TenantID:         l.TenantID,
		LoanNumber:       l.LoanNumber,
		BorrowerID:       l.BorrowerID,
		Principal:        l.Terms.Principal,
		AnnualRateBps:    l.Terms.AnnualRateBps,
		TenureMonths:     l.Terms.TenureMonths,
		Method:           l.Terms.Method,
		DisbursementDate: l.Terms.DisbursementDate,
		ProcessingFee:    l.ProcessingFee,
		Status:           l.Status,
		DPD:              l.Delinquency.DPD,
		Bucket:           l.Delinquency.Bucket,
		BucketSince:      l.Delinquency.BucketSince,
		DaysInBucket:     l.Delinquency.DaysInBucket(asOf),
		CreditBalance:    l.CreditBalance,
		ClosedAt:         l.ClosedAt,
		Version:          l.Version,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
	if lc := l.OpenLegalCase(); lc != nil {
		resp.LegalCase = toLegalCaseResponse(lc)
	}
	if l.Schedule == nil {
		return resp
	}
	s := l.Schedule
	resp.EMI = s.EMI
	resp.Outstanding = &OutstandingResponse{
		Principal: s.OutstandingPrincipal(),
		Interest:  s.OutstandingInterest(),
		Penalty:   s.OutstandingPenalty(),
		Total:     s.TotalOutstanding(),
	}
	if withSchedule {
		resp.Installments = make([]InstallmentResponse, 0, len(s.Installments))
		for _, inst := range s.Installments {
			resp.Installments = append(resp.Installments, toInstallmentResponse(inst))
		}
	}
	return resp
}

func toInstallmentResponse(inst lending.Installment) InstallmentResponse {
	return InstallmentResponse{
		Seq:            inst.Seq,
		DueDate:        inst.DueDate,
		EMI:            inst.EMI,
		Principal:      inst.Principal,
		Interest:       inst.Interest,
		PaidPrincipal:  inst.PaidPrincipal,
		PaidInterest:   inst.PaidInterest,
		PaidAmount:     inst.PaidAmount(),
		PenaltyAccrued: inst.PenaltyAccrued,
		PenaltyPaid:    inst.PenaltyPaid,
		Outstanding:    inst.OutstandingAmount().MustAdd(inst.OutstandingPenalty()),
		Status:         inst.Status,
		PaidAt:         inst.PaidAt,
	}
}

func toLegalCaseResponse(lc *lending.LegalCase) *LegalCaseResponse {
	if lc == nil {
		return nil
	}
	return &LegalCaseResponse{
		ID:            lc.ID,
		CaseNumber:    lc.CaseNumber,
		Status:        lc.Status,
		Trigger:       lc.Trigger,
		OpenedDPD:     lc.OpenedDPD,
		OpenedAt:      lc.OpenedAt,
		OpenedBy:      lc.OpenedBy,
		ClosedAt:      lc.ClosedAt,
		ClosedBy:      lc.ClosedBy,
		ClosureReason: lc.ClosureReason,
	}
}

func toTransitionResponse(t lending.BucketTransition) TransitionResponse {
	return TransitionResponse{
		ID:         t.ID,
		From:       t.From,
		To:         t.To,
		Trigger:    t.Trigger,
		DPD:        t.DPD,
		OperatorID: t.OperatorID,
		Reason:     t.Reason,
		At:         t.At,
	}
}

func toDelinquencyResult(l *lending.Loan, out lending.Outcome) *DelinquencyResult {
	accrued := out.PenaltyAccrued
	if accrued.Currency() == "" {
		accrued = valueobject.Zero(l.Terms.Currency())
	}
	return &DelinquencyResult{
		LoanID:         l.ID,
		DPD:            out.DPD,
		From:           out.Decision.From,
		Bucket:         l.Bucket(),
		Changed:        out.Decision.Changed(),
		Trigger:        out.Decision.Trigger,
		PenaltyAccrued: accrued,
		LoanStatus:     l.Status,
		LegalCase:      toLegalCaseResponse(out.LegalCase),
	}
}
