package lending

import (
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// Event type names
const (
	EventTypeLoanDisbursed    = "LoanDisbursed"
	EventTypePaymentAllocated = "PaymentAllocated"
	EventTypeBucketChanged    = "BucketChanged"
	EventTypeLegalCaseOpened  = "LegalCaseOpened"
	EventTypeLegalCaseClosed  = "LegalCaseClosed"
	EventTypeLoanRecovered    = "LoanRecovered"
	EventTypeLoanWrittenOff   = "LoanWrittenOff"
)

// LoanDisbursedEvent is raised when a loan is disbursed and its schedule generated
type LoanDisbursedEvent struct {
	shared.BaseDomainEvent
	LoanID           uuid.UUID         `json:"loan_id"`
	LoanNumber       string            `json:"loan_number"`
	BorrowerID       uuid.UUID         `json:"borrower_id"`
	Principal        valueobject.Money `json:"principal"`
	AnnualRateBps    int64             `json:"annual_rate_bps"`
	TenureMonths     int               `json:"tenure_months"`
	Method           InterestMethod    `json:"method"`
	EMI              valueobject.Money `json:"emi"`
	ProcessingFee    valueobject.Money `json:"processing_fee"`
	DisbursementDate time.Time         `json:"disbursement_date"`
}

// NewLoanDisbursedEvent creates a LoanDisbursedEvent
func NewLoanDisbursedEvent(l *Loan) *LoanDisbursedEvent {
	return &LoanDisbursedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeLoanDisbursed, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:           l.ID,
		LoanNumber:       l.LoanNumber,
		BorrowerID:       l.BorrowerID,
		Principal:        l.Terms.Principal,
		AnnualRateBps:    l.Terms.AnnualRateBps,
		TenureMonths:     l.Terms.TenureMonths,
		Method:           l.Terms.Method,
		EMI:              l.Schedule.EMI,
		ProcessingFee:    l.ProcessingFee,
		DisbursementDate: l.Terms.DisbursementDate,
	}
}

// PaymentAllocatedEvent is raised after a payment is split across the schedule
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	LoanID      uuid.UUID         `json:"loan_id"`
	LoanNumber  string            `json:"loan_number"`
	PaymentID   uuid.UUID         `json:"payment_id"`
	Reference   string            `json:"reference"`
	Amount      valueobject.Money `json:"amount"`
	ReceivedAt  time.Time         `json:"received_at"`
	Allocation  Allocation        `json:"allocation"`
	Outstanding valueobject.Money `json:"outstanding"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(l *Loan, p *Payment) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		PaymentID:       p.ID,
		Reference:       p.Reference,
		Amount:          p.Amount,
		ReceivedAt:      p.ReceivedAt,
		Allocation:      p.Allocation,
		Outstanding:     l.Outstanding(),
	}
}

// BucketChangedEvent is raised when a loan moves between buckets
type BucketChangedEvent struct {
	shared.BaseDomainEvent
	LoanID     uuid.UUID         `json:"loan_id"`
	LoanNumber string            `json:"loan_number"`
	BorrowerID uuid.UUID         `json:"borrower_id"`
	From       Bucket            `json:"from"`
	To         Bucket            `json:"to"`
	Trigger    TransitionTrigger `json:"trigger"`
	DPD        int               `json:"dpd"`
	Overdue    valueobject.Money `json:"overdue"`
	OperatorID *uuid.UUID        `json:"operator_id,omitempty"`
	At         time.Time         `json:"at"`
}

// NewBucketChangedEvent creates a BucketChangedEvent
func NewBucketChangedEvent(l *Loan, d Decision, in TransitionInput) *BucketChangedEvent {
	return &BucketChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBucketChanged, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		BorrowerID:      l.BorrowerID,
		From:            d.From,
		To:              d.To,
		Trigger:         d.Trigger,
		DPD:             in.DPD,
		Overdue:         l.Schedule.OverdueAmount(in.At),
		OperatorID:      in.OperatorID,
		At:              in.At,
	}
}

// IsEscalation returns true when the loan moved to a more severe delinquency bucket
func (e *BucketChangedEvent) IsEscalation() bool {
	return e.To.Rank() > e.From.Rank()
}

// LegalCaseOpenedEvent is raised when a new legal case is opened
type LegalCaseOpenedEvent struct {
	shared.BaseDomainEvent
	LoanID      uuid.UUID         `json:"loan_id"`
	LoanNumber  string            `json:"loan_number"`
	BorrowerID  uuid.UUID         `json:"borrower_id"`
	CaseID      uuid.UUID         `json:"case_id"`
	CaseNumber  string            `json:"case_number"`
	OpenedDPD   int               `json:"opened_dpd"`
	Trigger     TransitionTrigger `json:"trigger"`
	Outstanding valueobject.Money `json:"outstanding"`
	OpenedAt    time.Time         `json:"opened_at"`
}

// NewLegalCaseOpenedEvent creates a LegalCaseOpenedEvent
func NewLegalCaseOpenedEvent(l *Loan, lc *LegalCase) *LegalCaseOpenedEvent {
	return &LegalCaseOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLegalCaseOpened, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		BorrowerID:      l.BorrowerID,
		CaseID:          lc.ID,
		CaseNumber:      lc.CaseNumber,
		OpenedDPD:       lc.OpenedDPD,
		Trigger:         lc.Trigger,
		Outstanding:     l.Outstanding(),
		OpenedAt:        lc.OpenedAt,
	}
}

// LegalCaseClosedEvent is raised when an operator closes a legal case
type LegalCaseClosedEvent struct {
	shared.BaseDomainEvent
	LoanID        uuid.UUID  `json:"loan_id"`
	CaseID        uuid.UUID  `json:"case_id"`
	CaseNumber    string     `json:"case_number"`
	ClosureReason string     `json:"closure_reason"`
	ClosedBy      *uuid.UUID `json:"closed_by,omitempty"`
	ClosedAt      time.Time  `json:"closed_at"`
}

// NewLegalCaseClosedEvent creates a LegalCaseClosedEvent
func NewLegalCaseClosedEvent(l *Loan, lc *LegalCase) *LegalCaseClosedEvent {
	return &LegalCaseClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLegalCaseClosed, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:          l.ID,
		CaseID:          lc.ID,
		CaseNumber:      lc.CaseNumber,
		ClosureReason:   lc.ClosureReason,
		ClosedBy:        lc.ClosedBy,
		ClosedAt:        *lc.ClosedAt,
	}
}

// LoanRecoveredEvent is raised when the outstanding balance reaches zero
type LoanRecoveredEvent struct {
	shared.BaseDomainEvent
	LoanID        uuid.UUID         `json:"loan_id"`
	LoanNumber    string            `json:"loan_number"`
	CreditBalance valueobject.Money `json:"credit_balance"`
	ClosedAt      time.Time         `json:"closed_at"`
}

// NewLoanRecoveredEvent creates a LoanRecoveredEvent
func NewLoanRecoveredEvent(l *Loan) *LoanRecoveredEvent {
	return &LoanRecoveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoanRecovered, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		CreditBalance:   l.CreditBalance,
		ClosedAt:        *l.ClosedAt,
	}
}

// LoanWrittenOffEvent is raised when an operator writes a loan off
type LoanWrittenOffEvent struct {
	shared.BaseDomainEvent
	LoanID      uuid.UUID         `json:"loan_id"`
	LoanNumber  string            `json:"loan_number"`
	From        Bucket            `json:"from"`
	Outstanding valueobject.Money `json:"outstanding"`
	OperatorID  *uuid.UUID        `json:"operator_id,omitempty"`
	Reason      string            `json:"reason"`
	At          time.Time         `json:"at"`
}

// NewLoanWrittenOffEvent creates a LoanWrittenOffEvent
func NewLoanWrittenOffEvent(l *Loan, in TransitionInput) *LoanWrittenOffEvent {
	var from Bucket
	if n := len(l.pendingTransitions); n > 0 {
		from = l.pendingTransitions[n-1].From
	}
	return &LoanWrittenOffEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoanWrittenOff, AggregateTypeLoan, l.ID, l.TenantID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		From:            from,
		Outstanding:     l.Outstanding(),
		OperatorID:      in.OperatorID,
		Reason:          in.Reason,
		At:              in.At,
	}
}
