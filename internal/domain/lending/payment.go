package lending

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// MaxReferenceLength bounds the external payment reference
const MaxReferenceLength = 64

// Component names the part of a schedule a payment amount was applied to
type Component string

const (
	ComponentPenalty   Component = "PENALTY"
	ComponentInterest  Component = "INTEREST"
	ComponentPrincipal Component = "PRINCIPAL"
	ComponentAdvance   Component = "ADVANCE"
	ComponentCredit    Component = "CREDIT"
)

// AllocationLine records one slice of a payment applied to one installment.
// Credit lines carry Seq 0.
type AllocationLine struct {
	Seq       int               `json:"seq"`
	Component Component         `json:"component"`
	Amount    valueobject.Money `json:"amount"`
}

// Allocation is the split of one payment across the waterfall.
// Penalty + Interest + Principal + Advance always equals the payment amount;
// Credit is the part of Advance left over after the loan was fully repaid.
type Allocation struct {
	Penalty   valueobject.Money `json:"penalty"`
	Interest  valueobject.Money `json:"interest"`
	Principal valueobject.Money `json:"principal"`
	Advance   valueobject.Money `json:"advance"`
	Credit    valueobject.Money `json:"credit"`
	Lines     []AllocationLine  `json:"lines"`
}

func newAllocation(currency valueobject.Currency) Allocation {
	zero := valueobject.Zero(currency)
	return Allocation{Penalty: zero, Interest: zero, Principal: zero, Advance: zero, Credit: zero}
}

// Total returns the amount allocated
func (a Allocation) Total() valueobject.Money {
	return a.Penalty.MustAdd(a.Interest).MustAdd(a.Principal).MustAdd(a.Advance)
}

func (a *Allocation) add(seq int, c Component, amount valueobject.Money) {
	if !amount.IsPositive() {
		return
	}
	switch c {
	case ComponentPenalty:
		a.Penalty = a.Penalty.MustAdd(amount)
	case ComponentInterest:
		a.Interest = a.Interest.MustAdd(amount)
	case ComponentPrincipal:
		a.Principal = a.Principal.MustAdd(amount)
	case ComponentAdvance:
		a.Advance = a.Advance.MustAdd(amount)
	case ComponentCredit:
		a.Advance = a.Advance.MustAdd(amount)
		a.Credit = a.Credit.MustAdd(amount)
	}
	a.Lines = append(a.Lines, AllocationLine{Seq: seq, Component: c, Amount: amount})
}

// Payment is a receipt against a loan, identified by an external reference
// unique per loan.
type Payment struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	LoanID     uuid.UUID
	Reference  string
	Amount     valueobject.Money
	ReceivedAt time.Time
	Allocation Allocation
	RecordedAt time.Time
}

// NewPayment validates and creates a payment
func NewPayment(tenantID, loanID uuid.UUID, reference string, amount valueobject.Money, receivedAt time.Time) (*Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, invalidPayment("payment reference cannot be empty")
	}
	if len(reference) > MaxReferenceLength {
		return nil, invalidPayment("payment reference cannot exceed %d characters", MaxReferenceLength)
	}
	if !amount.IsPositive() {
		return nil, invalidPayment("payment amount must be positive, got %s", amount)
	}
	if receivedAt.IsZero() {
		return nil, invalidPayment("payment date is required")
	}
	return &Payment{
		ID:         uuid.New(),
		TenantID:   tenantID,
		LoanID:     loanID,
		Reference:  reference,
		Amount:     amount,
		ReceivedAt: receivedAt,
		RecordedAt: time.Now(),
	}, nil
}
