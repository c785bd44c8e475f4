package lending

import (
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// InstallmentStatus represents the repayment state of one installment
type InstallmentStatus string

const (
	InstallmentPending       InstallmentStatus = "PENDING"        // not yet due, nothing paid
	InstallmentPartiallyPaid InstallmentStatus = "PARTIALLY_PAID" // not yet due, partly paid in advance
	InstallmentPaid          InstallmentStatus = "PAID"           // interest and principal fully paid
	InstallmentOverdue       InstallmentStatus = "OVERDUE"        // past due date with an unpaid remainder
)

// IsValid checks if the status is a valid InstallmentStatus
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentPending, InstallmentPartiallyPaid, InstallmentPaid, InstallmentOverdue:
		return true
	}
	return false
}

// Installment is one scheduled repayment. Scheduled amounts are fixed at
// generation time and only change when an advance payment re-projects the
// remaining schedule. Paid amounts only grow.
type Installment struct {
	Seq       int
	DueDate   time.Time
	EMI       valueobject.Money
	Principal valueobject.Money
	Interest  valueobject.Money

	PaidPrincipal valueobject.Money
	PaidInterest  valueobject.Money

	// PenaltyAccrued is the penalty committed so far; PenaltyAccruedThrough is
	// the date up to which it has been computed.
	PenaltyAccrued        valueobject.Money
	PenaltyPaid           valueobject.Money
	PenaltyAccruedThrough *time.Time

	Status InstallmentStatus
	PaidAt *time.Time
}

func newInstallment(seq int, due time.Time, principal, interest valueobject.Money) Installment {
	zero := valueobject.Zero(principal.Currency())
	return Installment{
		Seq:            seq,
		DueDate:        DateOf(due),
		EMI:            principal.MustAdd(interest),
		Principal:      principal,
		Interest:       interest,
		PaidPrincipal:  zero,
		PaidInterest:   zero,
		PenaltyAccrued: zero,
		PenaltyPaid:    zero,
		Status:         InstallmentPending,
	}
}

// OutstandingInterest returns the unpaid interest
func (i *Installment) OutstandingInterest() valueobject.Money {
	return i.Interest.MustSubtract(i.PaidInterest)
}

// OutstandingPrincipal returns the unpaid principal
func (i *Installment) OutstandingPrincipal() valueobject.Money {
	return i.Principal.MustSubtract(i.PaidPrincipal)
}

// OutstandingAmount returns unpaid interest plus unpaid principal
func (i *Installment) OutstandingAmount() valueobject.Money {
	return i.OutstandingInterest().MustAdd(i.OutstandingPrincipal())
}

// OutstandingPenalty returns committed but unpaid penalty
func (i *Installment) OutstandingPenalty() valueobject.Money {
	return i.PenaltyAccrued.MustSubtract(i.PenaltyPaid)
}

// PaidAmount returns everything paid against interest and principal
func (i *Installment) PaidAmount() valueobject.Money {
	return i.PaidInterest.MustAdd(i.PaidPrincipal)
}

// IsSettled returns true once interest and principal are fully paid
func (i *Installment) IsSettled() bool {
	return !i.OutstandingAmount().IsPositive()
}

// IsDue returns true when the due date is on or before asOf
func (i *Installment) IsDue(asOf time.Time) bool {
	return !i.DueDate.After(DateOf(asOf))
}

// IsPastDue returns true when the installment is unsettled after its due date
func (i *Installment) IsPastDue(asOf time.Time) bool {
	return !i.IsSettled() && DateOf(asOf).After(i.DueDate)
}

func (i *Installment) refreshStatus(asOf time.Time) {
	switch {
	case i.IsSettled():
		if i.Status != InstallmentPaid {
			paidAt := DateOf(asOf)
			i.PaidAt = &paidAt
		}
		i.Status = InstallmentPaid
	case i.IsPastDue(asOf):
		i.Status = InstallmentOverdue
	case i.PaidAmount().IsPositive():
		i.Status = InstallmentPartiallyPaid
	default:
		i.Status = InstallmentPending
	}
}

func (i Installment) clone() Installment {
	if i.PenaltyAccruedThrough != nil {
		t := *i.PenaltyAccruedThrough
		i.PenaltyAccruedThrough = &t
	}
	if i.PaidAt != nil {
		t := *i.PaidAt
		i.PaidAt = &t
	}
	return i
}
