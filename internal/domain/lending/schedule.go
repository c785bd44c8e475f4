package lending

import (
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// Schedule is the ordered list of installments for one loan together with
// the terms it was generated from.
//
// Invariant: the scheduled principal of all installments sums to the loan
// principal exactly, before and after any re-projection.
type Schedule struct {
	Terms        LoanTerms
	EMI          valueobject.Money
	Installments []Installment
}

// NewSchedule reconstitutes a schedule from stored installments, checking
// the sequencing and principal invariants.
func NewSchedule(terms LoanTerms, emi valueobject.Money, installments []Installment) (*Schedule, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, invalidTerms("schedule must have at least one installment")
	}
	total := valueobject.Zero(terms.Currency())
	for idx := range installments {
		inst := &installments[idx]
		if inst.Seq != idx+1 {
			return nil, invalidTerms("installment %d is out of sequence", inst.Seq)
		}
		if idx > 0 && inst.DueDate.Before(installments[idx-1].DueDate) {
			return nil, invalidTerms("installment %d is due before installment %d", inst.Seq, inst.Seq-1)
		}
		if inst.Principal.Currency() != terms.Currency() {
			return nil, invalidTerms("installment %d currency %s differs from loan currency", inst.Seq, inst.Principal.Currency())
		}
		var err error
		if total, err = total.Add(inst.Principal); err != nil {
			return nil, invalidTerms("installment principal overflow: %v", err)
		}
	}
	if !total.Equals(terms.Principal) {
		return nil, invalidTerms("scheduled principal %s does not match loan principal %s", total, terms.Principal)
	}
	return &Schedule{Terms: terms, EMI: emi, Installments: installments}, nil
}

// Currency returns the schedule's currency
func (s *Schedule) Currency() valueobject.Currency {
	return s.Terms.Currency()
}

// Clone returns a deep copy that can be mutated without affecting s
func (s *Schedule) Clone() *Schedule {
	out := &Schedule{Terms: s.Terms, EMI: s.EMI, Installments: make([]Installment, len(s.Installments))}
	for i := range s.Installments {
		out.Installments[i] = s.Installments[i].clone()
	}
	return out
}

// Installment returns the installment with the given sequence number
func (s *Schedule) Installment(seq int) (*Installment, bool) {
	if seq < 1 || seq > len(s.Installments) {
		return nil, false
	}
	return &s.Installments[seq-1], true
}

// OldestUnpaid returns the earliest installment with interest or principal outstanding
func (s *Schedule) OldestUnpaid() (*Installment, bool) {
	for i := range s.Installments {
		if !s.Installments[i].IsSettled() {
			return &s.Installments[i], true
		}
	}
	return nil, false
}

// NextDue returns the earliest unsettled installment due after asOf
func (s *Schedule) NextDue(asOf time.Time) (*Installment, bool) {
	for i := range s.Installments {
		inst := &s.Installments[i]
		if !inst.IsSettled() && !inst.IsDue(asOf) {
			return inst, true
		}
	}
	return nil, false
}

// ScheduledPrincipal sums the scheduled principal of every installment
func (s *Schedule) ScheduledPrincipal() valueobject.Money {
	return s.sum(func(i *Installment) valueobject.Money { return i.Principal })
}

// ScheduledInterest sums the scheduled interest of every installment
func (s *Schedule) ScheduledInterest() valueobject.Money {
	return s.sum(func(i *Installment) valueobject.Money { return i.Interest })
}

// OutstandingPrincipal sums unpaid principal
func (s *Schedule) OutstandingPrincipal() valueobject.Money {
	return s.sum((*Installment).OutstandingPrincipal)
}

// OutstandingInterest sums unpaid interest
func (s *Schedule) OutstandingInterest() valueobject.Money {
	return s.sum((*Installment).OutstandingInterest)
}

// OutstandingPenalty sums committed unpaid penalty
func (s *Schedule) OutstandingPenalty() valueobject.Money {
	return s.sum((*Installment).OutstandingPenalty)
}

// TotalOutstanding is principal, interest and committed penalty still owed
func (s *Schedule) TotalOutstanding() valueobject.Money {
	return s.OutstandingPrincipal().MustAdd(s.OutstandingInterest()).MustAdd(s.OutstandingPenalty())
}

// OverdueAmount sums the unpaid interest and principal of installments past due at asOf
func (s *Schedule) OverdueAmount(asOf time.Time) valueobject.Money {
	return s.sum(func(i *Installment) valueobject.Money {
		if i.IsPastDue(asOf) {
			return i.OutstandingAmount()
		}
		return valueobject.Zero(s.Currency())
	})
}

// IsSettled returns true when nothing, penalty included, remains owed
func (s *Schedule) IsSettled() bool {
	return !s.TotalOutstanding().IsPositive()
}

// RefreshStatuses recomputes every installment's status as of the given date
func (s *Schedule) RefreshStatuses(asOf time.Time) {
	for i := range s.Installments {
		s.Installments[i].refreshStatus(asOf)
	}
}

func (s *Schedule) sum(f func(*Installment) valueobject.Money) valueobject.Money {
	total := valueobject.Zero(s.Currency())
	for i := range s.Installments {
		total = total.MustAdd(f(&s.Installments[i]))
	}
	return total
}
