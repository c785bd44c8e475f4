package lending

import (
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// AdvancePolicy decides what an advance principal payment does to the rest of the schedule
type AdvancePolicy string

const (
	// AdvanceReduceTenure keeps the EMI and lets the schedule end earlier
	AdvanceReduceTenure AdvancePolicy = "REDUCE_TENURE"
	// AdvanceReduceEMI keeps the tenure and recomputes a smaller EMI
	AdvanceReduceEMI AdvancePolicy = "REDUCE_EMI"
)

// IsValid checks if the advance policy is supported
func (p AdvancePolicy) IsValid() bool {
	return p == AdvanceReduceTenure || p == AdvanceReduceEMI
}

// PaymentAllocator splits a payment across a schedule in waterfall order:
// outstanding penalty (oldest first), then interest of due installments
// (oldest first), then principal of due installments (oldest first), then
// any remainder as advance principal.
//
// An installment is due when its due date is on or before the payment
// date. If none is due, the oldest unsettled installment is treated as due
// so an early EMI pays that installment rather than prepaying principal.
type PaymentAllocator struct {
	policy AdvancePolicy
}

// NewPaymentAllocator creates an allocator with the given advance policy
func NewPaymentAllocator(policy AdvancePolicy) (*PaymentAllocator, error) {
	if !policy.IsValid() {
		return nil, invalidTerms("unsupported advance policy %q", policy)
	}
	return &PaymentAllocator{policy: policy}, nil
}

// Policy returns the advance policy
func (a *PaymentAllocator) Policy() AdvancePolicy {
	return a.policy
}

// Allocate applies p to s. On success s is updated in place and the
// allocation is returned; on error s is left exactly as it was.
//
// penaltyDue must come from PenaltyCalculator.Due on the same schedule;
// its lines are committed onto the installments as they are paid. The
// allocation is evaluated as of the later of the payment date and
// penaltyDue.AsOf.
func (a *PaymentAllocator) Allocate(p *Payment, s *Schedule, penaltyDue PenaltyDue) (Allocation, error) {
	if p == nil || !p.Amount.IsPositive() {
		return Allocation{}, invalidPayment("payment amount must be positive")
	}
	if p.Amount.Currency() != s.Currency() {
		return Allocation{}, newCurrencyMismatch(p.Amount.Currency(), s.Currency())
	}

	work := s.Clone()
	asOf := DateOf(p.ReceivedAt)
	if penaltyDue.AsOf.After(asOf) {
		asOf = DateOf(penaltyDue.AsOf)
	}
	commitPenalty(work, penaltyDue)
	if work.IsSettled() {
		return Allocation{}, loanClosed()
	}

	alloc := newAllocation(s.Currency())
	remaining := p.Amount

	for _, line := range penaltyDue.Lines {
		inst, ok := work.Installment(line.Seq)
		if !ok {
			continue
		}
		pay := remaining.Min(inst.OutstandingPenalty())
		inst.PenaltyPaid = inst.PenaltyPaid.MustAdd(pay)
		remaining = remaining.MustSubtract(pay)
		alloc.add(inst.Seq, ComponentPenalty, pay)
	}

	due := dueInstallments(work, asOf)
	for _, inst := range due {
		pay := remaining.Min(inst.OutstandingInterest())
		inst.PaidInterest = inst.PaidInterest.MustAdd(pay)
		remaining = remaining.MustSubtract(pay)
		alloc.add(inst.Seq, ComponentInterest, pay)
	}
	for _, inst := range due {
		pay := remaining.Min(inst.OutstandingPrincipal())
		inst.PaidPrincipal = inst.PaidPrincipal.MustAdd(pay)
		remaining = remaining.MustSubtract(pay)
		alloc.add(inst.Seq, ComponentPrincipal, pay)
	}

	if remaining.IsPositive() {
		if err := a.applyAdvance(work, remaining, &alloc); err != nil {
			return Allocation{}, err
		}
	}

	work.RefreshStatuses(asOf)
	*s = *work
	return alloc, nil
}

// dueInstallments returns unsettled installments due on or before asOf,
// oldest first, or the oldest unsettled installment if none is due.
func dueInstallments(s *Schedule, asOf time.Time) []*Installment {
	var due []*Installment
	for i := range s.Installments {
		inst := &s.Installments[i]
		if !inst.IsSettled() && inst.IsDue(asOf) {
			due = append(due, inst)
		}
	}
	if len(due) == 0 {
		if inst, ok := s.OldestUnpaid(); ok {
			due = append(due, inst)
		}
	}
	return due
}

// commitPenalty makes each line's amount the installment's outstanding
// penalty as of the line date. The accrued-through date only moves forward.
func commitPenalty(s *Schedule, penaltyDue PenaltyDue) {
	for _, line := range penaltyDue.Lines {
		inst, ok := s.Installment(line.Seq)
		if !ok {
			continue
		}
		inst.PenaltyAccrued = inst.PenaltyPaid.MustAdd(line.Amount)
		markAccruedThrough(inst, DateOf(penaltyDue.AsOf))
	}
}

// applyAdvance applies amount to future principal. An amount that covers
// all outstanding principal forecloses the loan: remaining interest is
// waived and the excess becomes credit.
func (a *PaymentAllocator) applyAdvance(s *Schedule, amount valueobject.Money, alloc *Allocation) error {
	first, ok := s.OldestUnpaid()
	if !ok {
		alloc.add(0, ComponentCredit, amount)
		return nil
	}

	outstanding := s.OutstandingPrincipal()
	if covers, _ := amount.GreaterThanOrEqual(outstanding); covers {
		for i := first.Seq - 1; i < len(s.Installments); i++ {
			inst := &s.Installments[i]
			if inst.OutstandingPrincipal().IsPositive() {
				alloc.add(inst.Seq, ComponentAdvance, inst.OutstandingPrincipal())
			}
			inst.PaidPrincipal = inst.Principal
			inst.Interest = inst.PaidInterest
			inst.EMI = inst.Principal.MustAdd(inst.Interest)
		}
		alloc.add(0, ComponentCredit, amount.MustSubtract(outstanding))
		return nil
	}

	alloc.add(first.Seq, ComponentAdvance, amount)
	if s.Terms.Method == MethodFlatRate {
		prepayFlat(s, first.Seq, amount)
		return nil
	}
	return a.reproject(s, first.Seq, amount)
}

// prepayFlat applies an advance to flat-rate principal oldest first.
// Flat-rate interest is fixed at origination and is not re-projected.
func prepayFlat(s *Schedule, seq int, amount valueobject.Money) {
	for i := seq - 1; i < len(s.Installments) && amount.IsPositive(); i++ {
		inst := &s.Installments[i]
		pay := amount.Min(inst.OutstandingPrincipal())
		inst.PaidPrincipal = inst.PaidPrincipal.MustAdd(pay)
		amount = amount.MustSubtract(pay)
	}
}

// reproject lowers the outstanding balance from installment seq by amount
// and recomputes interest on the reduced balance for every installment
// from seq onward.
//
// The advance is recorded as paid principal on installment seq, whose
// scheduled principal grows by the same amount, so the principal-sum
// invariant holds. Under REDUCE_TENURE the EMI is kept and trailing
// installments collapse to zero; under REDUCE_EMI the EMI is recomputed
// over the remaining installments.
func (a *PaymentAllocator) reproject(s *Schedule, seq int, amount valueobject.Money) error {
	r := s.Terms.MonthlyRate()
	balance := valueobject.Zero(s.Currency())
	for i := seq - 1; i < len(s.Installments); i++ {
		balance = balance.MustAdd(s.Installments[i].OutstandingPrincipal())
	}
	balance = balance.MustSubtract(amount)

	head := &s.Installments[seq-1]
	advanced := head.PaidPrincipal.MustAdd(amount)

	emi := s.EMI
	if a.policy == AdvanceReduceEMI {
		var err error
		if emi, err = ComputeEMI(balance, r, s.Terms.TenureMonths-seq+1); err != nil {
			return err
		}
	}

	rebuilt, err := amortize(s.Terms, seq, balance, emi, r)
	if err != nil {
		return err
	}
	for idx, inst := range rebuilt {
		target := &s.Installments[seq-1+idx]
		target.Principal = inst.Principal
		target.Interest = inst.Interest
		if idx == 0 {
			target.Principal = target.Principal.MustAdd(advanced)
			target.PaidPrincipal = advanced
		}
		target.EMI = target.Principal.MustAdd(target.Interest)
	}
	s.EMI = emi
	return nil
}
