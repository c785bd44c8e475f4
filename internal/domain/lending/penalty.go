package lending

import (
	"sort"
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DailyPenalty returns overdue × annualRate / 365 × days, rounded half-up to
// the minor unit. It is simple interest on the overdue amount; penalty is
// never charged on penalty.
func DailyPenalty(overdue valueobject.Money, annualRateBps int64, days int) valueobject.Money {
	if days <= 0 || !overdue.IsPositive() || annualRateBps <= 0 {
		return valueobject.Zero(overdue.Currency())
	}
	factor := decimal.NewFromInt(annualRateBps * int64(days)).DivRound(bpsPerUnit.Mul(daysPerYear), rateDivPlaces)
	return overdue.MustMultiply(factor)
}

// ProcessingFee returns principal × feeRate, charged once at disbursement
func ProcessingFee(principal valueobject.Money, feeRateBps int64) valueobject.Money {
	if feeRateBps <= 0 {
		return valueobject.Zero(principal.Currency())
	}
	return principal.MustMultiply(BpsToFraction(feeRateBps))
}

// PenaltyLine is the outstanding penalty attributed to one installment
type PenaltyLine struct {
	Seq    int
	Amount valueobject.Money
}

// PenaltyDue is the penalty owed on a schedule as of a date, oldest installment first
type PenaltyDue struct {
	AsOf     time.Time
	Lines    []PenaltyLine
	currency valueobject.Currency
}

// Total sums all penalty lines
func (p PenaltyDue) Total() valueobject.Money {
	total := valueobject.Zero(p.currency)
	for _, l := range p.Lines {
		total = total.MustAdd(l.Amount)
	}
	return total
}

// PenaltyCalculator computes late-payment penalty on overdue installments
type PenaltyCalculator struct {
	annualRateBps int64
}

// NewPenaltyCalculator creates a calculator for the given annual penalty rate
func NewPenaltyCalculator(annualRateBps int64) (*PenaltyCalculator, error) {
	if annualRateBps < 0 || annualRateBps > MaxAnnualRateBps {
		return nil, invalidTerms("penalty rate must be between 0 and %d bps, got %d", MaxAnnualRateBps, annualRateBps)
	}
	return &PenaltyCalculator{annualRateBps: annualRateBps}, nil
}

// RateBps returns the configured annual penalty rate
func (c *PenaltyCalculator) RateBps() int64 {
	return c.annualRateBps
}

// Due returns the outstanding penalty per installment as of asOf without
// modifying the schedule. Each line is the committed unpaid penalty plus
// penalty accrued since the last commit on the installment's overdue amount.
func (c *PenaltyCalculator) Due(s *Schedule, asOf time.Time) PenaltyDue {
	asOf = DateOf(asOf)
	due := PenaltyDue{AsOf: asOf, currency: s.Currency()}
	for i := range s.Installments {
		inst := &s.Installments[i]
		amount := inst.OutstandingPenalty().MustAdd(c.fresh(inst, asOf))
		if amount.IsPositive() {
			due.Lines = append(due.Lines, PenaltyLine{Seq: inst.Seq, Amount: amount})
		}
	}
	sort.Slice(due.Lines, func(a, b int) bool { return due.Lines[a].Seq < due.Lines[b].Seq })
	return due
}

// Accrue commits penalty accrued through asOf onto the schedule's
// installments and returns the newly committed total. Calling it twice
// for the same date commits nothing the second time, and an asOf before
// an installment's accrued-through date leaves that installment alone.
func (c *PenaltyCalculator) Accrue(s *Schedule, asOf time.Time) valueobject.Money {
	asOf = DateOf(asOf)
	total := valueobject.Zero(s.Currency())
	for i := range s.Installments {
		inst := &s.Installments[i]
		fresh := c.fresh(inst, asOf)
		if inst.IsPastDue(asOf) {
			markAccruedThrough(inst, asOf)
		}
		if fresh.IsPositive() {
			inst.PenaltyAccrued = inst.PenaltyAccrued.MustAdd(fresh)
			total = total.MustAdd(fresh)
		}
	}
	return total
}

// fresh is the penalty accrued on inst between its last commit (or due
// date) and asOf, on the amount currently overdue.
func (c *PenaltyCalculator) fresh(inst *Installment, asOf time.Time) valueobject.Money {
	if !inst.IsPastDue(asOf) {
		return valueobject.Zero(inst.Principal.Currency())
	}
	from := inst.DueDate
	if inst.PenaltyAccruedThrough != nil && inst.PenaltyAccruedThrough.After(from) {
		from = *inst.PenaltyAccruedThrough
	}
	return DailyPenalty(inst.OutstandingAmount(), c.annualRateBps, DaysBetween(from, asOf))
}

// markAccruedThrough moves the installment's accrued-through date forward
// to asOf. It never moves it back.
func markAccruedThrough(inst *Installment, asOf time.Time) {
	if inst.PenaltyAccruedThrough != nil && !asOf.After(*inst.PenaltyAccruedThrough) {
		return
	}
	through := asOf
	inst.PenaltyAccruedThrough = &through
}
