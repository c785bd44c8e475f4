package lending

import (
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ScheduleGenerator builds repayment schedules from loan terms
type ScheduleGenerator struct{}

// NewScheduleGenerator creates a ScheduleGenerator
func NewScheduleGenerator() *ScheduleGenerator {
	return &ScheduleGenerator{}
}

// Generate produces the installment schedule for terms.
//
// Installment k falls due k calendar months after disbursement, clamped to
// the last day of shorter months. The final installment absorbs every
// rounding residual so scheduled principal sums to the loan principal.
func (g *ScheduleGenerator) Generate(terms LoanTerms) (*Schedule, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	terms.DisbursementDate = DateOf(terms.DisbursementDate)
	switch terms.Method {
	case MethodFlatRate:
		return generateFlat(terms)
	default:
		return generateReducing(terms)
	}
}

// ComputeEMI returns the equated monthly installment
//
//	EMI = P × r × (1+r)^n / ((1+r)^n − 1)
//
// rounded half-up to the minor unit. A zero rate falls back to P / n.
func ComputeEMI(principal valueobject.Money, monthlyRate decimal.Decimal, n int) (valueobject.Money, error) {
	if n <= 0 {
		return valueobject.Money{}, invalidTerms("tenure must be positive, got %d months", n)
	}
	p := principal.Amount()
	if monthlyRate.IsZero() {
		return valueobject.NewMoneyFromDecimal(p.DivRound(decimal.NewFromInt(int64(n)), 8), principal.Currency())
	}
	growth := decimalOne.Add(monthlyRate).Pow(decimal.NewFromInt(int64(n)))
	emi := p.Mul(monthlyRate).Mul(growth).DivRound(growth.Sub(decimalOne), 8)
	return valueobject.NewMoneyFromDecimal(emi, principal.Currency())
}

func generateReducing(terms LoanTerms) (*Schedule, error) {
	r := terms.MonthlyRate()
	emi, err := ComputeEMI(terms.Principal, r, terms.TenureMonths)
	if err != nil {
		return nil, err
	}
	installments, err := amortize(terms, 1, terms.Principal, emi, r)
	if err != nil {
		return nil, err
	}
	return &Schedule{Terms: terms, EMI: emi, Installments: installments}, nil
}

// amortize lays out installments from seq onward for a balance paid down
// by a fixed emi. The last installment, or the one that exhausts the
// balance, takes the remaining principal. Installments after the balance
// is exhausted carry zero amounts.
func amortize(terms LoanTerms, seq int, balance, emi valueobject.Money, r decimal.Decimal) ([]Installment, error) {
	zero := valueobject.Zero(balance.Currency())
	out := make([]Installment, 0, terms.TenureMonths-seq+1)
	for k := seq; k <= terms.TenureMonths; k++ {
		due := AddMonths(terms.DisbursementDate, k)
		if balance.IsZero() {
			out = append(out, newInstallment(k, due, zero, zero))
			continue
		}
		interest, err := balance.Multiply(r)
		if err != nil {
			return nil, err
		}
		principal := emi.MustSubtract(interest)
		if principal.IsNegative() {
			return nil, invalidTerms("installment %d does not cover its interest", k)
		}
		if exceeds, _ := principal.GreaterThan(balance); exceeds || k == terms.TenureMonths {
			principal = balance
		}
		out = append(out, newInstallment(k, due, principal, interest))
		balance = balance.MustSubtract(principal)
	}
	return out, nil
}

// generateFlat charges interest on the original principal for the whole
// tenure and spreads principal and interest evenly. Per-period parts are
// truncated so the final installment's residual is never negative.
func generateFlat(terms LoanTerms) (*Schedule, error) {
	n := decimal.NewFromInt(int64(terms.TenureMonths))
	years := n.DivRound(decimal.NewFromInt(12), rateDivPlaces)
	totalInterest, err := terms.Principal.Multiply(terms.AnnualRate().Mul(years))
	if err != nil {
		return nil, err
	}

	perPrincipal := splitTruncated(terms.Principal, terms.TenureMonths)
	perInterest := splitTruncated(totalInterest, terms.TenureMonths)

	installments := make([]Installment, 0, terms.TenureMonths)
	principalLeft, interestLeft := terms.Principal, totalInterest
	for k := 1; k <= terms.TenureMonths; k++ {
		principal, interest := perPrincipal, perInterest
		if k == terms.TenureMonths {
			principal, interest = principalLeft, interestLeft
		}
		installments = append(installments, newInstallment(k, AddMonths(terms.DisbursementDate, k), principal, interest))
		principalLeft = principalLeft.MustSubtract(principal)
		interestLeft = interestLeft.MustSubtract(interest)
	}
	return &Schedule{Terms: terms, EMI: perPrincipal.MustAdd(perInterest), Installments: installments}, nil
}

func splitTruncated(m valueobject.Money, n int) valueobject.Money {
	parts, _ := m.Allocate(n)
	return parts[len(parts)-1]
}
