package lending

import (
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InterestMethod selects how a schedule's interest is computed
type InterestMethod string

const (
	MethodReducingBalance InterestMethod = "REDUCING_BALANCE" // EMI on the declining principal
	MethodFlatRate        InterestMethod = "FLAT_RATE"        // interest on the original principal for the whole tenure
)

// IsValid checks if the interest method is supported
func (m InterestMethod) IsValid() bool {
	return m == MethodReducingBalance || m == MethodFlatRate
}

// MaxTenureMonths caps tenure at 40 years
const MaxTenureMonths = 480

// MaxAnnualRateBps caps the nominal annual rate at 100%
const MaxAnnualRateBps = 10000

var (
	bpsPerUnit    = decimal.NewFromInt(10000)
	bpsPerMonth   = decimal.NewFromInt(120000)
	daysPerYear   = decimal.NewFromInt(365)
	decimalOne    = decimal.NewFromInt(1)
	rateDivPlaces = int32(20)
)

// LoanTerms are the immutable commercial terms a schedule is generated from.
// Rates are expressed in basis points (2400 = 24% per annum).
type LoanTerms struct {
	Principal        valueobject.Money
	AnnualRateBps    int64
	TenureMonths     int
	Method           InterestMethod
	DisbursementDate time.Time
}

// Validate checks the terms, returning an InvalidTerms error on the first problem
func (t LoanTerms) Validate() error {
	if !t.Principal.IsPositive() {
		return invalidTerms("principal must be positive, got %s", t.Principal)
	}
	if t.TenureMonths <= 0 {
		return invalidTerms("tenure must be positive, got %d months", t.TenureMonths)
	}
	if t.TenureMonths > MaxTenureMonths {
		return invalidTerms("tenure cannot exceed %d months", MaxTenureMonths)
	}
	if t.AnnualRateBps < 0 || t.AnnualRateBps > MaxAnnualRateBps {
		return invalidTerms("annual rate must be between 0 and %d bps, got %d", MaxAnnualRateBps, t.AnnualRateBps)
	}
	if !t.Method.IsValid() {
		return invalidTerms("unsupported interest method %q", t.Method)
	}
	if t.DisbursementDate.IsZero() {
		return invalidTerms("disbursement date is required")
	}
	return nil
}

// MonthlyRate returns the periodic rate r = annual / 12 as a fraction
func (t LoanTerms) MonthlyRate() decimal.Decimal {
	return decimal.NewFromInt(t.AnnualRateBps).DivRound(bpsPerMonth, rateDivPlaces)
}

// AnnualRate returns the nominal annual rate as a fraction
func (t LoanTerms) AnnualRate() decimal.Decimal {
	return BpsToFraction(t.AnnualRateBps)
}

// Currency returns the currency of the principal
func (t LoanTerms) Currency() valueobject.Currency {
	return t.Principal.Currency()
}

// BpsToFraction converts basis points to a fraction (150 -> 0.015)
func BpsToFraction(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).DivRound(bpsPerUnit, rateDivPlaces)
}
