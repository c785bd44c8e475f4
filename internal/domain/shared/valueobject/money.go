package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	INR Currency = "INR" // Indian Rupee (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	JPY Currency = "JPY" // Japanese Yen
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = INR

// currencyScales maps a currency to the number of minor-unit digits.
var currencyScales = map[Currency]int32{
	INR: 2,
	USD: 2,
	EUR: 2,
	GBP: 2,
	JPY: 0,
}

// Scale returns the number of decimal places of the currency's minor unit.
// Unknown currencies use two places.
func (c Currency) Scale() int32 {
	if s, ok := currencyScales[c]; ok {
		return s
	}
	return 2
}

// IsValid returns true if the currency is supported
func (c Currency) IsValid() bool {
	_, ok := currencyScales[c]
	return ok
}

var (
	// ErrCurrencyMismatch is returned when two amounts in different currencies are combined
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrAmountOverflow is returned when an operation exceeds the int64 minor-unit range
	ErrAmountOverflow = errors.New("amount overflows minor-unit range")
	// ErrExcessPrecision is returned when a parsed amount has more digits than the currency allows
	ErrExcessPrecision = errors.New("amount has more decimal places than the currency allows")
)

// Money is a value object representing monetary amounts as an integer count
// of minor units (paise for INR). It is immutable - all operations return new
// Money instances and never lose precision.
type Money struct {
	minor    int64
	currency Currency
}

// NewMoney creates Money from a count of minor units
func NewMoney(minor int64, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("unsupported currency: %s", currency)
	}
	return Money{minor: minor, currency: currency}, nil
}

// NewMoneyFromDecimal creates Money from a decimal major-unit amount,
// rounding half away from zero to the currency's minor unit.
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	minor := amount.Shift(currency.Scale()).Round(0)
	if !fitsInt64(minor) {
		return Money{}, ErrAmountOverflow
	}
	return NewMoney(minor.IntPart(), currency)
}

// NewMoneyFromString parses a major-unit amount such as "1234.50".
// Amounts with more decimal places than the currency allows are rejected.
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	if !d.Equal(d.Truncate(currency.Scale())) {
		return Money{}, ErrExcessPrecision
	}
	return NewMoneyFromDecimal(d, currency)
}

// NewMoneyINR creates Money in INR from paise
func NewMoneyINR(paise int64) Money {
	return Money{minor: paise, currency: INR}
}

// MustINR parses a rupee amount, panics on malformed input.
// Intended for constants and tests.
func MustINR(amount string) Money {
	m, err := NewMoneyFromString(amount, INR)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{currency: currency}
}

// ZeroINR returns a zero-value Money in INR
func ZeroINR() Money {
	return Zero(INR)
}

// MinorUnits returns the amount as an integer count of minor units
func (m Money) MinorUnits() int64 {
	return m.minor
}

// Amount returns the major-unit decimal amount
func (m Money) Amount() decimal.Decimal {
	return decimal.New(m.minor, -m.currency.Scale())
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.minor == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.minor > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.minor < 0
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match or the sum overflows
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s and %s: %w", m.currency, other.currency, ErrCurrencyMismatch)
	}
	sum := m.minor + other.minor
	if (other.minor > 0 && sum < m.minor) || (other.minor < 0 && sum > m.minor) {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: sum, currency: m.currency}, nil
}

// MustAdd adds two Money values, panics on currency mismatch or overflow
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference
// Returns error if currencies don't match or the difference overflows
func (m Money) Subtract(other Money) (Money, error) {
	if other.minor == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s: %w", other.currency, m.currency, ErrCurrencyMismatch)
	}
	return m.Add(Money{minor: -other.minor, currency: other.currency})
}

// MustSubtract subtracts two Money values, panics on currency mismatch or overflow
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Multiply returns m × factor rounded half away from zero to the minor unit.
// The product is computed exactly before rounding.
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	product := decimal.NewFromInt(m.minor).Mul(factor).Round(0)
	if !fitsInt64(product) {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: product.IntPart(), currency: m.currency}, nil
}

// MustMultiply multiplies, panics on overflow
func (m Money) MustMultiply(factor decimal.Decimal) Money {
	result, err := m.Multiply(factor)
	if err != nil {
		panic(err)
	}
	return result
}

// MultiplyByInt returns a new Money multiplied by an integer
func (m Money) MultiplyByInt(factor int64) (Money, error) {
	return m.Multiply(decimal.NewFromInt(factor))
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{minor: -m.minor, currency: m.currency}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.minor < 0 {
		return m.Negate()
	}
	return m
}

// Min returns the smaller of two amounts in the same currency
func (m Money) Min(other Money) Money {
	if other.minor < m.minor {
		return other
	}
	return m
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.minor == other.minor
}

// Compare returns -1, 0 or 1 depending on whether m is less than, equal to
// or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("cannot compare %s and %s: %w", m.currency, other.currency, ErrCurrencyMismatch)
	}
	switch {
	case m.minor < other.minor:
		return -1, nil
	case m.minor > other.minor:
		return 1, nil
	default:
		return 0, nil
	}
}

// LessThan returns true if this Money is less than the other
// Returns error if currencies don't match
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c < 0, err
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c > 0, err
}

// GreaterThanOrEqual returns true if this Money is greater than or equal to the other
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c >= 0, err
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.StringFixed(), m.currency)
}

// StringFixed returns the major-unit amount with the currency's decimal places
func (m Money) StringFixed() string {
	return m.Amount().StringFixed(m.currency.Scale())
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.StringFixed(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// A missing currency defaults to DefaultCurrency.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Currency == "" {
		v.Currency = DefaultCurrency
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
// Stores minor units as a BIGINT; currency lives in its own column.
func (m Money) Value() (driver.Value, error) {
	return m.minor, nil
}

// Scan implements sql.Scanner for database retrieval.
// The currency is kept if already set, otherwise DefaultCurrency is used.
func (m *Money) Scan(value any) error {
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	switch v := value.(type) {
	case nil:
		m.minor = 0
	case int64:
		m.minor = v
	case int32:
		m.minor = int64(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid minor-unit value: %w", err)
		}
		m.minor = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid minor-unit value: %w", err)
		}
		m.minor = n
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	return nil
}

// Allocate divides money into n parts, handling remainders.
// Leftover minor units go to the first parts so the slice sums to m exactly.
func (m Money) Allocate(parts int) ([]Money, error) {
	if parts <= 0 {
		return nil, errors.New("parts must be positive")
	}
	base := m.minor / int64(parts)
	remainder := m.minor % int64(parts)

	result := make([]Money, parts)
	for i := range parts {
		part := base
		if int64(i) < remainder {
			part++
		} else if int64(i) < -remainder {
			part--
		}
		result[i] = Money{minor: part, currency: m.currency}
	}
	return result, nil
}

// Sum adds amounts of the same currency, starting from zero in currency
func Sum(currency Currency, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func fitsInt64(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(decimal.NewFromInt(math.MinInt64)) &&
		d.LessThanOrEqual(decimal.NewFromInt(math.MaxInt64))
}
