package dto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// DateLayout is the wire format of business dates
const DateLayout = "2006-01-02"

// DisburseLoanRequest is the body of POST /loans. Amounts are decimal
// strings in major units, e.g. "100000.00".
type DisburseLoanRequest struct {
	BorrowerID       string `json:"borrower_id" binding:"required,uuid"`
	LoanNumber       string `json:"loan_number" binding:"omitempty,max=50"`
	Principal        string `json:"principal" binding:"required,money"`
	Currency         string `json:"currency" binding:"omitempty,len=3"`
	AnnualRateBps    int64  `json:"annual_rate_bps" binding:"gte=0"`
	TenureMonths     int    `json:"tenure_months" binding:"required,min=1"`
	Method           string `json:"method" binding:"omitempty,oneof=REDUCING_BALANCE FLAT_RATE"`
	DisbursementDate string `json:"disbursement_date" binding:"required,isodate"`
}

// ToCommand converts the body into a disbursement for tenantID
func (r DisburseLoanRequest) ToCommand(tenantID uuid.UUID) (applending.DisburseLoanRequest, error) {
	principal, err := parseMoney("principal", r.Principal, r.Currency)
	if err != nil {
		return applending.DisburseLoanRequest{}, err
	}
	date, err := parseDate("disbursement_date", r.DisbursementDate)
	if err != nil {
		return applending.DisburseLoanRequest{}, err
	}
	return applending.DisburseLoanRequest{
		TenantID:         tenantID,
		BorrowerID:       uuid.MustParse(r.BorrowerID),
		LoanNumber:       r.LoanNumber,
		Principal:        principal,
		AnnualRateBps:    r.AnnualRateBps,
		TenureMonths:     r.TenureMonths,
		Method:           lending.InterestMethod(r.Method),
		DisbursementDate: date,
	}, nil
}

// PostPaymentRequest is the body of POST /loans/:id/payments. Reference is
// the caller's idempotency key; replaying it returns the first result.
type PostPaymentRequest struct {
	Reference  string `json:"reference" binding:"required,max=64"`
	Amount     string `json:"amount" binding:"required,money"`
	Currency   string `json:"currency" binding:"omitempty,len=3"`
	ReceivedAt string `json:"received_at" binding:"required,isodate"`
}

// ToCommand converts the body into a payment against loanID
func (r PostPaymentRequest) ToCommand(tenantID, loanID uuid.UUID) (applending.ApplyPaymentRequest, error) {
	amount, err := parseMoney("amount", r.Amount, r.Currency)
	if err != nil {
		return applending.ApplyPaymentRequest{}, err
	}
	received, err := parseDate("received_at", r.ReceivedAt)
	if err != nil {
		return applending.ApplyPaymentRequest{}, err
	}
	return applending.ApplyPaymentRequest{
		TenantID:   tenantID,
		LoanID:     loanID,
		Reference:  r.Reference,
		Amount:     amount,
		ReceivedAt: received,
	}, nil
}

// OperatorActionRequest is the body of the manual bucket actions
// (escalate, write off, cure, close case). At defaults to today.
type OperatorActionRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
	At     string `json:"at" binding:"omitempty,isodate"`
}

// ToCommand converts the body into an action by operatorID on loanID
func (r OperatorActionRequest) ToCommand(tenantID, loanID, operatorID uuid.UUID, today time.Time) (applending.OperatorActionRequest, error) {
	at, err := parseOptionalDate("at", r.At, today)
	if err != nil {
		return applending.OperatorActionRequest{}, err
	}
	return applending.OperatorActionRequest{
		TenantID:   tenantID,
		LoanID:     loanID,
		OperatorID: operatorID,
		Reason:     r.Reason,
		At:         at,
	}, nil
}

// AsOfQuery is the ?as_of= parameter of recompute and sweep
type AsOfQuery struct {
	AsOf string `form:"as_of" binding:"omitempty,isodate"`
}

// Date returns the requested business date, today when absent
func (q AsOfQuery) Date(today time.Time) (time.Time, error) {
	return parseOptionalDate("as_of", q.AsOf, today)
}

// LoanListRequest holds the filters of GET /loans
type LoanListRequest struct {
	ListRequest
	Status     string `form:"status" binding:"omitempty,oneof=ACTIVE CLOSED WRITTEN_OFF"`
	Bucket     string `form:"bucket" binding:"omitempty,oneof=CURRENT X Y M1 M2 M3 LEGAL RECOVERED WRITTEN_OFF"`
	BorrowerID string `form:"borrower_id" binding:"omitempty,uuid"`
}

// ToFilter converts the query into a repository filter
func (r LoanListRequest) ToFilter() lending.LoanFilter {
	r.Normalize()
	filter := lending.LoanFilter{
		Filter: shared.Filter{
			Page:     r.Page,
			PageSize: r.PageSize,
			OrderBy:  r.OrderBy,
			OrderDir: r.OrderDir,
			Search:   r.Search,
		},
	}
	if r.Status != "" {
		status := lending.LoanStatus(r.Status)
		filter.Status = &status
	}
	if r.Bucket != "" {
		bucket := lending.Bucket(r.Bucket)
		filter.Bucket = &bucket
	}
	if r.BorrowerID != "" {
		id := uuid.MustParse(r.BorrowerID)
		filter.BorrowerID = &id
	}
	return filter
}

// FieldError is a conversion failure on one request field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Detail returns the error as a validation detail
func (e *FieldError) Detail() ValidationDetail {
	return ValidationDetail{Field: e.Field, Message: e.Message}
}

func parseMoney(field, amount, currency string) (valueobject.Money, error) {
	cur := valueobject.DefaultCurrency
	if currency != "" {
		cur = valueobject.Currency(currency)
	}
	if !cur.IsValid() {
		return valueobject.Money{}, &FieldError{Field: "currency", Message: "Unsupported currency " + currency}
	}
	m, err := valueobject.NewMoneyFromString(amount, cur)
	if err != nil {
		return valueobject.Money{}, &FieldError{Field: field, Message: err.Error()}
	}
	return m, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &FieldError{Field: field, Message: "Must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

func parseOptionalDate(field, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return lending.DateOf(fallback), nil
	}
	return parseDate(field, value)
}
