package lending

import (
	"errors"
	"fmt"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// Error codes raised by the lending domain
const (
	CodeInvalidTerms           = "INVALID_TERMS"
	CodeInvalidPayment         = "INVALID_PAYMENT"
	CodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	CodeDuplicatePayment       = "DUPLICATE_PAYMENT"
	CodeLoanClosed             = "LOAN_CLOSED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeLoanLocked             = "LOAN_LOCKED"
	CodeIllegalTransition      = "ILLEGAL_TRANSITION"
)

// ErrorKind groups error codes into the four failure families callers branch on
type ErrorKind string

const (
	KindUnknown            ErrorKind = ""
	KindInvalidTerms       ErrorKind = "InvalidTerms"
	KindInvalidPayment     ErrorKind = "InvalidPayment"
	KindAllocationConflict ErrorKind = "AllocationConflict"
	KindIllegalTransition  ErrorKind = "IllegalTransition"
)

var codeKinds = map[string]ErrorKind{
	CodeInvalidTerms:           KindInvalidTerms,
	CodeInvalidPayment:         KindInvalidPayment,
	CodeCurrencyMismatch:       KindInvalidPayment,
	CodeDuplicatePayment:       KindInvalidPayment,
	CodeLoanClosed:             KindInvalidPayment,
	CodeConcurrentModification: KindAllocationConflict,
	CodeLoanLocked:             KindAllocationConflict,
	CodeIllegalTransition:      KindIllegalTransition,
}

// Shared error values for conditions without a variable message
var (
	ErrConcurrentModification = shared.NewDomainError(CodeConcurrentModification, "Loan was modified by another process")
	ErrLoanLocked             = shared.NewDomainError(CodeLoanLocked, "Loan is being updated by another request")
)

// KindOf classifies err. Errors outside the lending domain yield KindUnknown.
func KindOf(err error) ErrorKind {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return KindOfCode(de.Code)
	}
	return KindUnknown
}

// KindOfCode classifies a bare error code
func KindOfCode(code string) ErrorKind {
	return codeKinds[code]
}

// CodeOf returns the domain error code of err, or "" if err is not a domain error
func CodeOf(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func invalidTerms(format string, args ...any) error {
	return shared.NewDomainError(CodeInvalidTerms, fmt.Sprintf(format, args...))
}

func invalidPayment(format string, args ...any) error {
	return shared.NewDomainError(CodeInvalidPayment, fmt.Sprintf(format, args...))
}

func illegalTransition(format string, args ...any) error {
	return shared.NewDomainError(CodeIllegalTransition, fmt.Sprintf(format, args...))
}

func loanClosed() error {
	return shared.NewDomainError(CodeLoanClosed, "Loan is closed or fully repaid")
}

func newCurrencyMismatch(got, want valueobject.Currency) error {
	return shared.NewDomainError(CodeCurrencyMismatch, fmt.Sprintf("payment currency %s does not match loan currency %s", got, want))
}
