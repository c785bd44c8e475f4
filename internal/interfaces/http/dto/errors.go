package dto

import (
	"errors"
	"net/http"

	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/scheduler"
)

// Transport error codes. Domain failures keep their lending code
// (INVALID_TERMS, DUPLICATE_PAYMENT, ...) in the response.
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeUnauthorized    = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired    = "ERR_TOKEN_EXPIRED"
	ErrCodeForbidden       = "ERR_FORBIDDEN"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeSweepInProgress = "SWEEP_IN_PROGRESS"
)

// codeStatus maps error codes to HTTP status. Codes not listed are
// classified by their lending kind.
var codeStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeSweepInProgress: http.StatusConflict,

	applending.CodeLoanNotFound: http.StatusNotFound,

	lending.CodeInvalidTerms:     http.StatusBadRequest,
	lending.CodeInvalidPayment:   http.StatusBadRequest,
	lending.CodeCurrencyMismatch: http.StatusBadRequest,
	// the request is well formed but the loan cannot take it
	lending.CodeDuplicatePayment: http.StatusUnprocessableEntity,
	lending.CodeLoanClosed:       http.StatusUnprocessableEntity,
}

var kindStatus = map[lending.ErrorKind]int{
	lending.KindInvalidTerms:       http.StatusBadRequest,
	lending.KindInvalidPayment:     http.StatusUnprocessableEntity,
	lending.KindAllocationConflict: http.StatusConflict,
	lending.KindIllegalTransition:  http.StatusUnprocessableEntity,
}

// HTTPStatus returns the status for an error code, 500 when unknown
func HTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	if status, ok := kindStatus[lending.KindOfCode(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorFor converts err into a status and error body. Errors that are not
// domain errors become a generic 500 so internals never reach clients.
func ErrorFor(err error) (int, ErrorInfo) {
	if errors.Is(err, scheduler.ErrSweepInProgress) {
		return http.StatusConflict, ErrorInfo{Code: ErrCodeSweepInProgress, Message: "A delinquency sweep is already running"}
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return HTTPStatus(de.Code), ErrorInfo{Code: de.Code, Message: de.Message}
	}
	return http.StatusInternalServerError, ErrorInfo{Code: ErrCodeInternal, Message: "An unexpected error occurred"}
}
