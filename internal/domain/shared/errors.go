package shared

// DomainError is a business rule violation. Code is stable and safe to show
// to API clients; Message is for humans.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Codes shared by every bounded context
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeInvalidState = "INVALID_STATE"
)
