package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped and freshly constructed
// errors of the same kind compare equal under errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes for the command/query engine
const (
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeCorruptStream       = "CORRUPT_STREAM"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Stream was modified by another process")
	ErrCorruptStream       = NewDomainError(CodeCorruptStream, "Event stream is corrupted")
)

// NewValidationError creates a validation error for rejected command input
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewInvariantViolation creates an error for behavior invoked in a forbidden state
func NewInvariantViolation(message string) *DomainError {
	return NewDomainError(CodeInvariantViolation, message)
}

// NewCorruptStreamError creates a corruption error for a broken event sequence
func NewCorruptStreamError(message string) *DomainError {
	return NewDomainError(CodeCorruptStream, message)
}
