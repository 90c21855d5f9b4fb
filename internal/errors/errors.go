package errors

import "fmt"

// ErrorCode represents a Murmur error code.
type ErrorCode string

const (
	ErrAmbiguousAddressing ErrorCode = "AMBIGUOUS_ADDRESSING"
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConfig              ErrorCode = "CONFIG"
	ErrInternal            ErrorCode = "INTERNAL"
)

// MurmurError represents a structured error with code and details.
type MurmurError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *MurmurError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAmbiguousAddressing creates an error for when more than one clear
// addressing mode is given at once.
func NewAmbiguousAddressing() *MurmurError {
	return &MurmurError{
		Code:    ErrAmbiguousAddressing,
		Message: "cannot combine an entry id with --all or --new; use one addressing mode",
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *MurmurError {
	return &MurmurError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for when no journal entry matches an id.
func NewNotFound(id string) *MurmurError {
	return &MurmurError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("entry not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewConfig creates an error for fatal configuration problems (unreadable
// config file, journal directory that cannot be created).
func NewConfig(msg string, err error) *MurmurError {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MurmurError{
		Code:    ErrConfig,
		Message: msg,
	}
}

// NewInternal creates an error for unexpected internal errors.
func NewInternal(err error) *MurmurError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MurmurError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is a MurmurError with the given code.
func Is(err error, code ErrorCode) bool {
	if mErr, ok := err.(*MurmurError); ok {
		return mErr.Code == code
	}
	return false
}
