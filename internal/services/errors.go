package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid       ErrorCode = "invalid"
	ErrorNotFound      ErrorCode = "not_found"
	ErrorConflict      ErrorCode = "conflict"
	ErrorStateConflict ErrorCode = "state_conflict"
	ErrorTransaction   ErrorCode = "transaction_failed"
)

// ServiceError carries a machine-readable code alongside the message so the
// transport layer can map failures without string matching.
type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewStateConflictError(msg string) error {
	return &ServiceError{Code: ErrorStateConflict, Message: msg}
}

func NewTransactionError(msg string) error {
	return &ServiceError{Code: ErrorTransaction, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
