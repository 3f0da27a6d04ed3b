package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppErrorType string

const (
	ValidationError     AppErrorType = "VALIDATION_ERROR"
	NotFoundError       AppErrorType = "NOT_FOUND_ERROR"
	ConflictError       AppErrorType = "CONFLICT_ERROR"
	InternalError       AppErrorType = "INTERNAL_ERROR"
	BadRequestError     AppErrorType = "BAD_REQUEST_ERROR"
	ServiceUnavailable  AppErrorType = "SERVICE_UNAVAILABLE_ERROR"
	NotImplementedError AppErrorType = "NOT_IMPLEMENTED_ERROR"

	// SchemaInvalidError marks an event that failed wire-schema validation.
	// Routed straight to the DLQ, never retried.
	SchemaInvalidError AppErrorType = "SCHEMA_INVALID_ERROR"
	// TransientIOError marks a store or queue that is temporarily unreachable.
	// Action: no-ack, redeliver with backoff.
	TransientIOError AppErrorType = "TRANSIENT_IO_ERROR"
	// DuplicateEventError marks a unique-index collision on event_id.
	// Treated as success; CDC is still emitted for the existing row.
	DuplicateEventError AppErrorType = "DUPLICATE_EVENT_ERROR"
	// PartitionMisrouteError marks a CDC record seen by a worker outside its
	// sticky partition. Action: re-enqueue to CDC with the original id.
	PartitionMisrouteError AppErrorType = "PARTITION_MISROUTE_ERROR"
	// DerivationError marks enrichment failure on a specific blob.
	// Action: write a structured error record, ack, continue.
	DerivationError AppErrorType = "DERIVATION_ERROR"
	// FatalError marks local database corruption or disk-full conditions.
	// Action: stop the supervisor, surface to the operator.
	FatalError AppErrorType = "FATAL_ERROR"
	// PayloadTooLargeError marks an event whose compressed form exceeds the
	// 1 MiB ceiling.
	PayloadTooLargeError AppErrorType = "PAYLOAD_TOO_LARGE_ERROR"
)

type AppError struct {
	Err        error        `json:"-"`
	Type       AppErrorType `json:"type"`
	Message    string       `json:"message"`
	Details    string       `json:"details,omitempty"`
	StatusCode int          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(errorType AppErrorType, message, details string, err error) *AppError {
	appErr := &AppError{
		Type:    errorType,
		Message: message,
		Details: details,
		Err:     err,
	}

	switch errorType {
	case ValidationError, BadRequestError, SchemaInvalidError, PayloadTooLargeError:
		appErr.StatusCode = http.StatusBadRequest
	case NotFoundError:
		appErr.StatusCode = http.StatusNotFound
	case ConflictError, DuplicateEventError:
		appErr.StatusCode = http.StatusConflict
	case ServiceUnavailable, TransientIOError:
		appErr.StatusCode = http.StatusServiceUnavailable
	case NotImplementedError:
		appErr.StatusCode = http.StatusNotImplemented
	case FatalError:
		appErr.StatusCode = http.StatusInternalServerError
	default:
		appErr.StatusCode = http.StatusInternalServerError
	}

	return appErr
}

func NewValidationError(message, details string) *AppError {
	return NewAppError(ValidationError, message, details, nil)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(NotFoundError, resource+" not found", "", nil)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ConflictError, message, "", nil)
}

func NewBadRequestError(message, details string) *AppError {
	return NewAppError(BadRequestError, message, details, nil)
}

func NewInternalError(message string, err error) *AppError {
	return NewAppError(InternalError, message, "", err)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ServiceUnavailable, message, "", nil)
}

func NewNotImplementedError(message string) *AppError {
	return NewAppError(NotImplementedError, message, "", nil)
}

func NewSchemaInvalidError(message string, err error) *AppError {
	return NewAppError(SchemaInvalidError, message, "", err)
}

func NewTransientIOError(message string, err error) *AppError {
	return NewAppError(TransientIOError, message, "", err)
}

func NewDuplicateEventError(eventID string) *AppError {
	return NewAppError(DuplicateEventError, "duplicate event_id", eventID, nil)
}

func NewPartitionMisrouteError(sessionID string) *AppError {
	return NewAppError(PartitionMisrouteError, "record outside worker partition", sessionID, nil)
}

func NewDerivationError(message string, err error) *AppError {
	return NewAppError(DerivationError, message, "", err)
}

func NewFatalError(message string, err error) *AppError {
	return NewAppError(FatalError, message, "", err)
}

func NewPayloadTooLargeError(byteSize int) *AppError {
	return NewAppError(PayloadTooLargeError, "payload exceeds 1 MiB post-compression ceiling", fmt.Sprintf("byte_size=%d", byteSize), nil)
}

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func GetStatusCode(err error) int {
	if appErr, ok := IsAppError(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func GetErrorType(err error) AppErrorType {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Type
	}
	return InternalError
}

// IsNotFound returns true if the error is a NotFoundError
func IsNotFound(err error) bool {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Type == NotFoundError
	}
	return false
}

// IsTransient returns true if the error should be retried rather than DLQ'd.
func IsTransient(err error) bool {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Type == TransientIOError
	}
	return false
}

// IsDuplicate returns true if the error represents an absorbed duplicate.
func IsDuplicate(err error) bool {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Type == DuplicateEventError
	}
	return false
}

func WrapValidationError(err error, message string) *AppError {
	return NewAppError(ValidationError, message, err.Error(), err)
}

func WrapInternalError(err error, message string) *AppError {
	return NewAppError(InternalError, message, "", err)
}
