package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Extraction failure kinds. Match with errors.Is.
var (
	ErrFetchFailure         = errors.New("fetch failure")
	ErrExtractionFailure    = errors.New("extraction failure")
	ErrUnknownDomain        = errors.New("unknown domain")
	ErrInferenceUnavailable = errors.New("inference unavailable")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrMissingField         = errors.New("missing field")
)

// Stage names the pipeline step an error originated in.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageContract  Stage = "contract"
	StageInference Stage = "inference"
	StageRecovery  Stage = "recovery"
	StageNormalize Stage = "normalize"
)

// StageError tags a failure with its stage and kind.
type StageError struct {
	Stage  Stage
	Domain string
	Kind   error
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Domain != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Domain)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError builds a StageError. kind should be one of the Err* kinds above.
func NewStageError(stage Stage, kind error, cause error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: cause}
}

// WithDomain records the domain the failing call was for.
func (e *StageError) WithDomain(domain string) *StageError {
	e.Domain = domain
	return e
}

// StageOf returns the stage attached to err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps an error onto the status code the HTTP API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownDomain), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExtractionFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrFetchFailure), errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrMissingField):
		return http.StatusBadGateway
	case errors.Is(err, ErrInferenceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus converts err into a gRPC status error.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, ErrUnknownDomain), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrExtractionFailure):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrFetchFailure), errors.Is(err, ErrInferenceUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
