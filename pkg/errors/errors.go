package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common application errors
var (
	// Input errors
	ErrMissingColumn  = errors.New("required column missing")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidPrice   = errors.New("invalid price")
	ErrDuplicateDate  = errors.New("duplicate date")
	ErrEmptySeries    = errors.New("empty time series")
	ErrUnsortedSeries = errors.New("time series is not strictly increasing")
	ErrNonFiniteValue = errors.New("non-finite value")

	// Model errors
	ErrInsufficientData  = errors.New("insufficient data")
	ErrInvalidParameters = errors.New("invalid model parameters")
	ErrModelNotFitted    = errors.New("model must be fitted before forecasting")
	ErrFitFailed         = errors.New("model fit failed")

	// Estimation errors
	ErrDateOutOfRange = errors.New("date out of range")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Rendering errors
	ErrRenderFailed = errors.New("chart rendering failed")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeParse         ErrorType = "parse"
	ErrorTypeModelFit      ErrorType = "model_fit"
	ErrorTypeRange         ErrorType = "range"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeRendering     ErrorType = "rendering"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches an underlying error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewParseError creates a parse error for malformed input values
func NewParseError(code, message string) *AppError {
	return NewAppError(ErrorTypeParse, code, message)
}

// NewModelFitError creates an error for decomposition or model fitting failures
func NewModelFitError(code, message string) *AppError {
	return NewAppError(ErrorTypeModelFit, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message).WithCause(ErrInvalidConfiguration)
}

// NewRenderingError creates a chart rendering error
func NewRenderingError(code, message string) *AppError {
	return NewAppError(ErrorTypeRendering, code, message).WithCause(ErrRenderFailed)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// NewRangeError reports a query date outside the covered span [min, max].
func NewRangeError(date, min, max time.Time) *AppError {
	return &AppError{
		Type:    ErrorTypeRange,
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("Date out of range: %s", date.Format(DateLayout)),
		Details: fmt.Sprintf("covered range is %s to %s", min.Format(DateLayout), max.Format(DateLayout)),
		Cause:   ErrDateOutOfRange,
		Context: map[string]interface{}{
			"date": date.Format(DateLayout),
			"min":  min.Format(DateLayout),
			"max":  max.Format(DateLayout),
		},
	}
}

// DateLayout is the layout used when dates appear in error messages.
const DateLayout = "2006-01-02"

// IsType reports whether any error in err's chain is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsRangeError reports whether err is an out-of-range estimation error.
func IsRangeError(err error) bool {
	return IsType(err, ErrorTypeRange)
}

// IsParseError reports whether err is a parse error.
func IsParseError(err error) bool {
	return IsType(err, ErrorTypeParse)
}

// IsModelFitError reports whether err is a decomposition or model fit error.
func IsModelFitError(err error) bool {
	return IsType(err, ErrorTypeModelFit)
}

// Is is a re-export of the standard library's errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a re-export of the standard library's errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is a re-export of the standard library's errors.New
func New(text string) error {
	return errors.New(text)
}

// Error codes for different error scenarios
const (
	// Validation error codes
	CodeInvalidInput     = "INVALID_INPUT"
	CodeMissingColumn    = "MISSING_COLUMN"
	CodeDuplicateDate    = "DUPLICATE_DATE"
	CodeEmptySeries      = "EMPTY_SERIES"
	CodeUnsortedSeries   = "UNSORTED_SERIES"
	CodeInvalidFrequency = "INVALID_FREQUENCY"

	// Parse error codes
	CodeInvalidDate  = "INVALID_DATE"
	CodeInvalidPrice = "INVALID_PRICE"
	CodeMalformedCSV = "MALFORMED_CSV"

	// Model error codes
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeInvalidOrder     = "INVALID_ORDER"
	CodeDecomposition    = "DECOMPOSITION_FAILED"
	CodeFitFailed        = "FIT_FAILED"
	CodeNotFitted        = "NOT_FITTED"
	CodeForecastFailed   = "FORECAST_FAILED"

	// Range error codes
	CodeOutOfRange = "OUT_OF_RANGE"

	// Storage error codes
	CodeReadFailed  = "READ_FAILED"
	CodeWriteFailed = "WRITE_FAILED"

	// Configuration error codes
	CodeConfigLoad    = "CONFIG_LOAD_FAILED"
	CodeConfigInvalid = "CONFIG_INVALID"

	// Rendering error codes
	CodeRenderFailed = "RENDER_FAILED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
	CodeCancelled     = "CANCELLED"
)
