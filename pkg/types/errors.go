package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine failures.
type ErrorCode string

// Engine error codes.
const (
	CodeVenueFetchFailure      ErrorCode = "VENUE_FETCH_FAILURE"
	CodeUnsupportedVenueFormat ErrorCode = "UNSUPPORTED_VENUE_FORMAT"
	CodeInsufficientQuotes     ErrorCode = "INSUFFICIENT_QUOTES"
	CodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	CodeInternalError          ErrorCode = "INTERNAL_ERROR"
	CodeLowLiquidity           ErrorCode = "LOW_LIQUIDITY"
)

// EngineError is an error raised while producing opportunities.
// Two EngineErrors match under errors.Is when their codes are equal.
type EngineError struct {
	Code    ErrorCode
	Venue   string // venue id for per-venue failures
	Message string
	cause   error
}

func (e *EngineError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Venue != "" {
		msg = fmt.Sprintf("%s [%s]: %s", e.Code, e.Venue, e.Message)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.cause
}

// Is matches on error code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Warning converts a per-venue error into a response warning.
func (e *EngineError) Warning() Warning {
	msg := e.Message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return Warning{Venue: e.Venue, Code: e.Code, Message: msg}
}

//nolint:gochecknoglobals // sentinel errors
var (
	ErrVenueFetchFailure      = &EngineError{Code: CodeVenueFetchFailure, Message: "venue fetch failed"}
	ErrUnsupportedVenueFormat = &EngineError{Code: CodeUnsupportedVenueFormat, Message: "unsupported venue format"}
	ErrInsufficientQuotes     = &EngineError{Code: CodeInsufficientQuotes, Message: "insufficient quotes"}
	ErrInvalidRequest         = &EngineError{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrInternal               = &EngineError{Code: CodeInternalError, Message: "internal error"}
)

// NewVenueFetchFailure reports a venue that failed or timed out.
func NewVenueFetchFailure(venue string, cause error) *EngineError {
	return &EngineError{Code: CodeVenueFetchFailure, Venue: venue, Message: "venue fetch failed", cause: cause}
}

// NewUnsupportedVenueFormat reports a payload that has no usable price or liquidity.
func NewUnsupportedVenueFormat(venue string, reason string, cause error) *EngineError {
	return &EngineError{Code: CodeUnsupportedVenueFormat, Venue: venue, Message: reason, cause: cause}
}

// NewLowLiquidity reports a venue whose pool is too shallow to be compared.
func NewLowLiquidity(venue string, liquidityUSD string, minimumUSD string) *EngineError {
	return &EngineError{
		Code:    CodeLowLiquidity,
		Venue:   venue,
		Message: fmt.Sprintf("liquidity $%s below minimum $%s", liquidityUSD, minimumUSD),
	}
}

// NewInsufficientQuotes reports fewer than two usable quotes.
func NewInsufficientQuotes(usable int) *EngineError {
	return &EngineError{
		Code:    CodeInsufficientQuotes,
		Message: fmt.Sprintf("need at least 2 usable quotes, got %d", usable),
	}
}

// NewInvalidRequest reports a caller error.
func NewInvalidRequest(format string, args ...any) *EngineError {
	return &EngineError{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(cause error) *EngineError {
	return &EngineError{Code: CodeInternalError, Message: "internal error", cause: cause}
}

// CodeOf returns the engine code carried by err, or CodeInternalError.
func CodeOf(err error) ErrorCode {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return CodeInternalError
}
