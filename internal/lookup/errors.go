package lookup

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jmehdipour/imei-gateway/internal/imei"
	"github.com/jmehdipour/imei-gateway/internal/provider"
)

type Kind int

const (
	KindInvalid Kind = iota + 1
	KindThrottled
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindThrottled:
		return "throttled"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Machine-readable error codes returned to HTTP callers.
const (
	CodeNoIMEI       = "no_imei"
	CodeInvalidIMEI  = "invalid_imei"
	CodeRateLimited  = "rate_limited"
	CodeAPIError     = "api_error"
	CodeAPIHTTPError = "api_http_error"
)

// CheckError is the only error type Check returns.
type CheckError struct {
	Kind   Kind
	Code   string
	Status int    // upstream status, api_http_error only
	Body   string // upstream body, api_http_error only
	Err    error
}

func (e *CheckError) Error() string {
	return e.Code + ": " + e.Err.Error()
}

func (e *CheckError) Unwrap() error { return e.Err }

// HTTPStatus is the status a transport should answer with.
func (e *CheckError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// Message is safe to show to end users; it never includes credentials.
func (e *CheckError) Message() string {
	switch e.Code {
	case CodeNoIMEI:
		return "IMEI is required"
	case CodeInvalidIMEI:
		return "Invalid IMEI format (IMEI must be 15 digits and pass Luhn check)."
	case CodeRateLimited:
		return "Too many requests from your IP. Try again later."
	case CodeAPIHTTPError:
		return "IMEI provider returned HTTP " + strconv.Itoa(e.Status) + ". Body: " + e.Body
	default:
		return "IMEI API request failed: " + e.Err.Error()
	}
}

func invalidError(err error) *CheckError {
	code := CodeInvalidIMEI
	if errors.Is(err, imei.ErrEmptyInput) {
		code = CodeNoIMEI
	}
	return &CheckError{Kind: KindInvalid, Code: code, Err: err}
}

func throttledError(err error) *CheckError {
	return &CheckError{Kind: KindThrottled, Code: CodeRateLimited, Err: err}
}

func providerError(err error) *CheckError {
	var se *provider.StatusError
	if errors.As(err, &se) {
		return &CheckError{Kind: KindProvider, Code: CodeAPIHTTPError, Status: se.StatusCode, Body: se.Body, Err: err}
	}
	return &CheckError{Kind: KindProvider, Code: CodeAPIError, Err: fmt.Errorf("lookup: %w", err)}
}
