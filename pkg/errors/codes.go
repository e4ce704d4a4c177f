package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases used by call sites that predate the module prefixes.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Knot Module Error Codes
const (
	ErrCodeInvalidGenerator   ErrorCode = "KNOT_001"
	ErrCodeMalformedBraid     ErrorCode = "KNOT_002"
	ErrCodeInvalidTemperature ErrorCode = "KNOT_003"
	ErrCodeOutOfRangeScore    ErrorCode = "KNOT_004"
	ErrCodeInvalidEntityType  ErrorCode = "KNOT_005"
	ErrCodeInvalidAttributes  ErrorCode = "KNOT_006"
)

// Cache Module Error Codes
const (
	ErrCodeComputationTimeout ErrorCode = "CACHE_001"
	ErrCodeCacheClosed        ErrorCode = "CACHE_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidGenerator:   http.StatusBadRequest,
	ErrCodeMalformedBraid:     http.StatusUnprocessableEntity,
	ErrCodeInvalidTemperature: http.StatusInternalServerError,
	ErrCodeOutOfRangeScore:    http.StatusBadRequest,
	ErrCodeInvalidEntityType:  http.StatusBadRequest,
	ErrCodeInvalidAttributes:  http.StatusBadRequest,

	ErrCodeComputationTimeout: http.StatusGatewayTimeout,
	ErrCodeCacheClosed:        http.StatusServiceUnavailable,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeInvalidGenerator:   "invalid braid generator",
	ErrCodeMalformedBraid:     "malformed braid",
	ErrCodeInvalidTemperature: "invalid temperature",
	ErrCodeOutOfRangeScore:    "score out of range",
	ErrCodeInvalidEntityType:  "unknown entity type",
	ErrCodeInvalidAttributes:  "invalid attribute vector",

	ErrCodeComputationTimeout: "computation wait timed out",
	ErrCodeCacheClosed:        "cache closed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// IsRetryable reports whether a caller may retry after receiving code.
// Only a timed-out wait on an in-flight computation qualifies; the engine
// itself never retries.
func IsRetryable(code ErrorCode) bool {
	return code == ErrCodeComputationTimeout || code == ErrCodeTimeout
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
