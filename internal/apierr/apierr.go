// Package apierr defines the gateway's error taxonomy and the classifier
// that maps arbitrary failures onto it.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Code identifies one class in the fixed error taxonomy.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeAuth            Code = "AUTH_ERROR"
	CodeAuthorization   Code = "AUTHORIZATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodePayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	CodeRateLimit       Code = "RATE_LIMIT"
	CodeTimeout         Code = "TIMEOUT"
	CodeExternalAPI     Code = "EXTERNAL_API_ERROR"
	CodeUnknown         Code = "UNKNOWN_ERROR"
)

// Error is the terminal error returned to callers. It is constructed once at
// the failure site and never mutated or enriched afterwards. UserMessage is
// always caller-safe; the wrapped cause is for server-side logs only and is
// never serialized.
type Error struct {
	UserMessage string
	Code        Code
	HTTPStatus  int
	Timestamp   time.Time
	RetryAfter  time.Duration

	cause error
}

func (e *Error) Error() string {
	return e.UserMessage
}

// Unwrap exposes the underlying cause for errors.Is/As and server-side logs.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, status int, msg string) *Error {
	return &Error{
		UserMessage: msg,
		Code:        code,
		HTTPStatus:  status,
		Timestamp:   time.Now().UTC(),
	}
}

// Validation reports a request that failed schema validation.
func Validation(msg string) *Error {
	return newError(CodeValidation, http.StatusBadRequest, msg)
}

// Auth reports a missing or rejected credential.
func Auth(msg string) *Error {
	return newError(CodeAuth, http.StatusUnauthorized, msg)
}

// Authorization reports a credential that is valid but not permitted.
func Authorization(msg string) *Error {
	return newError(CodeAuthorization, http.StatusForbidden, msg)
}

// NotFound reports a vendor or resource the gateway does not serve.
func NotFound(msg string) *Error {
	return newError(CodeNotFound, http.StatusNotFound, msg)
}

// PayloadTooLarge reports a request body over the transport cap.
func PayloadTooLarge() *Error {
	return newError(CodePayloadTooLarge, http.StatusRequestEntityTooLarge,
		"request body exceeds the 1 MiB limit")
}

// RateLimit reports an exhausted request window. retryAfter is the remaining
// window time, surfaced to callers through the Retry-After header; zero means
// no hint is available.
func RateLimit(retryAfter time.Duration) *Error {
	e := newError(CodeRateLimit, http.StatusTooManyRequests,
		"rate limit exceeded, retry after the indicated interval")
	e.RetryAfter = retryAfter
	return e
}

// Timeout reports an aborted call that exceeded its wall-clock budget.
func Timeout() *Error {
	return newError(CodeTimeout, http.StatusGatewayTimeout,
		"the upstream request timed out")
}

// External reports a vendor-side failure with the vendor's own HTTP status.
func External(vendor string, status int) *Error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return newError(CodeExternalAPI, status,
		fmt.Sprintf("the %s API reported an error", vendor))
}

// Unknown reports an unclassified internal failure.
func Unknown() *Error {
	return newError(CodeUnknown, http.StatusInternalServerError,
		"an unexpected error occurred")
}

// VendorError is the normalized form of an upstream failure. Adapters
// translate their vendor's wire error shape into this one value at the
// response boundary so nothing vendor-specific travels further up the stack.
// Status is zero when the failure happened mid-stream without an HTTP status.
type VendorError struct {
	Vendor  string
	Status  int
	Code    string
	Message string
}

func (e *VendorError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (status %d, code %q): %s", e.Vendor, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error (code %q): %s", e.Vendor, e.Code, e.Message)
}

// FromError classifies err into the fixed taxonomy. Precedence:
//
//  1. an *Error passes through unchanged — it was already constructed at its
//     failure site and must not be re-wrapped
//  2. a *VendorError carrying an HTTP status >= 400 keeps that status
//     verbatim, with the code mapped from the status class
//  3. a deadline-exceeded context maps to TIMEOUT
//  4. case-insensitive substring matching on the error text: "api key" or
//     "unauthorized", then "rate limit", then "timeout"
//  5. a status-less *VendorError defaults to EXTERNAL_API_ERROR (502)
//  6. everything else is UNKNOWN_ERROR (500)
//
// The returned Error always carries a caller-safe UserMessage; the original
// err is retained as the unexported cause for server-side logging only.
func FromError(err error) *Error {
	var gw *Error
	if errors.As(err, &gw) {
		return gw
	}

	var vendorErr *VendorError
	hasVendor := errors.As(err, &vendorErr)
	if hasVendor && vendorErr.Status >= 400 {
		mapped := fromVendorStatus(vendorErr)
		mapped.cause = err
		return mapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		mapped := Timeout()
		mapped.cause = err
		return mapped
	}

	var mapped *Error
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"):
		mapped = Auth("the vendor rejected the configured API key")
	case strings.Contains(msg, "rate limit"):
		mapped = RateLimit(0)
	case strings.Contains(msg, "timeout"):
		mapped = Timeout()
	case hasVendor:
		mapped = External(vendorErr.Vendor, vendorErr.Status)
	default:
		mapped = Unknown()
	}
	mapped.cause = err
	return mapped
}

func fromVendorStatus(vendorErr *VendorError) *Error {
	vendor := vendorErr.Vendor
	status := vendorErr.Status

	var e *Error
	switch status {
	case http.StatusBadRequest:
		e = newError(CodeValidation, status,
			fmt.Sprintf("the %s API rejected the request as invalid", vendor))
	case http.StatusUnauthorized:
		e = newError(CodeAuth, status,
			fmt.Sprintf("the %s API rejected the configured API key", vendor))
	case http.StatusForbidden:
		e = newError(CodeAuthorization, status,
			fmt.Sprintf("the configured %s API key is not permitted to perform this request", vendor))
	case http.StatusNotFound:
		e = newError(CodeNotFound, status,
			fmt.Sprintf("the %s API could not find the requested model", vendor))
	case http.StatusRequestEntityTooLarge:
		e = newError(CodePayloadTooLarge, status,
			fmt.Sprintf("the %s API rejected the request as too large", vendor))
	case http.StatusTooManyRequests:
		e = newError(CodeRateLimit, status,
			fmt.Sprintf("the %s API rate limited the request", vendor))
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		e = newError(CodeTimeout, status,
			fmt.Sprintf("the %s API timed out", vendor))
	default:
		e = newError(CodeExternalAPI, status,
			fmt.Sprintf("the %s API reported an error", vendor))
	}
	return e
}
