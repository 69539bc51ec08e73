// Package apperr defines the domain error taxonomy shared by every core
// subsystem and the HTTP mapping that turns it into a response.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind tags the broad category of a domain error. It is a sum type, not a
// Go type per error — every AppError carries exactly one Kind.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindValidation     Kind = "VALIDATION"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindUnavailable    Kind = "UNAVAILABLE"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindInternal       Kind = "INTERNAL"
)

// AppError is the single error type used across ThreadKit's core packages.
type AppError struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfterSeconds is set for RateLimited and Unavailable kinds so
	// handlers can populate the Retry-After header without re-deriving it.
	RetryAfterSeconds int
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *AppError { return New(KindAuthentication, message) }
func Forbidden(message string) *AppError    { return New(KindAuthorization, message) }
func BadRequest(message string) *AppError   { return New(KindValidation, message) }

func NotFound(resource string, id interface{}) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s %v not found", resource, id))
}

func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Kind:              KindRateLimited,
		Message:           "rate limit exceeded",
		RetryAfterSeconds: retryAfterSeconds,
	}
}

func Unavailable(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Kind:              KindUnavailable,
		Message:           message,
		RetryAfterSeconds: retryAfterSeconds,
	}
}

func Conflict(message string) *AppError { return New(KindConflict, message) }

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// HTTPStatus maps a Kind to the HTTP status code a handler should respond with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return fiber.StatusUnauthorized
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindValidation:
		return fiber.StatusBadRequest
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindUnavailable:
		return fiber.StatusServiceUnavailable
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse is the standardized JSON body for error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Respond writes the standardized error response for err, inferring the
// HTTP status from its Kind when err is an *AppError, else 500.
func Respond(c *fiber.Ctx, err error) error {
	var appErr *AppError
	rid := ""
	if v := c.Locals("requestid"); v != nil {
		rid = fmt.Sprintf("%v", v)
	}

	if errors.As(err, &appErr) {
		resp := ErrorResponse{
			Error:     appErr.Message,
			Code:      string(appErr.Kind),
			RequestID: rid,
		}
		if appErr.Err != nil && appErr.Kind != KindInternal {
			resp.Details = appErr.Err.Error()
		}
		if appErr.RetryAfterSeconds > 0 {
			c.Set("Retry-After", fmt.Sprintf("%d", appErr.RetryAfterSeconds))
		}
		return c.Status(appErr.Kind.HTTPStatus()).JSON(resp)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:     "internal server error",
		RequestID: rid,
	})
}
