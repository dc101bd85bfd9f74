// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
//
// Business-rule violations are typed: each constructor carries the HTTP status
// the handler layer must answer with, so services never import net/http and
// handlers never string-match error messages.
package apierror

import "net/http"

// Kind classifies a business-rule violation.
type Kind int

const (
	KindInternal          Kind = iota // unexpected storage / infra failure
	KindValidation                    // bad input from the caller
	KindNotFound                      // referenced entity does not exist
	KindConflict                      // uniqueness violated (e.g. second open session)
	KindInvalidState                  // operation illegal in the entity's current state
	KindInsufficientStock             // sale line quantity exceeds stock on hand
	KindUnauthorized                  // missing or invalid credentials
)

// Error is the canonical error envelope for all 4xx/5xx HTTP responses.
type Error struct {
	Kind     Kind              `json:"-"`
	Detail   string            `json:"detail"`
	Fields   map[string]string `json:"fields,omitempty"`
	Products []string          `json:"products,omitempty"`
}

func (e *Error) Error() string { return e.Detail }

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState, KindInsufficientStock:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(msg string) *Error { return &Error{Kind: KindInternal, Detail: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Detail: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Detail: msg} }

func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Detail: msg} }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Detail: msg} }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Detail: msg} }

// ValidationFields wraps multiple field errors from request binding.
func ValidationFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Detail: "validation failed", Fields: fields}
}

// InsufficientStock names every product whose stock could not cover the sale.
func InsufficientStock(products []string) *Error {
	return &Error{
		Kind:     KindInsufficientStock,
		Detail:   "insufficient stock",
		Products: products,
	}
}
