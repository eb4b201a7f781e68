package errors

import (
	"errors"
	"fmt"
)

// Category identifies what went wrong when talking to the content source.
type Category string

const (
	CategoryAuth        Category = "auth"
	CategoryTwoFactor   Category = "two_factor"
	CategoryRateLimit   Category = "rate_limit"
	CategoryForbidden   Category = "forbidden"
	CategoryServerError Category = "server_error"
	CategoryNetwork     Category = "network"
	CategoryNotFound    Category = "not_found"
	CategoryPrivate     Category = "private"
	CategoryUnknown     Category = "unknown"
)

// Class groups categories by the recovery action they warrant.
type Class int

const (
	// ClassSoft covers generic connectivity failures: plain backoff and retry.
	ClassSoft Class = iota
	// ClassRotate covers failures correlated with the active credential being
	// blocked or expired: rotate, then backoff and retry.
	ClassRotate
	// ClassTerminal covers failures retrying cannot fix: surfaced immediately.
	ClassTerminal
)

// Error is a classified content-source failure.
type Error struct {
	Category Category
	Message  string
	Code     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Category, e.Code, e.Message)
}

// New builds a classified error.
func New(category Category, code int, message string) *Error {
	return &Error{Category: category, Message: message, Code: code}
}

// ClassOfCategory maps a category to its recovery class.
func ClassOfCategory(category Category) Class {
	switch category {
	case CategoryAuth, CategoryTwoFactor, CategoryRateLimit, CategoryForbidden, CategoryServerError:
		return ClassRotate
	case CategoryNotFound, CategoryPrivate:
		return ClassTerminal
	default:
		return ClassSoft
	}
}

// ClassOf classifies an arbitrary error. Unclassified errors are treated as
// soft connectivity failures.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return ClassOfCategory(e.Category)
	}
	return ClassSoft
}

// CategoryOf extracts the category from an error, or CategoryUnknown.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}

// IsTerminal reports whether the error is in the terminal class.
func IsTerminal(err error) bool {
	return err != nil && ClassOf(err) == ClassTerminal
}

// IsHardRotate reports whether the error warrants immediate credential rotation.
func IsHardRotate(err error) bool {
	return err != nil && ClassOf(err) == ClassRotate
}

// ClassOfStatusCode classifies an HTTP status code from the content provider.
// Connectors may use it to build classified errors from raw responses.
func ClassOfStatusCode(statusCode int) Category {
	switch statusCode {
	case 0:
		return CategoryNetwork
	case 401:
		return CategoryAuth
	case 403:
		return CategoryForbidden
	case 404:
		return CategoryNotFound
	case 429:
		return CategoryRateLimit
	default:
		if statusCode >= 500 {
			return CategoryServerError
		}
		return CategoryUnknown
	}
}
