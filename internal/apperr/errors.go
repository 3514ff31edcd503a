// Package apperr defines the error taxonomy shared by the ledger, the
// analytics engines and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when every input an analytics query needs
// is unavailable.
var ErrInsufficientData = errors.New("insufficient data")

// NotFoundError reports a missing portfolio, holding or transaction.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DataUnavailableError reports that the market data provider had no data for
// a ticker. It is a soft failure: callers skip the affected contribution.
type DataUnavailableError struct {
	Ticker string
	What   string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no %s available for %s", e.What, e.Ticker)
}

// NoData builds a DataUnavailableError.
func NoData(ticker, what string) error {
	return &DataUnavailableError{Ticker: ticker, What: what}
}

// ProviderError reports that the market data provider is unreachable,
// failing or rate limiting.
type ProviderError struct {
	Provider   string
	StatusCode int
	Endpoint   string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error: status %d on %s: %v", e.Provider, e.StatusCode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s provider error on %s: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsDataUnavailable reports whether err is or wraps a DataUnavailableError
// or ErrInsufficientData.
func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target) || errors.Is(err, ErrInsufficientData)
}

// IsProviderError reports whether err is or wraps a ProviderError.
func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// Collapse picks the error an aggregate operation returns when none of its
// per-ticker inputs succeeded: a ProviderError if any input hit one,
// otherwise ErrInsufficientData.
func Collapse(errs []error) error {
	for _, err := range errs {
		if IsProviderError(err) {
			return err
		}
	}
	return ErrInsufficientData
}
