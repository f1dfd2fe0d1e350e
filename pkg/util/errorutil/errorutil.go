// Package errorutil defines the error taxonomy shared by services and the HTTP layer.
package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API callers.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeNoTechnicianAvailable = "NO_TECHNICIAN_AVAILABLE"
	CodeNoTechnicianAssigned  = "NO_TECHNICIAN_ASSIGNED"
	CodeAlreadyInvoiced       = "ALREADY_INVOICED"
	CodeMissingClient         = "MISSING_CLIENT"
	CodeInternal              = "INTERNAL_ERROR"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
)

// Sentinels for errors.Is checks. A DomainError matches a sentinel when the codes are equal.
var (
	ErrValidation            = &DomainError{Code: CodeValidation}
	ErrNotFound              = &DomainError{Code: CodeNotFound}
	ErrConflict              = &DomainError{Code: CodeConflict}
	ErrInvalidTransition     = &DomainError{Code: CodeInvalidTransition}
	ErrInsufficientStock     = &DomainError{Code: CodeInsufficientStock}
	ErrNoTechnicianAvailable = &DomainError{Code: CodeNoTechnicianAvailable}
	ErrNoTechnicianAssigned  = &DomainError{Code: CodeNoTechnicianAssigned}
	ErrAlreadyInvoiced       = &DomainError{Code: CodeAlreadyInvoiced}
	ErrMissingClient         = &DomainError{Code: CodeMissingClient}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition reports an action that is not allowed from the current state.
func NewInvalidTransition(action, state string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot %s an intervention in state %s", action, state),
		http.StatusConflict,
		map[string]any{"action": action, "state": state})
}

func NewNoTechnicianAvailable(details map[string]any) error {
	return NewDomainError(CodeNoTechnicianAvailable, "no technician available", http.StatusConflict, details)
}

func NewNoTechnicianAssigned(ticketID string) error {
	return NewDomainError(CodeNoTechnicianAssigned, "no technician assigned", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewAlreadyInvoiced(ticketID string) error {
	return NewDomainError(CodeAlreadyInvoiced, "invoice already created", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewMissingClient(ticketID string) error {
	return NewDomainError(CodeMissingClient, "a client must be set on the intervention", http.StatusUnprocessableEntity,
		map[string]any{"ticket_id": ticketID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// InsufficientStockError is returned when a part line asks for more than is on hand.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   float64
	Requested   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %g, requested %g", e.ProductName, e.Available, e.Requested)
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == CodeInsufficientStock
}

func (e *InsufficientStockError) domainError() *DomainError {
	return &DomainError{
		Code:       CodeInsufficientStock,
		Message:    e.Error(),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"product_id": e.ProductID,
			"available":  e.Available,
			"requested":  e.Requested,
		},
	}
}

// IsNoRows reports whether err signals a missing row in either driver flavour.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.domainError()
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus == 0 {
			copied := *domainErr
			copied.HTTPStatus = http.StatusInternalServerError
			return &copied
		}
		return domainErr
	}
	if IsNoRows(err) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
