package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to staff and to the ops API.
const (
	CodeAlreadyOpen    = "ALREADY_OPEN"
	CodeAlreadyClaimed = "ALREADY_CLAIMED"
	CodeNotOpen        = "NOT_OPEN"
	CodeNotClosed      = "NOT_CLOSED"
	CodeTicketDeleted  = "TICKET_DELETED"
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION_FAILED"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeStaleControl   = "STALE_CONTROL"
	CodePlatform       = "PLATFORM_ERROR"
	CodeStore          = "STORE_ERROR"
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
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
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
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

// NewAlreadyOpen reports that the owner already has an open ticket of the kind.
func NewAlreadyOpen(channelID string) error {
	return NewDomainError(CodeAlreadyOpen, "an open ticket already exists", http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

// NewAlreadyClaimed reports a second claim on a ticket.
func NewAlreadyClaimed(claimedBy string) error {
	return NewDomainError(CodeAlreadyClaimed, "ticket already claimed", http.StatusConflict,
		map[string]any{"claimed_by": claimedBy})
}

// NewNotOpen reports a transition that requires an open ticket.
func NewNotOpen(status string) error {
	return NewDomainError(CodeNotOpen, "ticket is not open", http.StatusConflict,
		map[string]any{"status": status})
}

// NewNotClosed reports a reopen on a ticket that is not closed.
func NewNotClosed(status string) error {
	return NewDomainError(CodeNotClosed, "ticket is not closed", http.StatusConflict,
		map[string]any{"status": status})
}

// NewTicketDeleted reports an operation on a terminal ticket.
func NewTicketDeleted(channelID string) error {
	return NewDomainError(CodeTicketDeleted, "ticket has been deleted", http.StatusGone,
		map[string]any{"channel_id": channelID})
}

// NewStaleControl reports an interaction on a control message that is not bound.
func NewStaleControl(messageID string) error {
	return NewDomainError(CodeStaleControl, "control is no longer active", http.StatusGone,
		map[string]any{"message_id": messageID})
}

// NewPlatformError wraps a chat platform failure for an essential operation.
func NewPlatformError(op string, err error) error {
	return &DomainError{
		Code:       CodePlatform,
		Message:    fmt.Sprintf("platform %s failed", op),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewStoreError wraps a store failure; the triggering operation is aborted.
func NewStoreError(op string, err error) error {
	return &DomainError{
		Code:       CodeStore,
		Message:    fmt.Sprintf("store %s failed", op),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewConfigurationError reports a missing or invalid setting.
func NewConfigurationError(setting string) error {
	return NewDomainError(CodeConfiguration, fmt.Sprintf("%s is not configured", setting),
		http.StatusServiceUnavailable, map[string]any{"setting": setting})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
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

// MapError converts err to a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
