package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAccessDenied     = errors.New("access denied")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrValidationFailed = validator.ErrValidationFailed

	ErrRoomNotFound         = fmt.Errorf("room %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrCourseNotFound       = fmt.Errorf("course %w", ErrNotFound)
	ErrProfileNotFound      = fmt.Errorf("profile %w", ErrNotFound)

	// ErrOnboardingIncomplete is a soft failure for listings and a hard
	// access denial for writes.
	ErrOnboardingIncomplete = fmt.Errorf("onboarding incomplete: %w", ErrAccessDenied)
)

// ValidationErrors is the field-level detail behind ErrValidationFailed
type ValidationErrors = validator.ValidationErrors
type ValidationError = validator.ValidationError

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}
}

// ===== PERMISSION ERRORS =====

// PermissionError describes a refused action on a resource. It matches
// ErrAccessDenied, or ErrForbidden for ownership violations.
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`

	kind error
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
		kind:       ErrAccessDenied,
	}
}

func NewForbiddenError(userID, resourceID, resource, action, reason string) *PermissionError {
	err := NewPermissionError(userID, resourceID, resource, action, reason)
	err.kind = ErrForbidden
	return err
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: user %s cannot %s %s %s: %s", e.kind, e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return e.kind
}

// ===== BUSINESS RULE ERRORS =====

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

// ===== HELPERS =====

// mapNotFound replaces a repository miss with the service-level sentinel.
func mapNotFound(err error, notFound error, op string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
