package services

import (
	"errors"
	"fmt"
)

// ===== SENTINEL ERRORS =====

var (
	// Exam errors
	ErrExamNotFound      = errors.New("exam not found")
	ErrExamNotPublished  = errors.New("exam is not published")
	ErrExamHasAttempts   = errors.New("exam already has attempts")
	ErrExamTitleConflict = errors.New("exam title already used by this teacher")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrAlreadyAttempted        = errors.New("exam already attempted and reattempts are disabled")

	// Submission errors
	ErrSubmissionNotFound = errors.New("submission not found")

	// Pool errors
	ErrPoolEntryNotFound = errors.New("pool question not found")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)

// ===== PERMISSION ERROR =====

// PermissionError carries who tried to do what to which resource, for the
// handler layer to turn into a 403.
type PermissionError struct {
	UserID     string
	ResourceID interface{}
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %v: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsPermissionError reports whether err is a PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// ===== VALIDATION ERROR =====

// ValidationError wraps a message the handler layer maps to a 400.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
