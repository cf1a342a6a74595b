// Package errors provides standardized error handling for the intake engine.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Intake taxonomy
	ErrCodeExtractionMiss       ErrorCode = "EXTRACTION_MISS"
	ErrCodeValidationReject     ErrorCode = "VALIDATION_REJECT"
	ErrCodeRuleNoMatch          ErrorCode = "RULE_NO_MATCH"
	ErrCodeDuplicateOpportunity ErrorCode = "DUPLICATE_OPPORTUNITY"
	ErrCodeDownstreamFailure    ErrorCode = "DOWNSTREAM_FAILURE"

	// Collaborator failures
	ErrCodeStoreConnectionFailed ErrorCode = "STORE_CONNECTION_FAILED"
	ErrCodeStoreWriteFailed      ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeStoreVersionConflict  ErrorCode = "STORE_VERSION_CONFLICT"
	ErrCodeDirectoryLookupFailed ErrorCode = "DIRECTORY_LOOKUP_FAILED"
	ErrCodeMailFetchFailed       ErrorCode = "MAIL_FETCH_FAILED"
	ErrCodeNotificationFailed    ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeETAIndexFailed        ErrorCode = "ETA_INDEX_FAILED"
	ErrCodeRuleConfigInvalid     ErrorCode = "RULE_CONFIG_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewExtractionMissError marks a field the extractor could not locate.
// Non-fatal: the caller stores the sentinel value and continues.
func NewExtractionMissError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionMiss,
		Message:   "Field not found during extraction",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationRejectError marks a value that was present but failed a
// field-specific rule. Treated exactly like a miss downstream.
func NewValidationRejectError(field, value string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationReject,
		Message:   "Extracted value failed field validation",
		Details:   fmt.Sprintf("field: %s, value: %s", field, value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateOpportunityError reports an idempotent skip: the opportunity
// already has an assignment.
func NewDuplicateOpportunityError(opportunityID, existingID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateOpportunity,
		Message:   "Assignment already exists for opportunity",
		Details:   fmt.Sprintf("opportunityId: %s, assignmentId: %s", opportunityID, existingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDownstreamFailureError wraps a persistence or network error raised
// while performing an action. The owning email stays unprocessed.
func NewDownstreamFailureError(collaborator string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDownstreamFailure,
		Message:   fmt.Sprintf("Collaborator '%s' call failed", collaborator),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreWriteFailedError creates a retryable persistence error.
func NewStoreWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Assignment store write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreVersionConflictError reports a lost optimistic-concurrency race.
// Retryable: the next pass re-reads and re-applies.
func NewStoreVersionConflictError(assignmentID string, version int) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreVersionConflict,
		Message:   "Assignment was modified concurrently",
		Details:   fmt.Sprintf("assignmentId: %s, expectedVersion: %d", assignmentID, version),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDirectoryLookupFailedError creates a retryable directory error.
func NewDirectoryLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDirectoryLookupFailed,
		Message:   "Directory lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMailFetchFailedError creates a retryable mail collaborator error.
func NewMailFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMailFetchFailed,
		Message:   "Mail fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationFailedError creates a notification delivery error. Never
// propagated into the owning state transition.
func NewNotificationFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleConfigInvalidError creates a non-retryable configuration error.
func NewRuleConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleConfigInvalid,
		Message:   "Processing rule configuration failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreConnectionFailed,
		ErrCodeStoreWriteFailed,
		ErrCodeDirectoryLookupFailed,
		ErrCodeMailFetchFailed,
		ErrCodeNotificationFailed,
		ErrCodeETAIndexFailed,
		ErrCodeDownstreamFailure:
		return 3

	case ErrCodeStoreVersionConflict:
		return 1

	default:
		return 0 // Business outcomes: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "VALIDATION"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "STORE"):
		return "STORE"
	case strings.Contains(codeStr, "DIRECTORY"):
		return "DIRECTORY"
	case strings.Contains(codeStr, "MAIL"):
		return "MAIL"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "RULE"):
		return "RULES"
	default:
		return "OTHER"
	}
}
