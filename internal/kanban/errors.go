package kanban

import (
	"errors"
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	// Retryable marks failures recovered by reconciliation; the originating
	// action can simply be retried.
	Retryable bool
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func permissionDenied(action string) *DomainError {
	return domainError(http.StatusForbidden, "PERMISSION_DENIED", "not allowed to "+action, nil)
}

func notFound(kind, id string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", kind+" "+id+" not found", nil)
}

func validationError(code, message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, code, message, nil)
}

func remoteCommitError(err error) *DomainError {
	e := domainError(http.StatusBadGateway, "REMOTE_COMMIT_FAILED", "persistence commit failed; local state was reconciled, retry the action", err.Error())
	e.Retryable = true
	return e
}

// IsPermissionDenied reports whether err is a permission denial, so callers
// can tell it apart from validation and missing-data failures.
func IsPermissionDenied(err error) bool {
	var domain *DomainError
	return errors.As(err, &domain) && domain.Code == "PERMISSION_DENIED"
}

// IsRetryable reports whether the failed action can be retried as-is.
func IsRetryable(err error) bool {
	var domain *DomainError
	return errors.As(err, &domain) && domain.Retryable
}
