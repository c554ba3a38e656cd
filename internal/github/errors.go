package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	gogh "github.com/google/go-github/v68/github"
)

// AuthError means no usable credential resolved or the token was rejected.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("github auth: %s", e.Reason)
}

// NotFoundError means the repo, ref, or path does not exist or is not
// visible with the current credential.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// WriteConflictError means a blob SHA precondition failed, typically due to
// a concurrent external edit on the same branch.
type WriteConflictError struct {
	Path string
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("write conflict on %s (blob SHA precondition failed)", e.Path)
}

// PermissionError means the credential is valid but lacks write access to
// the repository. Executions retry these once with an installation token.
type PermissionError struct {
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Resource)
}

// BranchExistsError means ref creation failed because the branch already
// exists. Execution treats this as a benign idempotent-retry signal.
type BranchExistsError struct {
	Branch string
}

func (e *BranchExistsError) Error() string {
	return fmt.Sprintf("branch %s already exists", e.Branch)
}

// classify maps a go-github error to the GitPilot error taxonomy. Errors
// that do not fit the taxonomy pass through wrapped.
func classify(err error, resource string) error {
	if err == nil {
		return nil
	}
	var ghErr *gogh.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return err
	}
	switch ghErr.Response.StatusCode {
	case http.StatusUnauthorized:
		return &AuthError{Reason: ghErr.Message}
	case http.StatusNotFound:
		return &NotFoundError{Resource: resource}
	case http.StatusForbidden:
		return &PermissionError{Resource: resource}
	case http.StatusConflict:
		return &WriteConflictError{Path: resource}
	case http.StatusUnprocessableEntity:
		if strings.Contains(ghErr.Message, "already exists") {
			return &BranchExistsError{Branch: resource}
		}
	}
	return err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsPermissionDenied reports whether err is a PermissionError.
func IsPermissionDenied(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

// IsBranchExists reports whether err is a BranchExistsError.
func IsBranchExists(err error) bool {
	var target *BranchExistsError
	return errors.As(err, &target)
}

// IsWriteConflict reports whether err is a WriteConflictError.
func IsWriteConflict(err error) bool {
	var target *WriteConflictError
	return errors.As(err, &target)
}
