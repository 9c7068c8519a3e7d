package core

import (
	"errors"
	"fmt"

	"github.com/toolhub/ghapp-mcp/internal/github"
)

// CodedError is implemented by domain errors that carry a machine-readable code.
type CodedError interface {
	error
	ErrorCode() string
}

const (
	CodeUnknownOperation       = "unknown_operation"
	CodeInvalidArguments       = "invalid_arguments"
	CodePolicyDenied           = "policy_denied"
	CodeAuthFailed             = "auth_failed"
	CodeGitHubNotFound         = "github_not_found"
	CodeGitHubPermissionDenied = "github_permission_denied"
	CodeGitHubRateLimited      = "github_rate_limited"
	CodeGitHubValidationFailed = "github_validation_failed"
	CodeUpstreamError          = "upstream_error"
	CodeInternalError          = "internal_error"
)

type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string     { return "unknown operation: " + e.Name }
func (e *UnknownOperationError) ErrorCode() string { return CodeUnknownOperation }

// ArgumentError is an argument that failed binding; no upstream call is made.
type ArgumentError struct {
	Operation string
	Field     string
	Reason    string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: argument %q %s", e.Operation, e.Field, e.Reason)
}

func (e *ArgumentError) ErrorCode() string { return CodeInvalidArguments }

// PolicyError is an operation or repository outside the configured allowlists.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string     { return e.Reason }
func (e *PolicyError) ErrorCode() string { return CodePolicyDenied }

// ErrorCode classifies err for logs and metrics. It never alters the
// message shown to the caller.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded CodedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}

	var authErr *github.AuthError
	if errors.As(err, &authErr) {
		return CodeAuthFailed
	}

	var ue *github.UpstreamError
	if errors.As(err, &ue) {
		switch {
		case ue.IsRateLimited():
			return CodeGitHubRateLimited
		case ue.IsNotFound():
			return CodeGitHubNotFound
		case ue.IsPermissionDenied():
			return CodeGitHubPermissionDenied
		case ue.IsValidation():
			return CodeGitHubValidationFailed
		default:
			return CodeUpstreamError
		}
	}
	return CodeInternalError
}
