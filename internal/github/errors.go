package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v76/github"

	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

const (
	TransportREST    = "rest"
	TransportGraphQL = "graphql"
)

// AuthError reports a failed installation token exchange. It is distinct
// from UpstreamError so callers can tell "we could not authenticate" apart
// from "GitHub rejected the call".
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError is a failed REST or GraphQL call. Error returns GitHub's
// message verbatim.
type UpstreamError struct {
	Transport  string
	Operation  string
	StatusCode int // 0 for network failures and GraphQL-level errors
	Message    string
	// Type is the GraphQL error type (NOT_FOUND, FORBIDDEN, ...), when known.
	Type        string
	RateLimited bool
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Type == "NOT_FOUND"
}

func (e *UpstreamError) IsPermissionDenied() bool {
	return (e.StatusCode == http.StatusForbidden && !e.RateLimited) || e.Type == "FORBIDDEN"
}

func (e *UpstreamError) IsRateLimited() bool {
	return e.RateLimited || e.StatusCode == http.StatusTooManyRequests || e.Type == "RATE_LIMITED"
}

func (e *UpstreamError) IsValidation() bool {
	return e.StatusCode == http.StatusUnprocessableEntity
}

// IsNotFound reports whether err is an upstream "not found".
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.IsNotFound()
}

// IsRateLimited reports whether err is an upstream rate limit rejection.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.IsRateLimited()
}

// wrapREST normalizes a go-github error. An *AuthError raised by the token
// transport is passed through untouched.
func wrapREST(op string, err error) error {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	ue := &UpstreamError{Transport: TransportREST, Operation: op}
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		respErr  *gh.ErrorResponse
	)
	switch {
	case errors.As(err, &rateErr):
		ue.StatusCode = statusOf(rateErr.Response)
		ue.Message = rateErr.Message
		ue.RateLimited = true
	case errors.As(err, &abuseErr):
		ue.StatusCode = statusOf(abuseErr.Response)
		ue.Message = abuseErr.Message
		ue.RateLimited = true
	case errors.As(err, &respErr):
		ue.StatusCode = statusOf(respErr.Response)
		ue.Message = describeErrorResponse(respErr)
	default:
		ue.Message = err.Error()
	}
	if ue.Message == "" {
		ue.Message = fmt.Sprintf("%s: HTTP %d", op, ue.StatusCode)
	}
	telemetry.IncUpstreamError(TransportREST, ue.StatusCode)
	return ue
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// describeErrorResponse renders GitHub's message plus any field-level
// validation detail, e.g. "Validation Failed (A pull request already exists)".
func describeErrorResponse(e *gh.ErrorResponse) string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(statusOf(e.Response))
	}
	details := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		switch {
		case fe.Message != "":
			details = append(details, fe.Message)
		case fe.Field != "":
			details = append(details, strings.TrimSpace(fmt.Sprintf("%s %s %s", fe.Resource, fe.Field, fe.Code)))
		case fe.Code != "":
			details = append(details, fe.Code)
		}
	}
	if len(details) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (%s)", msg, strings.Join(details, "; "))
}
