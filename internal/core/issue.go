package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/toolhub/ghapp-mcp/internal/github"
)

// GitHub's limits for a new issue.
const (
	MaxIssueTitleLen = 256
	MaxIssueBodyLen  = 65536
	MaxIssueLabels   = 100
	MaxLabelLen      = 50
	MaxAssignees     = 10
)

// checkIssueLimits rejects a create_issue payload GitHub would refuse, so
// the call fails without spending a request. Lengths are counted in runes.
func checkIssueLimits(in github.NewIssue) error {
	bad := func(field, format string, args ...any) error {
		return &ArgumentError{Operation: OpCreateIssue, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(in.Title) == "" {
		return bad("title", "must not be blank")
	}
	if utf8.RuneCountInString(in.Title) > MaxIssueTitleLen {
		return bad("title", "exceeds %d characters", MaxIssueTitleLen)
	}
	if utf8.RuneCountInString(in.Body) > MaxIssueBodyLen {
		return bad("body", "exceeds %d characters", MaxIssueBodyLen)
	}

	switch {
	case len(in.Labels) > MaxIssueLabels:
		return bad("labels", "has more than %d items", MaxIssueLabels)
	case len(in.Assignees) > MaxAssignees:
		return bad("assignees", "has more than %d items", MaxAssignees)
	}
	for _, l := range in.Labels {
		if strings.TrimSpace(l) == "" {
			return bad("labels", "must not contain blank values")
		}
		if utf8.RuneCountInString(l) > MaxLabelLen {
			return bad("labels", "contains a label longer than %d characters", MaxLabelLen)
		}
	}
	for _, a := range in.Assignees {
		if strings.TrimSpace(a) == "" {
			return bad("assignees", "must not contain blank values")
		}
	}
	return nil
}
