package core

import (
	"strings"
	"testing"

	"github.com/toolhub/ghapp-mcp/internal/github"
)

func TestCheckIssueLimits(t *testing.T) {
	tests := []struct {
		name string
		in   github.NewIssue
		want string
	}{
		{name: "ok", in: github.NewIssue{Title: "hello", Body: "body", Labels: []string{"bug"}}},
		{name: "blank title", in: github.NewIssue{Title: "   "}, want: `create_issue: argument "title" must not be blank`},
		{name: "long title", in: github.NewIssue{Title: strings.Repeat("a", MaxIssueTitleLen+1)}, want: `create_issue: argument "title" exceeds 256 characters`},
		{name: "title in runes", in: github.NewIssue{Title: strings.Repeat("é", MaxIssueTitleLen)}},
		{name: "blank label", in: github.NewIssue{Title: "t", Labels: []string{"ok", " "}}, want: `create_issue: argument "labels" must not contain blank values`},
		{name: "long label", in: github.NewIssue{Title: "t", Labels: []string{strings.Repeat("l", MaxLabelLen+1)}}, want: `create_issue: argument "labels" contains a label longer than 50 characters`},
		{name: "too many assignees", in: github.NewIssue{Title: "t", Assignees: make([]string, MaxAssignees+1)}, want: `create_issue: argument "assignees" has more than 10 items`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkIssueLimits(tt.in)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid input, got %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("got %v, want %q", err, tt.want)
			}
		})
	}
}
