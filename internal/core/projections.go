package core

import (
	"strings"
	"time"

	gh "github.com/google/go-github/v76/github"

	"github.com/toolhub/ghapp-mcp/internal/github"
)

// Projections are explicit allow-lists of upstream fields. Nothing from the
// upstream object reaches the caller unless it is named here.

type createdPullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	State  string `json:"state"`
	Title  string `json:"title"`
}

type pullRequestDetail struct {
	Number    int     `json:"number"`
	URL       string  `json:"url"`
	State     string  `json:"state"`
	Title     string  `json:"title"`
	Body      *string `json:"body"`
	Head      string  `json:"head"`
	Base      string  `json:"base"`
	Mergeable *bool   `json:"mergeable"`
	Draft     bool    `json:"draft"`
	User      string  `json:"user,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

type pullRequestSummary struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"url"`
	Head   string `json:"head"`
	Base   string `json:"base"`
	User   string `json:"user,omitempty"`
	Draft  bool   `json:"draft"`
}

type searchHit struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	State      string `json:"state"`
	URL        string `json:"url"`
	Repository string `json:"repository"`
	User       string `json:"user,omitempty"`
}

type createdComment struct {
	ID   int64  `json:"id"`
	URL  string `json:"url"`
	Body string `json:"body"`
}

type createdIssue struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

type issueDetail struct {
	Number    int      `json:"number"`
	URL       string   `json:"url"`
	State     string   `json:"state"`
	Title     string   `json:"title"`
	Body      *string  `json:"body"`
	User      string   `json:"user,omitempty"`
	Labels    []string `json:"labels"`
	Assignees []string `json:"assignees"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

type repositoryDetail struct {
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	Description     *string `json:"description"`
	URL             string  `json:"url"`
	DefaultBranch   string  `json:"default_branch"`
	Private         bool    `json:"private"`
	Language        *string `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	ForksCount      int     `json:"forks_count"`
}

type branchSummary struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

type issueComment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	User      string `json:"user,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type reviewComment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	User      string `json:"user,omitempty"`
	Path      string `json:"path"`
	Line      *int   `json:"line"`
	CreatedAt string `json:"created_at,omitempty"`
}

type reviewThread struct {
	ThreadID   string          `json:"thread_id"`
	IsResolved bool            `json:"is_resolved"`
	IsOutdated bool            `json:"is_outdated"`
	Path       string          `json:"path"`
	Line       *int            `json:"line"`
	Comments   []reviewComment `json:"comments"`
}

type prComments struct {
	IssueComments []issueComment `json:"issue_comments"`
	ReviewThreads []reviewThread `json:"review_threads"`
}

type threadState struct {
	ThreadID   string `json:"thread_id"`
	IsResolved bool   `json:"is_resolved"`
}

func timestamp(ts gh.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func projectCreatedPullRequest(pr *gh.PullRequest) createdPullRequest {
	return createdPullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL(), State: pr.GetState(), Title: pr.GetTitle()}
}

func projectPullRequest(pr *gh.PullRequest) pullRequestDetail {
	return pullRequestDetail{
		Number:    pr.GetNumber(),
		URL:       pr.GetHTMLURL(),
		State:     pr.GetState(),
		Title:     pr.GetTitle(),
		Body:      pr.Body,
		Head:      pr.GetHead().GetRef(),
		Base:      pr.GetBase().GetRef(),
		Mergeable: pr.Mergeable,
		Draft:     pr.GetDraft(),
		User:      pr.GetUser().GetLogin(),
		CreatedAt: timestamp(pr.GetCreatedAt()),
		UpdatedAt: timestamp(pr.GetUpdatedAt()),
	}
}

func projectPullRequestSummaries(prs []*gh.PullRequest) []pullRequestSummary {
	out := make([]pullRequestSummary, 0, len(prs))
	for _, pr := range prs {
		out = append(out, pullRequestSummary{
			Number: pr.GetNumber(),
			Title:  pr.GetTitle(),
			State:  pr.GetState(),
			URL:    pr.GetHTMLURL(),
			Head:   pr.GetHead().GetRef(),
			Base:   pr.GetBase().GetRef(),
			User:   pr.GetUser().GetLogin(),
			Draft:  pr.GetDraft(),
		})
	}
	return out
}

func projectSearchHits(items []*gh.Issue) []searchHit {
	out := make([]searchHit, 0, len(items))
	for _, it := range items {
		out = append(out, searchHit{
			Number:     it.GetNumber(),
			Title:      it.GetTitle(),
			State:      it.GetState(),
			URL:        it.GetHTMLURL(),
			Repository: repoFromURL(it.GetRepositoryURL()),
			User:       it.GetUser().GetLogin(),
		})
	}
	return out
}

// repoFromURL turns https://api.github.com/repos/octo/hello into octo/hello.
func repoFromURL(u string) string {
	parts := strings.Split(strings.TrimRight(u, "/"), "/")
	if len(parts) < 2 {
		return u
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func projectCreatedComment(c *gh.IssueComment) createdComment {
	return createdComment{ID: c.GetID(), URL: c.GetHTMLURL(), Body: c.GetBody()}
}

func projectCreatedIssue(is *gh.Issue) createdIssue {
	return createdIssue{Number: is.GetNumber(), URL: is.GetHTMLURL(), Title: is.GetTitle()}
}

func projectIssue(is *gh.Issue) issueDetail {
	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(is.Assignees))
	for _, a := range is.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	return issueDetail{
		Number:    is.GetNumber(),
		URL:       is.GetHTMLURL(),
		State:     is.GetState(),
		Title:     is.GetTitle(),
		Body:      is.Body,
		User:      is.GetUser().GetLogin(),
		Labels:    labels,
		Assignees: assignees,
		CreatedAt: timestamp(is.GetCreatedAt()),
		UpdatedAt: timestamp(is.GetUpdatedAt()),
	}
}

func projectRepository(r *gh.Repository) repositoryDetail {
	return repositoryDetail{
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		Description:     r.Description,
		URL:             r.GetHTMLURL(),
		DefaultBranch:   r.GetDefaultBranch(),
		Private:         r.GetPrivate(),
		Language:        r.Language,
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
	}
}

func projectBranches(bs []*gh.Branch) []branchSummary {
	out := make([]branchSummary, 0, len(bs))
	for _, b := range bs {
		out = append(out, branchSummary{Name: b.GetName(), Protected: b.GetProtected()})
	}
	return out
}

func projectPRComments(issue []*gh.IssueComment, threads []github.ReviewThread) prComments {
	out := prComments{
		IssueComments: make([]issueComment, 0, len(issue)),
		ReviewThreads: make([]reviewThread, 0, len(threads)),
	}
	for _, c := range issue {
		out.IssueComments = append(out.IssueComments, issueComment{
			ID:        c.GetID(),
			Body:      c.GetBody(),
			User:      c.GetUser().GetLogin(),
			CreatedAt: timestamp(c.GetCreatedAt()),
		})
	}
	for _, t := range threads {
		rt := reviewThread{
			ThreadID:   t.ID,
			IsResolved: t.IsResolved,
			IsOutdated: t.IsOutdated,
			Path:       t.Path,
			Line:       t.Line,
			Comments:   make([]reviewComment, 0, len(t.Comments)),
		}
		for _, c := range t.Comments {
			created := ""
			if !c.CreatedAt.IsZero() {
				created = c.CreatedAt.UTC().Format(time.RFC3339)
			}
			rt.Comments = append(rt.Comments, reviewComment{
				ID:        c.ID,
				Body:      c.Body,
				User:      c.Author,
				Path:      c.Path,
				Line:      c.Line,
				CreatedAt: created,
			})
		}
		out.ReviewThreads = append(out.ReviewThreads, rt)
	}
	return out
}

func projectThreadState(s github.ThreadState) threadState {
	return threadState{ThreadID: s.ID, IsResolved: s.IsResolved}
}
