package github

import (
	"context"
	"iter"

	gh "github.com/google/go-github/v76/github"
)

// Client is the resource (REST) transport. Every request carries a token
// fetched from the broker immediately before it is sent.
type Client struct {
	rest   *gh.Client
	broker *Broker
}

// NewClient builds the REST adapter on top of broker. apiURL may be empty
// for api.github.com.
func NewClient(broker *Broker, apiURL string) (*Client, error) {
	rest, err := newRESTClient(broker.HTTPClient(), apiURL)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rest, broker: broker}, nil
}

type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
	Draft bool
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, in NewPullRequest) (*gh.PullRequest, error) {
	pr, _, err := c.rest.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.Ptr(in.Title),
		Head:  gh.Ptr(in.Head),
		Base:  gh.Ptr(in.Base),
		Body:  gh.Ptr(in.Body),
		Draft: gh.Ptr(in.Draft),
	})
	if err != nil {
		return nil, wrapREST("create pull request", err)
	}
	return pr, nil
}

func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*gh.PullRequest, error) {
	pr, _, err := c.rest.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, wrapREST("get pull request", err)
	}
	return pr, nil
}

type PullRequestFilter struct {
	State string
	Head  string
	Base  string
}

func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, f PullRequestFilter) iter.Seq2[*gh.PullRequest, error] {
	return pages(func(opts gh.ListOptions) ([]*gh.PullRequest, *gh.Response, error) {
		prs, resp, err := c.rest.PullRequests.List(ctx, owner, repo, &gh.PullRequestListOptions{
			State:       f.State,
			Head:        f.Head,
			Base:        f.Base,
			ListOptions: opts,
		})
		return prs, resp, wrapREST("list pull requests", err)
	})
}

// SearchPullRequests runs an issue search restricted to pull requests.
func (c *Client) SearchPullRequests(ctx context.Context, query string) iter.Seq2[*gh.Issue, error] {
	q := query + " is:pr"
	return pages(func(opts gh.ListOptions) ([]*gh.Issue, *gh.Response, error) {
		res, resp, err := c.rest.Search.Issues(ctx, q, &gh.SearchOptions{ListOptions: opts})
		if err != nil {
			return nil, resp, wrapREST("search pull requests", err)
		}
		return res.Issues, resp, nil
	})
}

func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) iter.Seq2[*gh.IssueComment, error] {
	return pages(func(opts gh.ListOptions) ([]*gh.IssueComment, *gh.Response, error) {
		comments, resp, err := c.rest.Issues.ListComments(ctx, owner, repo, number, &gh.IssueListCommentsOptions{ListOptions: opts})
		return comments, resp, wrapREST("list issue comments", err)
	})
}

// CreateIssueComment comments on an issue or a pull request; GitHub models
// pull request conversation comments as issue comments.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*gh.IssueComment, error) {
	comment, _, err := c.rest.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return nil, wrapREST("create issue comment", err)
	}
	return comment, nil
}

type NewIssue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

func (c *Client) CreateIssue(ctx context.Context, owner, repo string, in NewIssue) (*gh.Issue, error) {
	req := &gh.IssueRequest{Title: gh.Ptr(in.Title)}
	if in.Body != "" {
		req.Body = gh.Ptr(in.Body)
	}
	if in.Labels != nil {
		req.Labels = &in.Labels
	}
	if in.Assignees != nil {
		req.Assignees = &in.Assignees
	}
	issue, _, err := c.rest.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, wrapREST("create issue", err)
	}
	return issue, nil
}

func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*gh.Issue, error) {
	issue, _, err := c.rest.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, wrapREST("get issue", err)
	}
	return issue, nil
}

func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*gh.Repository, error) {
	r, _, err := c.rest.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, wrapREST("get repository", err)
	}
	return r, nil
}

func (c *Client) ListBranches(ctx context.Context, owner, repo string) iter.Seq2[*gh.Branch, error] {
	return pages(func(opts gh.ListOptions) ([]*gh.Branch, *gh.Response, error) {
		branches, resp, err := c.rest.Repositories.ListBranches(ctx, owner, repo, &gh.BranchListOptions{ListOptions: opts})
		return branches, resp, wrapREST("list branches", err)
	})
}

// GetApp returns the App this server authenticates as. It is served from
// /app with an app JWT, not the installation token.
func (c *Client) GetApp(ctx context.Context) (*gh.App, error) {
	return c.broker.GetApp(ctx)
}
