package core

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v76/github"
	"golang.org/x/sync/errgroup"

	"github.com/toolhub/ghapp-mcp/internal/github"
	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

// Resources is the REST transport as the dispatcher uses it.
type Resources interface {
	CreatePullRequest(ctx context.Context, owner, repo string, in github.NewPullRequest) (*gh.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*gh.PullRequest, error)
	ListPullRequests(ctx context.Context, owner, repo string, f github.PullRequestFilter) iter.Seq2[*gh.PullRequest, error]
	SearchPullRequests(ctx context.Context, query string) iter.Seq2[*gh.Issue, error]
	ListIssueComments(ctx context.Context, owner, repo string, number int) iter.Seq2[*gh.IssueComment, error]
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*gh.IssueComment, error)
	CreateIssue(ctx context.Context, owner, repo string, in github.NewIssue) (*gh.Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*gh.Issue, error)
	GetRepository(ctx context.Context, owner, repo string) (*gh.Repository, error)
	ListBranches(ctx context.Context, owner, repo string) iter.Seq2[*gh.Branch, error]
	GetContents(ctx context.Context, owner, repo, path, ref string) (github.Contents, error)
	GetApp(ctx context.Context) (*gh.App, error)
}

// Graph is the GraphQL transport as the dispatcher uses it.
type Graph interface {
	ReviewThreads(ctx context.Context, owner, repo string, number int) iter.Seq2[github.ReviewThread, error]
	ResolveReviewThread(ctx context.Context, threadID string) (github.ThreadState, error)
	UnresolveReviewThread(ctx context.Context, threadID string) (github.ThreadState, error)
}

type DispatcherOptions struct {
	Registry *Registry // defaults to Catalog()
	Policy   *Policy
	Logger   *slog.Logger
	// NoReplyHost is the domain of synthesized bot emails, github.com by default.
	NoReplyHost string
}

type handler func(ctx context.Context, args Args) (any, error)

// Dispatcher routes invocations to the transports and shapes their replies.
type Dispatcher struct {
	registry    *Registry
	resources   Resources
	graph       Graph
	policy      *Policy
	logger      *slog.Logger
	noReplyHost string
	handlers    map[string]handler
}

func NewDispatcher(resources Resources, graph Graph, opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		registry:    opts.Registry,
		resources:   resources,
		graph:       graph,
		policy:      opts.Policy,
		logger:      opts.Logger,
		noReplyHost: opts.NoReplyHost,
	}
	if d.registry == nil {
		d.registry = Catalog()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.handlers = map[string]handler{
		OpCreatePullRequest:     d.createPullRequest,
		OpGetPullRequest:        d.getPullRequest,
		OpListPullRequests:      d.listPullRequests,
		OpSearchPullRequests:    d.searchPullRequests,
		OpListPRComments:        d.listPRComments,
		OpCreatePRComment:       d.createPRComment,
		OpCreateIssue:           d.createIssue,
		OpGetIssue:              d.getIssue,
		OpCreateIssueComment:    d.createIssueComment,
		OpGetRepository:         d.getRepository,
		OpListBranches:          d.listBranches,
		OpGetFileContents:       d.getFileContents,
		OpResolveReviewThread:   d.resolveReviewThread,
		OpUnresolveReviewThread: d.unresolveReviewThread,
		OpGetAuthenticatedUser:  d.getAuthenticatedUser,
	}
	return d
}

// Registry returns the catalog this dispatcher serves.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one invocation. It always returns a Result; transport
// errors, bad arguments and handler panics all become failure results.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	text, err := d.run(ctx, inv)
	elapsed := time.Since(start)

	label := inv.Name
	if _, known := d.registry.Lookup(inv.Name); !known {
		label = "unknown"
	}
	if err != nil {
		res := failure(err)
		telemetry.IncOperationCall(label, "error")
		telemetry.ObserveOperationDuration(label, elapsed)
		d.logger.Warn("operation failed",
			"trace_id", TraceID(ctx),
			"operation", inv.Name,
			"code", res.Code,
			"duration_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return res
	}

	telemetry.IncOperationCall(label, "ok")
	telemetry.ObserveOperationDuration(label, elapsed)
	d.logger.Info("operation completed",
		"trace_id", TraceID(ctx),
		"operation", inv.Name,
		"duration_ms", elapsed.Milliseconds(),
	)
	return Result{Text: text}
}

func (d *Dispatcher) run(ctx context.Context, inv Invocation) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error in %s: %v", inv.Name, r)
		}
	}()

	spec, ok := d.registry.Lookup(inv.Name)
	if !ok {
		return "", &UnknownOperationError{Name: inv.Name}
	}
	h, ok := d.handlers[spec.Name]
	if !ok {
		return "", &UnknownOperationError{Name: inv.Name}
	}
	if err := d.policy.CheckOperation(spec.Name); err != nil {
		return "", err
	}
	args, err := spec.Bind(inv.Arguments)
	if err != nil {
		return "", err
	}
	if spec.RepoScoped() {
		if err := d.policy.CheckRepo(args.String("owner"), args.String("repo")); err != nil {
			return "", err
		}
	}

	payload, err := h(ctx, args)
	if err != nil {
		return "", err
	}
	return render(payload)
}

func (d *Dispatcher) createPullRequest(ctx context.Context, a Args) (any, error) {
	pr, err := d.resources.CreatePullRequest(ctx, a.String("owner"), a.String("repo"), github.NewPullRequest{
		Title: a.String("title"),
		Head:  a.String("head"),
		Base:  a.String("base"),
		Body:  a.String("body"),
		Draft: a.Bool("draft"),
	})
	if err != nil {
		return nil, err
	}
	return projectCreatedPullRequest(pr), nil
}

func (d *Dispatcher) getPullRequest(ctx context.Context, a Args) (any, error) {
	pr, err := d.resources.GetPullRequest(ctx, a.String("owner"), a.String("repo"), a.Int("pull_number"))
	if err != nil {
		return nil, err
	}
	return projectPullRequest(pr), nil
}

func (d *Dispatcher) listPullRequests(ctx context.Context, a Args) (any, error) {
	prs, err := github.Collect(d.resources.ListPullRequests(ctx, a.String("owner"), a.String("repo"), github.PullRequestFilter{
		State: a.String("state"),
		Head:  a.String("head"),
		Base:  a.String("base"),
	}))
	if err != nil {
		return nil, err
	}
	return projectPullRequestSummaries(prs), nil
}

func (d *Dispatcher) searchPullRequests(ctx context.Context, a Args) (any, error) {
	items, err := github.Collect(d.resources.SearchPullRequests(ctx, a.String("query")))
	if err != nil {
		return nil, err
	}
	return projectSearchHits(items), nil
}

// listPRComments merges conversation comments (REST) with inline review
// threads (GraphQL). Both are fetched concurrently; either failing fails
// the whole call with that error.
func (d *Dispatcher) listPRComments(ctx context.Context, a Args) (any, error) {
	owner, repo, number := a.String("owner"), a.String("repo"), a.Int("pull_number")

	var (
		comments []*gh.IssueComment
		threads  []github.ReviewThread
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		comments, err = github.Collect(d.resources.ListIssueComments(gctx, owner, repo, number))
		return err
	})
	g.Go(func() error {
		var err error
		threads, err = github.Collect(d.graph.ReviewThreads(gctx, owner, repo, number))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return projectPRComments(comments, threads), nil
}

func (d *Dispatcher) createPRComment(ctx context.Context, a Args) (any, error) {
	c, err := d.resources.CreateIssueComment(ctx, a.String("owner"), a.String("repo"), a.Int("pull_number"), a.String("body"))
	if err != nil {
		return nil, err
	}
	return projectCreatedComment(c), nil
}

func (d *Dispatcher) createIssue(ctx context.Context, a Args) (any, error) {
	in := github.NewIssue{
		Title:     a.String("title"),
		Body:      a.String("body"),
		Labels:    a.Strings("labels"),
		Assignees: a.Strings("assignees"),
	}
	if err := checkIssueLimits(in); err != nil {
		return nil, err
	}
	is, err := d.resources.CreateIssue(ctx, a.String("owner"), a.String("repo"), in)
	if err != nil {
		return nil, err
	}
	return projectCreatedIssue(is), nil
}

func (d *Dispatcher) getIssue(ctx context.Context, a Args) (any, error) {
	is, err := d.resources.GetIssue(ctx, a.String("owner"), a.String("repo"), a.Int("issue_number"))
	if err != nil {
		return nil, err
	}
	return projectIssue(is), nil
}

func (d *Dispatcher) createIssueComment(ctx context.Context, a Args) (any, error) {
	c, err := d.resources.CreateIssueComment(ctx, a.String("owner"), a.String("repo"), a.Int("issue_number"), a.String("body"))
	if err != nil {
		return nil, err
	}
	return projectCreatedComment(c), nil
}

func (d *Dispatcher) getRepository(ctx context.Context, a Args) (any, error) {
	r, err := d.resources.GetRepository(ctx, a.String("owner"), a.String("repo"))
	if err != nil {
		return nil, err
	}
	return projectRepository(r), nil
}

func (d *Dispatcher) listBranches(ctx context.Context, a Args) (any, error) {
	bs, err := github.Collect(d.resources.ListBranches(ctx, a.String("owner"), a.String("repo")))
	if err != nil {
		return nil, err
	}
	return projectBranches(bs), nil
}

func (d *Dispatcher) getFileContents(ctx context.Context, a Args) (any, error) {
	c, err := d.resources.GetContents(ctx, a.String("owner"), a.String("repo"), a.String("path"), a.String("ref"))
	if err != nil {
		return nil, err
	}
	switch v := c.(type) {
	case github.ContentsFile:
		return rawText(v.Text), nil
	case github.ContentsDirectory:
		return v.Entries, nil
	case github.ContentsRaw:
		d.logger.Debug("contents returned unprojected", "path", a.String("path"))
		return rawJSON(v.JSON), nil
	default:
		return nil, fmt.Errorf("unexpected contents variant %T", c)
	}
}

func (d *Dispatcher) resolveReviewThread(ctx context.Context, a Args) (any, error) {
	st, err := d.graph.ResolveReviewThread(ctx, a.String("thread_id"))
	if err != nil {
		return nil, err
	}
	return projectThreadState(st), nil
}

func (d *Dispatcher) unresolveReviewThread(ctx context.Context, a Args) (any, error) {
	st, err := d.graph.UnresolveReviewThread(ctx, a.String("thread_id"))
	if err != nil {
		return nil, err
	}
	return projectThreadState(st), nil
}

func (d *Dispatcher) getAuthenticatedUser(ctx context.Context, _ Args) (any, error) {
	app, err := d.resources.GetApp(ctx)
	if err != nil {
		return nil, err
	}
	return BotIdentityFor(app.GetSlug(), app.GetID(), d.noReplyHost), nil
}
