package core

import "sync"

const (
	OpCreatePullRequest     = "create_pull_request"
	OpGetPullRequest        = "get_pull_request"
	OpListPullRequests      = "list_pull_requests"
	OpSearchPullRequests    = "search_pull_requests"
	OpListPRComments        = "list_pr_comments"
	OpCreatePRComment       = "create_pr_comment"
	OpCreateIssue           = "create_issue"
	OpGetIssue              = "get_issue"
	OpCreateIssueComment    = "create_issue_comment"
	OpGetRepository         = "get_repository"
	OpListBranches          = "list_branches"
	OpGetFileContents       = "get_file_contents"
	OpResolveReviewThread   = "resolve_review_thread"
	OpUnresolveReviewThread = "unresolve_review_thread"
	OpGetAuthenticatedUser  = "get_authenticated_user"
)

func owner(desc string) FieldSpec {
	return FieldSpec{Name: "owner", Type: TypeString, Required: true, Description: desc}
}

func repo() FieldSpec {
	return FieldSpec{Name: "repo", Type: TypeString, Required: true, Description: "Repository name"}
}

func number(name, desc string) FieldSpec {
	return FieldSpec{Name: name, Type: TypeNumber, Required: true, Description: desc}
}

func threadID() FieldSpec {
	return FieldSpec{Name: "thread_id", Type: TypeString, Required: true, Description: "GraphQL node id of the review thread (PRRT_...)"}
}

var operationSpecs = []OperationSpec{
	{
		Name:        OpCreatePullRequest,
		Description: "Create a new pull request in a repository",
		Fields: []FieldSpec{
			owner("Repository owner (user or organization)"),
			repo(),
			{Name: "title", Type: TypeString, Required: true, Description: "Pull request title"},
			{Name: "body", Type: TypeString, Description: "Pull request description", Default: ""},
			{Name: "head", Type: TypeString, Required: true, Description: "Branch containing the changes"},
			{Name: "base", Type: TypeString, Required: true, Description: "Branch to merge into (e.g., main)"},
			{Name: "draft", Type: TypeBoolean, Description: "Create as draft PR", Default: false},
		},
	},
	{
		Name:        OpGetPullRequest,
		Description: "Get details of a specific pull request",
		Fields:      []FieldSpec{owner("Repository owner"), repo(), number("pull_number", "Pull request number")},
	},
	{
		Name:        OpListPullRequests,
		Description: "List pull requests in a repository",
		Fields: []FieldSpec{
			owner("Repository owner"),
			repo(),
			{Name: "state", Type: TypeString, Description: "Pull request state", Default: "open", Enum: []string{"open", "closed", "all"}},
			{Name: "head", Type: TypeString, Description: "Filter by head branch (format: user:branch)"},
			{Name: "base", Type: TypeString, Description: "Filter by base branch"},
		},
	},
	{
		Name:        OpSearchPullRequests,
		Description: "Search for pull requests across repositories",
		Fields: []FieldSpec{
			{Name: "query", Type: TypeString, Required: true, Description: "Search query (GitHub search syntax)"},
		},
	},
	{
		Name:        OpListPRComments,
		Description: "List all comments on a pull request: conversation comments and inline review threads",
		Fields:      []FieldSpec{owner("Repository owner"), repo(), number("pull_number", "Pull request number")},
	},
	{
		Name:        OpCreatePRComment,
		Description: "Create a comment on a pull request",
		Fields: []FieldSpec{
			owner("Repository owner"),
			repo(),
			number("pull_number", "Pull request number"),
			{Name: "body", Type: TypeString, Required: true, Description: "Comment body"},
		},
	},
	{
		Name:        OpCreateIssue,
		Description: "Create a new issue in a repository",
		Fields: []FieldSpec{
			owner("Repository owner"),
			repo(),
			{Name: "title", Type: TypeString, Required: true, Description: "Issue title"},
			{Name: "body", Type: TypeString, Description: "Issue body"},
			{Name: "labels", Type: TypeStringArray, Description: "Labels to add"},
			{Name: "assignees", Type: TypeStringArray, Description: "Users to assign"},
		},
	},
	{
		Name:        OpGetIssue,
		Description: "Get details of a specific issue",
		Fields:      []FieldSpec{owner("Repository owner"), repo(), number("issue_number", "Issue number")},
	},
	{
		Name:        OpCreateIssueComment,
		Description: "Create a comment on an issue or pull request",
		Fields: []FieldSpec{
			owner("Repository owner"),
			repo(),
			number("issue_number", "Issue or PR number"),
			{Name: "body", Type: TypeString, Required: true, Description: "Comment body"},
		},
	},
	{
		Name:        OpGetRepository,
		Description: "Get repository information",
		Fields:      []FieldSpec{owner("Repository owner"), repo()},
	},
	{
		Name:        OpListBranches,
		Description: "List branches in a repository",
		Fields:      []FieldSpec{owner("Repository owner"), repo()},
	},
	{
		Name:        OpGetFileContents,
		Description: "Get contents of a file from a repository",
		Fields: []FieldSpec{
			owner("Repository owner"),
			repo(),
			{Name: "path", Type: TypeString, Required: true, Description: "Path to the file"},
			{Name: "ref", Type: TypeString, Description: "Branch, tag, or commit SHA"},
		},
	},
	{
		Name:        OpResolveReviewThread,
		Description: "Mark a pull request review thread as resolved",
		Fields:      []FieldSpec{threadID()},
	},
	{
		Name:        OpUnresolveReviewThread,
		Description: "Mark a pull request review thread as unresolved",
		Fields:      []FieldSpec{threadID()},
	},
	{
		Name:        OpGetAuthenticatedUser,
		Description: "Get the bot identity (name and no-reply email) this App commits and comments as",
	},
}

var catalog = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(operationSpecs)
	if err != nil {
		panic(err)
	}
	return r
})

// Catalog returns the fixed operation registry.
func Catalog() *Registry {
	return catalog()
}
