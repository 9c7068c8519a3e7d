package github

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// ReviewThread is an inline review thread with its comments.
type ReviewThread struct {
	ID         string
	IsResolved bool
	IsOutdated bool
	Path       string
	Line       *int
	Comments   []ReviewComment
}

type ReviewComment struct {
	ID        int64
	NodeID    string
	Body      string
	Author    string
	Path      string
	Line      *int
	CreatedAt time.Time
	URL       string
}

// ThreadState is the result of a resolve or unresolve mutation.
type ThreadState struct {
	ID         string
	IsResolved bool
}

const reviewThreadsQuery = `query($owner: String!, $repo: String!, $number: Int!, $cursor: String) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      reviewThreads(first: 100, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          isResolved
          isOutdated
          path
          line
          comments(first: 100) {
            nodes {
              id
              databaseId
              body
              path
              line
              createdAt
              url
              author { login }
            }
          }
        }
      }
    }
  }
}`

type threadNode struct {
	ID         string `json:"id"`
	IsResolved bool   `json:"isResolved"`
	IsOutdated bool   `json:"isOutdated"`
	Path       string `json:"path"`
	Line       *int   `json:"line"`
	Comments   struct {
		Nodes []struct {
			ID         string    `json:"id"`
			DatabaseID int64     `json:"databaseId"`
			Body       string    `json:"body"`
			Path       string    `json:"path"`
			Line       *int      `json:"line"`
			CreatedAt  time.Time `json:"createdAt"`
			URL        string    `json:"url"`
			Author     *struct {
				Login string `json:"login"`
			} `json:"author"`
		} `json:"nodes"`
	} `json:"comments"`
}

type reviewThreadsData struct {
	Repository *struct {
		PullRequest *struct {
			ReviewThreads struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []threadNode `json:"nodes"`
			} `json:"reviewThreads"`
		} `json:"pullRequest"`
	} `json:"repository"`
}

// ReviewThreads lazily pages through the review threads of a pull request.
func (g *GraphQL) ReviewThreads(ctx context.Context, owner, repo string, number int) iter.Seq2[ReviewThread, error] {
	return func(yield func(ReviewThread, error) bool) {
		vars := map[string]any{"owner": owner, "repo": repo, "number": number}
		for n := 0; n < maxPages; n++ {
			var data reviewThreadsData
			if err := g.Query(ctx, "list review threads", reviewThreadsQuery, vars, &data); err != nil {
				yield(ReviewThread{}, err)
				return
			}
			if data.Repository == nil || data.Repository.PullRequest == nil {
				yield(ReviewThread{}, g.fail("list review threads", 0, "NOT_FOUND",
					fmt.Sprintf("Could not resolve to a PullRequest with the number of %d.", number)))
				return
			}
			page := data.Repository.PullRequest.ReviewThreads
			for _, node := range page.Nodes {
				if !yield(node.thread(), nil) {
					return
				}
			}
			if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == "" {
				return
			}
			vars["cursor"] = page.PageInfo.EndCursor
		}
	}
}

func (n threadNode) thread() ReviewThread {
	t := ReviewThread{
		ID:         n.ID,
		IsResolved: n.IsResolved,
		IsOutdated: n.IsOutdated,
		Path:       n.Path,
		Line:       n.Line,
		Comments:   make([]ReviewComment, 0, len(n.Comments.Nodes)),
	}
	for _, c := range n.Comments.Nodes {
		rc := ReviewComment{
			ID:        c.DatabaseID,
			NodeID:    c.ID,
			Body:      c.Body,
			Path:      c.Path,
			Line:      c.Line,
			CreatedAt: c.CreatedAt,
			URL:       c.URL,
		}
		if c.Author != nil {
			rc.Author = c.Author.Login
		}
		t.Comments = append(t.Comments, rc)
	}
	return t
}

const (
	resolveThreadMutation = `mutation($threadId: ID!) {
  resolveReviewThread(input: {threadId: $threadId}) {
    thread { id isResolved }
  }
}`
	unresolveThreadMutation = `mutation($threadId: ID!) {
  unresolveReviewThread(input: {threadId: $threadId}) {
    thread { id isResolved }
  }
}`
)

type threadPayload struct {
	Thread *struct {
		ID         string `json:"id"`
		IsResolved bool   `json:"isResolved"`
	} `json:"thread"`
}

func (g *GraphQL) ResolveReviewThread(ctx context.Context, threadID string) (ThreadState, error) {
	var data struct {
		Payload threadPayload `json:"resolveReviewThread"`
	}
	if err := g.Query(ctx, "resolve review thread", resolveThreadMutation, map[string]any{"threadId": threadID}, &data); err != nil {
		return ThreadState{}, err
	}
	return g.threadState("resolve review thread", threadID, data.Payload)
}

func (g *GraphQL) UnresolveReviewThread(ctx context.Context, threadID string) (ThreadState, error) {
	var data struct {
		Payload threadPayload `json:"unresolveReviewThread"`
	}
	if err := g.Query(ctx, "unresolve review thread", unresolveThreadMutation, map[string]any{"threadId": threadID}, &data); err != nil {
		return ThreadState{}, err
	}
	return g.threadState("unresolve review thread", threadID, data.Payload)
}

func (g *GraphQL) threadState(op, threadID string, p threadPayload) (ThreadState, error) {
	if p.Thread == nil {
		return ThreadState{}, g.fail(op, 0, "NOT_FOUND", fmt.Sprintf("Could not resolve to a node with the global id of '%s'", threadID))
	}
	return ThreadState{ID: p.Thread.ID, IsResolved: p.Thread.IsResolved}, nil
}
