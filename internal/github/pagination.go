package github

import (
	"iter"

	gh "github.com/google/go-github/v76/github"
)

const (
	pageSize = 100
	// maxPages caps every listing at 1000 items.
	maxPages = 10
)

// pages lazily walks a paginated REST listing. Nothing is fetched until the
// sequence is ranged over; iteration stops at the first error.
func pages[T any](fetch func(opts gh.ListOptions) ([]T, *gh.Response, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		opts := gh.ListOptions{Page: 1, PerPage: pageSize}
		for n := 0; n < maxPages; n++ {
			items, resp, err := fetch(opts)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if resp == nil || resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// Collect drains seq into a slice, failing on the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := make([]T, 0)
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
