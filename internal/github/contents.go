package github

import (
	"context"
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v76/github"
)

// Contents is the resolved shape of a contents API response: exactly one of
// ContentsFile, ContentsDirectory or ContentsRaw.
type Contents interface {
	isContents()
}

// ContentsFile is a regular file with its decoded text.
type ContentsFile struct {
	Path string
	SHA  string
	Text string
}

type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

type ContentsDirectory struct {
	Entries []DirEntry
}

// ContentsRaw carries the upstream object unchanged when it is neither a
// directory nor a file with inline base64 content (symlinks, submodules,
// files too large to inline).
type ContentsRaw struct {
	JSON json.RawMessage
}

func (ContentsFile) isContents()      {}
func (ContentsDirectory) isContents() {}
func (ContentsRaw) isContents()       {}

func (c *Client) GetContents(ctx context.Context, owner, repo, path, ref string) (Contents, error) {
	var opts *gh.RepositoryContentGetOptions
	if ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref}
	}
	file, dir, _, err := c.rest.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, wrapREST("get file contents", err)
	}
	if file == nil {
		entries := make([]DirEntry, 0, len(dir))
		for _, e := range dir {
			entries = append(entries, DirEntry{Name: e.GetName(), Path: e.GetPath(), Type: e.GetType()})
		}
		return ContentsDirectory{Entries: entries}, nil
	}
	return resolveFile(file)
}

func resolveFile(file *gh.RepositoryContent) (Contents, error) {
	if file.GetType() == "file" && file.Content != nil {
		// GetContent decodes base64 and rejects any other encoding.
		if text, err := file.GetContent(); err == nil {
			return ContentsFile{Path: file.GetPath(), SHA: file.GetSHA(), Text: text}, nil
		}
	}
	raw, err := json.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("encode raw contents: %w", err)
	}
	return ContentsRaw{JSON: raw}, nil
}
