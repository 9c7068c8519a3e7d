package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogOperations(t *testing.T) {
	ops := Catalog().Operations()
	require.Len(t, ops, 15)
	assert.Equal(t, OpCreatePullRequest, ops[0].Name)
	assert.Equal(t, OpGetAuthenticatedUser, ops[len(ops)-1].Name)

	for _, op := range ops {
		assert.NotEmpty(t, op.Description, op.Name)
	}

	spec, ok := Catalog().Lookup(OpCreatePRComment)
	require.True(t, ok)
	assert.Equal(t, []string{"owner", "repo", "pull_number", "body"}, spec.Required())
	assert.True(t, spec.RepoScoped())

	spec, _ = Catalog().Lookup(OpSearchPullRequests)
	assert.False(t, spec.RepoScoped())
	spec, _ = Catalog().Lookup(OpResolveReviewThread)
	assert.False(t, spec.RepoScoped())

	_, ok = Catalog().Lookup("merge_pull_request")
	assert.False(t, ok)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]OperationSpec{{Name: "a"}, {Name: "a"}})
	assert.EqualError(t, err, `duplicate operation "a"`)

	_, err = NewRegistry([]OperationSpec{{Name: ""}})
	assert.Error(t, err)
}

func TestBindCoercion(t *testing.T) {
	spec := OperationSpec{Name: "op", Fields: []FieldSpec{
		{Name: "n", Type: TypeNumber},
		{Name: "b", Type: TypeBoolean},
		{Name: "tags", Type: TypeStringArray},
	}}

	tests := []struct {
		name string
		in   map[string]any
		n    int
		b    bool
		tags []string
	}{
		{name: "native", in: map[string]any{"n": 3, "b": true, "tags": []string{"x"}}, n: 3, b: true, tags: []string{"x"}},
		{name: "json decoded", in: map[string]any{"n": float64(42), "b": false, "tags": []any{"x", "y"}}, n: 42, tags: []string{"x", "y"}},
		{name: "json number", in: map[string]any{"n": json.Number("7")}, n: 7},
		{name: "strings", in: map[string]any{"n": " 12 ", "b": "true"}, n: 12, b: true},
		{name: "explicit null", in: map[string]any{"n": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := spec.Bind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.n, args.Int("n"))
			assert.Equal(t, tt.b, args.Bool("b"))
			assert.Equal(t, tt.tags, args.Strings("tags"))
		})
	}
}

func TestBindRequiredAndDefaults(t *testing.T) {
	spec, _ := Catalog().Lookup(OpCreatePullRequest)

	_, err := spec.Bind(map[string]any{"owner": "o", "repo": "r", "title": "  ", "head": "h", "base": "b"})
	assert.EqualError(t, err, `create_pull_request: argument "title" must not be empty`)

	_, err = spec.Bind(map[string]any{"owner": "o", "repo": "r", "title": "t", "head": 5, "base": "b"})
	assert.EqualError(t, err, `create_pull_request: argument "head" must be a string`)

	args, err := spec.Bind(map[string]any{"owner": "o", "repo": "r", "title": "t", "head": "h", "base": "b", "extra": 1})
	require.NoError(t, err)
	assert.True(t, args.Has("draft"))
	assert.False(t, args.Bool("draft"))
	assert.Equal(t, "", args.String("body"))
	assert.False(t, args.Has("extra"))
}
