package core

import (
	"fmt"
	"strings"
)

// Policy enforces repository and operation allowlists parsed from
// comma-separated lists. An empty list allows everything.
type Policy struct {
	allowedRepos      map[string]bool
	allowedOperations map[string]bool
}

// NewPolicy creates a Policy from comma-separated allowlist strings.
// Repository entries are "owner/repo" or "owner/*".
func NewPolicy(repoCSV, operationCSV string) *Policy {
	return &Policy{
		allowedRepos:      parseCSV(strings.ToLower(repoCSV)),
		allowedOperations: parseCSV(operationCSV),
	}
}

// CheckRepo returns a *PolicyError if owner/repo is not allowed.
func (p *Policy) CheckRepo(owner, repo string) error {
	if p == nil || len(p.allowedRepos) == 0 {
		return nil
	}
	full := strings.ToLower(owner + "/" + repo)
	if p.allowedRepos[full] || p.allowedRepos[strings.ToLower(owner)+"/*"] {
		return nil
	}
	return &PolicyError{Reason: fmt.Sprintf("repository %q is not in the allowlist", owner+"/"+repo)}
}

// CheckOperation returns a *PolicyError if name is not allowed.
func (p *Policy) CheckOperation(name string) error {
	if p == nil || len(p.allowedOperations) == 0 {
		return nil
	}
	if !p.allowedOperations[name] {
		return &PolicyError{Reason: fmt.Sprintf("operation %q is not in the allowlist", name)}
	}
	return nil
}

func parseCSV(s string) map[string]bool {
	m := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			m[item] = true
		}
	}
	return m
}
