// Package application contains the reconciliation engine and the services
// built on top of it: thread listing, reviewer status detection, stack
// discovery, triage, bulk resolution, re-review triggering, and polling.
// Services depend only on port interfaces and are wired in cmd.
package application

import (
	"fmt"
	"strings"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
)

// resolveRepo splits an explicit "owner/repo" slug, or detects the slug from
// the local git remote when repo is empty.
func resolveRepo(repo string, local driven.LocalRepo) (owner, name string, err error) {
	if repo == "" {
		if local == nil {
			return "", "", fmt.Errorf("no repo given and no local repository available")
		}
		repo, err = local.DetectRepo()
		if err != nil {
			return "", "", fmt.Errorf("detecting repo from local remote: %w", err)
		}
	}

	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/repo", repo)
	}
	return owner, name, nil
}
