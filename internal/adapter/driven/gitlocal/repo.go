// Package gitlocal implements the LocalRepo port backed by go-git.
package gitlocal

import (
	"fmt"
	"strings"

	goGit "github.com/go-git/go-git/v5"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LocalRepo = (*Repo)(nil)

// Repo reads repository identity from the local working tree.
type Repo struct {
	dir string
}

// NewRepo constructs a Repo rooted at the provided directory. The directory
// may be anywhere inside a working tree; the .git directory is discovered by
// walking upward.
func NewRepo(dir string) *Repo {
	return &Repo{dir: dir}
}

// DetectRepo returns the "owner/repo" slug parsed from the origin remote URL.
func (r *Repo) DetectRepo() (string, error) {
	repo, err := goGit.PlainOpenWithOptions(r.dir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("resolve origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("origin remote has no URL")
	}

	slug, err := parseRemoteURL(urls[0])
	if err != nil {
		return "", fmt.Errorf("parse origin URL %q: %w", urls[0], err)
	}
	return slug, nil
}

// CurrentBranch returns the name of the checked-out branch.
func (r *Repo) CurrentBranch() (string, error) {
	repo, err := goGit.PlainOpenWithOptions(r.dir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	name := head.Name()
	if name.IsBranch() {
		return name.Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

// parseRemoteURL extracts "owner/repo" from HTTPS and SSH GitHub remote URLs.
// Accepted forms:
//
//	https://github.com/owner/repo.git
//	git@github.com:owner/repo.git
//	ssh://git@github.com/owner/repo.git
func parseRemoteURL(remoteURL string) (string, error) {
	s := strings.TrimSuffix(remoteURL, ".git")

	var path string
	switch {
	case strings.Contains(s, "://"):
		_, rest, _ := strings.Cut(s, "://")
		_, path, _ = strings.Cut(rest, "/")
	case strings.Contains(s, ":"):
		_, path, _ = strings.Cut(s, ":")
	default:
		return "", fmt.Errorf("unrecognized remote URL format")
	}

	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("expected owner/repo path, got %q", path)
	}
	return parts[0] + "/" + parts[1], nil
}
