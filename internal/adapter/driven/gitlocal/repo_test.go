package gitlocal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goGit "github.com/go-git/go-git/v5"
	gitConfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteURL_HTTPS(t *testing.T) {
	slug, err := parseRemoteURL("https://github.com/octocat/hello-world.git")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", slug)
}

func TestParseRemoteURL_HTTPSWithoutSuffix(t *testing.T) {
	slug, err := parseRemoteURL("https://github.com/octocat/hello-world")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", slug)
}

func TestParseRemoteURL_SCPStyleSSH(t *testing.T) {
	slug, err := parseRemoteURL("git@github.com:octocat/hello-world.git")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", slug)
}

func TestParseRemoteURL_SSHScheme(t *testing.T) {
	slug, err := parseRemoteURL("ssh://git@github.com/octocat/hello-world.git")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", slug)
}

func TestParseRemoteURL_Invalid(t *testing.T) {
	for _, raw := range []string{
		"just-a-name",
		"https://github.com/only-owner",
		"https://github.com/too/many/segments",
		"git@github.com:",
	} {
		_, err := parseRemoteURL(raw)
		assert.Error(t, err, "url %q", raw)
	}
}

func initRepoWithRemote(t *testing.T, remoteURL string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := goGit.PlainInit(dir, false)
	require.NoError(t, err)

	if remoteURL != "" {
		_, err = repo.CreateRemote(&gitConfig.RemoteConfig{
			Name: "origin",
			URLs: []string{remoteURL},
		})
		require.NoError(t, err)
	}
	return dir
}

func TestDetectRepo(t *testing.T) {
	dir := initRepoWithRemote(t, "git@github.com:octocat/hello-world.git")

	slug, err := NewRepo(dir).DetectRepo()
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", slug)
}

func TestDetectRepo_FromSubdirectory(t *testing.T) {
	dir := initRepoWithRemote(t, "https://github.com/octocat/hello-world.git")
	sub := filepath.Join(dir, "internal", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	slug, err := NewRepo(sub).DetectRepo()
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", slug)
}

func TestDetectRepo_NoRemote(t *testing.T) {
	dir := initRepoWithRemote(t, "")
	_, err := NewRepo(dir).DetectRepo()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "origin")
}

func TestDetectRepo_NotARepo(t *testing.T) {
	_, err := NewRepo(t.TempDir()).DetectRepo()
	require.Error(t, err)
}

func TestCurrentBranch(t *testing.T) {
	dir := initRepoWithRemote(t, "https://github.com/octocat/hello-world.git")
	repo, err := goGit.PlainOpen(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial commit", &goGit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	branch, err := NewRepo(dir).CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCurrentBranch_NoCommits(t *testing.T) {
	dir := initRepoWithRemote(t, "")
	_, err := NewRepo(dir).CurrentBranch()
	require.Error(t, err)
}
