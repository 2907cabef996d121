package interfaces

import (
	"context"

	"github.com/google/go-github/v75/github"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// DownloadZipball downloads the source code zipball for a specific commit
	DownloadZipball(ctx context.Context, owner, repo, ref string) ([]byte, error)

	// CreateStatus reports a commit status on the pushed commit
	CreateStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) (*github.RepoStatus, *github.Response, error)
}
