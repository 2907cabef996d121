package github

import (
	"context"
	"io"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
)

type client struct {
	githubClient *github.Client
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte) (interfaces.GitHubClient, error) {
	// Create GitHub App transport
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}

	return &client{
		githubClient: github.NewClient(&http.Client{Transport: itr}),
	}, nil
}

// NewClientFromFile creates a client loading the App private key from a PEM file
func NewClientFromFile(appID, installationID int64, keyPath string) (interfaces.GitHubClient, error) {
	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, keyPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load GitHub App private key", goerr.V("path", keyPath))
	}

	return &client{
		githubClient: github.NewClient(&http.Client{Transport: itr}),
	}, nil
}

// DownloadZipball downloads the source code zipball for a specific commit
func (c *client) DownloadZipball(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	// Get download URL for zipball
	url, _, err := c.githubClient.Repositories.GetArchiveLink(ctx, owner, repo, github.Zipball, &github.RepositoryContentGetOptions{
		Ref: ref,
	}, 3) // Follow up to 3 redirects

	if err != nil {
		return nil, goerr.Wrap(err, "failed to get zipball download URL",
			goerr.V("repo", owner+"/"+repo), goerr.V("ref", ref))
	}

	// Create HTTP request for download
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create download request", goerr.V("url", url.String()))
	}

	// Use the same client transport for authentication
	httpClient := &http.Client{Transport: c.githubClient.Client().Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download zipball", goerr.V("url", url.String()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status code for zipball download",
			goerr.V("code", resp.StatusCode), goerr.V("url", url.String()))
	}

	// Read the entire response
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response body")
	}

	return data, nil
}

// CreateStatus reports a commit status on the pushed commit
func (c *client) CreateStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) (*github.RepoStatus, *github.Response, error) {
	created, resp, err := c.githubClient.Repositories.CreateStatus(ctx, owner, repo, sha, status)
	if err != nil {
		return nil, resp, goerr.Wrap(err, "failed to create commit status",
			goerr.V("repo", owner+"/"+repo), goerr.V("sha", sha))
	}
	return created, resp, nil
}
