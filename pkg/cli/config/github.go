package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/github"
)

// GitHub holds GitHub App configuration. The webhook secret authenticates
// incoming deliveries; the App credentials authenticate outgoing calls
// (source download, commit statuses).
type GitHub struct {
	WebhookSecret  string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("DROVER_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.IntFlag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("DROVER_GITHUB_APP_ID"),
		},
		&cli.IntFlag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("DROVER_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "Path to the GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("DROVER_GITHUB_APP_PRIVATE_KEY"),
		},
	}
}

// Client builds a GitHub API client from the App credentials. It returns
// nil without error when no App is configured: checkout then needs a
// local source and commit statuses are disabled.
func (c *GitHub) Client() (interfaces.GitHubClient, error) {
	if c.AppID == 0 {
		return nil, nil
	}
	return github.NewClientFromFile(c.AppID, c.InstallationID, c.PrivateKey)
}
