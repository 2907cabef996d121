package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/notify"
)

// Slack holds Slack notification configuration
type Slack struct {
	OAuthToken string `masq:"secret"`
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Usage:       "Slack bot token for run notifications (empty disables)",
			Destination: &c.OAuthToken,
			Sources:     cli.EnvVars("DROVER_SLACK_OAUTH_TOKEN"),
		},
	}
}

// Configure creates the Slack notifier, or nil when no token is set.
func (c *Slack) Configure() interfaces.Notifier {
	if c.OAuthToken == "" {
		return nil
	}
	return notify.NewSlack(c.OAuthToken)
}
