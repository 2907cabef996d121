package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/index"
)

// Index holds package index client configuration. The signing key is
// only needed for trusted publishing (oidc in the pipeline file); token
// based publishing needs no flags here.
type Index struct {
	Issuer     string
	SigningKey string
}

// Flags returns CLI flags for package index configuration
func (c *Index) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "index-issuer",
			Usage:       "Issuer claim of minted identity tokens",
			Destination: &c.Issuer,
			Sources:     cli.EnvVars("DROVER_INDEX_ISSUER"),
		},
		&cli.StringFlag{
			Name:        "index-signing-key",
			Usage:       "Path to the PEM private key for trusted publishing",
			Destination: &c.SigningKey,
			Sources:     cli.EnvVars("DROVER_INDEX_SIGNING_KEY"),
		},
	}
}

// Configure creates the package index client.
func (c *Index) Configure() (interfaces.IndexPublisher, error) {
	var opts []index.Option
	if c.Issuer != "" {
		opts = append(opts, index.WithIssuer(c.Issuer))
	}
	if c.SigningKey != "" {
		key, err := index.LoadSigningKey(c.SigningKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, index.WithSigningKey(key))
	}
	return index.New(opts...), nil
}
