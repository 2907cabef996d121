package config

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/artifact"
)

// Artifact holds artifact store configuration. Setting a bucket selects
// Google Cloud Storage, otherwise artifacts land in a local directory.
type Artifact struct {
	Dir    string
	Bucket string
	Prefix string
}

// Flags returns CLI flags for artifact store configuration
func (c *Artifact) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "artifact-dir",
			Usage:       "Local directory for captured artifacts",
			Value:       ".drover/artifacts",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("DROVER_ARTIFACT_DIR"),
		},
		&cli.StringFlag{
			Name:        "artifact-bucket",
			Usage:       "GCS bucket for captured artifacts (overrides artifact-dir)",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("DROVER_ARTIFACT_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "artifact-prefix",
			Usage:       "Object key prefix within the GCS bucket",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("DROVER_ARTIFACT_PREFIX"),
		},
	}
}

// Configure creates the artifact store.
func (c *Artifact) Configure(ctx context.Context) (interfaces.ArtifactStore, error) {
	if c.Bucket != "" {
		return artifact.NewGCS(ctx, c.Bucket, artifact.WithPrefix(c.Prefix))
	}
	return artifact.NewLocal(c.Dir)
}
