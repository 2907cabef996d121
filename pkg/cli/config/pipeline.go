package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Pipeline holds the pipeline definition location
type Pipeline struct {
	Path string
}

// Flags returns CLI flags for the pipeline definition
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pipeline",
			Aliases:     []string{"p"},
			Usage:       "Path to the pipeline definition",
			Value:       "drover.yml",
			Destination: &c.Path,
			Sources:     cli.EnvVars("DROVER_PIPELINE"),
		},
	}
}

// Load reads and validates the pipeline definition.
func (c *Pipeline) Load() (*model.Pipeline, error) {
	return model.LoadPipeline(c.Path)
}
