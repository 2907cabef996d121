package config

import (
	"context"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

// Gemini holds Gemini LLM configuration
type Gemini struct {
	ProjectID string
	Location  string
	Model     string
}

// Flags returns CLI flags for Gemini configuration
func (c *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project-id",
			Usage:       "Google Cloud Project ID for Gemini (empty disables failure analysis)",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DROVER_GEMINI_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Vertex AI location/region",
			Value:       "us-central1",
			Destination: &c.Location,
			Sources:     cli.EnvVars("DROVER_GEMINI_LOCATION"),
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model to use",
			Value:       "gemini-2.5-flash",
			Destination: &c.Model,
			Sources:     cli.EnvVars("DROVER_GEMINI_MODEL"),
		},
	}
}

// Configure creates a Gemini client via Vertex AI with ADC. It returns
// nil without error when no project is configured.
func (c *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if c.ProjectID == "" {
		return nil, nil
	}
	return gemini.New(ctx, c.Location, c.ProjectID,
		gemini.WithModel(c.Model),
	)
}
