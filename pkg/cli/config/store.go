package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/runstore"
)

// Store holds run store configuration
type Store struct {
	Type       string
	Path       string
	ProjectID  string
	Collection string
}

// Flags returns CLI flags for run store configuration
func (c *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store-type",
			Usage:       "Run store backend (memory, sqlite, firestore)",
			Value:       "memory",
			Destination: &c.Type,
			Sources:     cli.EnvVars("DROVER_STORE_TYPE"),
		},
		&cli.StringFlag{
			Name:        "store-path",
			Usage:       "SQLite database path",
			Value:       "drover.db",
			Destination: &c.Path,
			Sources:     cli.EnvVars("DROVER_STORE_PATH"),
		},
		&cli.StringFlag{
			Name:        "store-project-id",
			Usage:       "Google Cloud Project ID for Firestore",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DROVER_STORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "store-collection",
			Usage:       "Firestore collection for runs",
			Value:       "drover_runs",
			Destination: &c.Collection,
			Sources:     cli.EnvVars("DROVER_STORE_COLLECTION"),
		},
	}
}

// Configure creates the run store for the selected backend.
func (c *Store) Configure(ctx context.Context) (interfaces.RunStore, error) {
	switch c.Type {
	case "memory":
		return runstore.NewMemory(), nil
	case "sqlite":
		return runstore.NewSQLite(c.Path)
	case "firestore":
		if c.ProjectID == "" {
			return nil, goerr.New("store-project-id is required for the firestore store")
		}
		return runstore.NewFirestore(ctx, c.ProjectID, runstore.WithCollection(c.Collection))
	default:
		return nil, goerr.New("invalid store type", goerr.V("type", c.Type))
	}
}
