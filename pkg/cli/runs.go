package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

func cmdRuns() *cli.Command {
	var (
		storeCfg config.Store
		limit    int64
		runID    string
	)

	flags := append(storeCfg.Flags(),
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of runs to list",
			Value:       20,
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Show one run in full",
			Destination: &runID,
		},
	)

	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded pipeline runs",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := storeCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			if runID != "" {
				run, err := store.Get(ctx, types.RunID(runID))
				if err != nil {
					return err
				}
				printRun(run)
				return nil
			}

			runs, err := store.List(ctx, int(limit))
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, run := range runs {
				printRunLine(run)
			}
			return nil
		},
	}
}
