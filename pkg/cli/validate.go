package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
)

func cmdValidate() *cli.Command {
	var pipelineCfg config.Pipeline

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the pipeline definition",
		Flags:   pipelineCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := pipelineCfg.Load()
			if err != nil {
				fmt.Printf("%s %s\n", failMark, pipelineCfg.Path)
				return err
			}

			fmt.Printf("%s %s\n", okMark, pipelineCfg.Path)
			fmt.Printf("  pipeline:     %s\n", pipeline.Name)
			fmt.Printf("  triggers:     %s\n", strings.Join(pipeline.On.Tags, ", "))
			fmt.Printf("  combinations: %d\n", len(pipeline.Matrix.Expand()))
			fmt.Printf("  steps:        %d per combination, %d release\n",
				len(pipeline.Steps), len(pipeline.Release))
			fmt.Printf("  concurrency:  group %q, policy %s\n",
				pipeline.Concurrency.Group, pipeline.Concurrency.Policy)

			if pipeline.Publish.Index != "" {
				mode := "token"
				if pipeline.Publish.OIDC != nil {
					mode = "trusted publishing"
				}
				fmt.Printf("  publish:      %s %s\n",
					pipeline.Publish.Index, color.CyanString("(%s)", mode))
			}
			return nil
		},
	}
}
