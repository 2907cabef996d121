package config

import (
	"github.com/kballard/go-shellquote"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/exec"
	"github.com/m-mizutani/drover/pkg/infra/secrets"
)

// Runner holds step execution configuration
type Runner struct {
	Shell        string
	SecretPrefix string
}

// Flags returns CLI flags for step execution configuration
func (c *Runner) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "shell",
			Usage:       "Shell used to run steps (e.g. \"bash -eu -c\")",
			Destination: &c.Shell,
			Sources:     cli.EnvVars("DROVER_SHELL"),
		},
		&cli.StringFlag{
			Name:        "secret-prefix",
			Usage:       "Environment variable prefix for pipeline secrets",
			Value:       secrets.DefaultEnvPrefix,
			Destination: &c.SecretPrefix,
			Sources:     cli.EnvVars("DROVER_SECRET_PREFIX"),
		},
	}
}

// Configure creates the command runner.
func (c *Runner) Configure() (interfaces.CommandRunner, error) {
	if c.Shell == "" {
		return exec.New(), nil
	}
	argv, err := shellquote.Split(c.Shell)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid shell command line", goerr.V("shell", c.Shell))
	}
	return exec.New(exec.WithShell(argv...)), nil
}

// Secrets creates the secret source for step secret resolution.
func (c *Runner) Secrets() interfaces.SecretSource {
	return secrets.NewEnv(c.SecretPrefix)
}
