package config

import "github.com/urfave/cli/v3"

// Server holds server configuration
type Server struct {
	Addr    string
	BaseURL string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("DROVER_ADDR"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "External base URL, used as the target of commit statuses",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("DROVER_BASE_URL"),
		},
	}
}
