package commands

import (
	"vcfcreds/cmd/vcfctl/client"
	"vcfcreds/cmd/vcfctl/config"
	"vcfcreds/version"

	"github.com/urfave/cli/v3"
)

// NewApp creates the root CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "vcfctl",
		Usage:   "vcfcreds CLI - fetch and manage VCF deployment credentials",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "vcfcreds server URL",
			},
		},
		Commands: []*cli.Command{
			FetchCommand(),
			EnvCommand(),
			CredsCommand(),
		},
	}
}

// newClient resolves the server URL: --server > VCFCREDS_SERVER_URL > config file > default.
func newClient(c *cli.Command) (*client.HTTPClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	serverURL := cfg.GetServerURL()
	if c.IsSet("server") {
		serverURL = c.String("server")
	}
	return client.NewHTTPClient(serverURL), nil
}
