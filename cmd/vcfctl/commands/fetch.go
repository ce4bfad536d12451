package commands

import (
	"context"
	"fmt"
	"io"

	"vcfcreds/app/services/credsync"
	"vcfcreds/cmd/vcfctl/config"
	"vcfcreds/cmd/vcfctl/output"
	"vcfcreds/internal/logging"
	"vcfcreds/internal/syncmetrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// FetchCommand runs one sync pass locally against the endpoints of a
// deployment file. Nothing is stored.
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch credentials directly from a deployment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the deployment file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, csv)",
				Value: output.FormatJSON,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level for diagnostics on stderr",
				Value: "warn",
			},
		},
		Action: fetchAction,
	}
}

func fetchAction(ctx context.Context, c *cli.Command) error {
	return runFetch(ctx, c, credsync.New(nil, nil, credsync.WithMetrics(syncmetrics.New(prometheus.NewRegistry()))))
}

func runFetch(ctx context.Context, c *cli.Command, svc *credsync.Service) error {
	stderr := c.Root().ErrWriter
	if err := logging.ConfigureOutput(stderr, c.String("log-level"), logging.FormatText); err != nil {
		return err
	}

	formatter, err := output.New(c.String("format"))
	if err != nil {
		return err
	}

	deployment, err := config.LoadDeployment(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load deployment: %w", err)
	}

	res, err := svc.RunSync(ctx, deploymentConfig(deployment))
	printWarnings(stderr, res)
	if err != nil {
		return err
	}

	out, err := formatter.Format(res.Records)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	fmt.Fprintln(c.Root().Writer, out)
	return nil
}

func deploymentConfig(d *config.Deployment) credsync.DeploymentConfig {
	source := func(s *config.Source) *credsync.SourceConfig {
		if s == nil {
			return nil
		}
		return &credsync.SourceConfig{Host: s.Host, Username: s.Username, Password: s.Password, VerifyTLS: s.VerifyTLS}
	}
	return credsync.DeploymentConfig{
		DeploymentID: d.DeploymentID,
		Installer:    source(d.Installer),
		Manager:      source(d.Manager),
	}
}

func printWarnings(w io.Writer, res credsync.Result) {
	for _, warning := range res.Warnings {
		fmt.Fprintln(w, "warning:", warning.String())
	}
}
