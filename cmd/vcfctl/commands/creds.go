package commands

import (
	"context"
	"fmt"

	"vcfcreds/cmd/vcfctl/client"
	"vcfcreds/cmd/vcfctl/output"

	"github.com/urfave/cli/v3"
)

func CredsCommand() *cli.Command {
	return &cli.Command{
		Name:  "creds",
		Usage: "Inspect stored credentials",
		Commands: []*cli.Command{
			listCredsCommand(),
		},
	}
}

func listCredsCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List the credentials of an environment",
		ArgsUsage: "<environment-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "resource-type",
				Usage: "Filter by resource type",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Filter by source (INSTALLER, MANAGER)",
			},
		},
		Action: listCredsAction,
	}
}

func listCredsAction(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("environment ID is required")
	}

	httpClient, err := newClient(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	filters := &client.CredentialFilters{
		ResourceType: c.String("resource-type"),
		Source:       c.String("source"),
	}
	creds, err := httpClient.ListCredentials(c.Args().Get(0), filters)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	jsonOutput, err := output.NewJSONFormatter().Format(creds)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	fmt.Fprintln(c.Root().Writer, jsonOutput)
	return nil
}
