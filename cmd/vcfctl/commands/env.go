package commands

import (
	"context"
	"fmt"

	"vcfcreds/cmd/vcfctl/output"

	"github.com/urfave/cli/v3"
)

func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Manage environments",
		Commands: []*cli.Command{
			listEnvCommand(),
			syncEnvCommand(),
		},
	}
}

func listEnvCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List all environments",
		Action: listEnvAction,
	}
}

func listEnvAction(ctx context.Context, c *cli.Command) error {
	httpClient, err := newClient(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	envs, err := httpClient.ListEnvironments()
	if err != nil {
		return fmt.Errorf("failed to list environments: %w", err)
	}

	jsonOutput, err := output.NewJSONFormatter().Format(envs)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	fmt.Fprintln(c.Root().Writer, jsonOutput)
	return nil
}

func syncEnvCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Sync an environment now",
		ArgsUsage: "<environment-id>",
		Action:    syncEnvAction,
	}
}

func syncEnvAction(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("environment ID is required")
	}

	httpClient, err := newClient(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	res, syncErr := httpClient.SyncEnvironment(c.Args().Get(0))
	if res != nil {
		jsonOutput, err := output.NewJSONFormatter().Format(res)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(c.Root().Writer, jsonOutput)
	}
	if syncErr != nil {
		return fmt.Errorf("failed to sync environment: %w", syncErr)
	}
	return nil
}
