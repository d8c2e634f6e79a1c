package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "conduit",
		Usage:                 "Operate Conduit workflows from the command line",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:    "trigger",
				Aliases: []string{"t"},
				Usage:   "Manually enqueue a trigger for a workflow",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "workflow-id",
						Aliases:  []string{"id"},
						Usage:    "Workflow to trigger",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "queue-transport",
						Usage:   "Trigger queue transport (kafka, gochannel)",
						Value:   "kafka",
						Sources: cli.EnvVars("QUEUE_TRANSPORT"),
					},
					&cli.StringFlag{
						Name:  "data",
						Usage: "JSON object passed to the execution as trigger data",
						Value: "",
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return TriggerWorkflow(ctx, command)
				},
			},
			{
				Name:    "validate",
				Aliases: []string{"v"},
				Usage:   "Validate stored workflow definitions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return ValidateWorkflows(ctx, command)
				},
			},
			{
				Name:  "reconcile",
				Usage: "Rebuild schedule rules from stored workflow triggers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "environment",
						Usage:   "Deployment environment used in rule names",
						Value:   "dev",
						Sources: cli.EnvVars("CONDUIT_ENV"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return ReconcileRules(ctx, command)
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}
