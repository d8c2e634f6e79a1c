package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conduit/pkg/cmd"
	"github.com/dukex/conduit/pkg/log"
)

const defaultPort = 9092

func main() {
	logger := log.WithModule("conduit-webhook")

	command := &cli.Command{
		Name:                  "conduit-webhook",
		EnableShellCompletion: true,
		Usage:                 "Accept inbound webhook calls and enqueue workflow triggers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the webhook server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Conduit webhook server")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			triggerQueue, err := cmd.NewQueue(command.String("queue-transport"), "conduit-webhook", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := triggerQueue.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close trigger queue", "error", err)
				}
			}()

			server := NewServer(logger, persistence, triggerQueue)

			err = server.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start webhook server", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
