package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conduit/pkg/cmd"
	"github.com/dukex/conduit/pkg/executor"
	"github.com/dukex/conduit/pkg/log"
	"github.com/dukex/conduit/pkg/secrets"
	"github.com/dukex/conduit/pkg/steprunner"
)

const defaultRunnerTimeout = 5 * time.Minute

func main() {
	command := &cli.Command{
		Name:                  "conduit-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume trigger messages and drive workflow executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
				Name:     "runner-url",
				Usage:    "Step orchestrator endpoint executions are submitted to",
				Required: true,
				Sources:  cli.EnvVars("RUNNER_URL"),
			},
			&cli.StringFlag{
				Name:    "secrets-url",
				Usage:   "Secrets store URL (redis://...); falls back to environment variables",
				Value:   "",
				Sources: cli.EnvVars("SECRETS_URL"),
			},
			&cli.StringFlag{
				Name:    "secrets-namespace",
				Usage:   "Namespace secrets are resolved from",
				Value:   "default",
				Sources: cli.EnvVars("SECRETS_NAMESPACE"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("conduit-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Conduit worker")

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

			triggerQueue, err := cmd.NewQueue(command.String("queue-transport"), "conduit-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := triggerQueue.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close trigger queue", "error", err)
				}
			}()

			secretStore, err := newSecretStore(command.String("secrets-url"))
			if err != nil {
				return err
			}

			runner := steprunner.NewHTTPRunner(command.String("runner-url"), defaultRunnerTimeout)

			exec := executor.New(
				persistence.WorkflowRepository(),
				persistence.ExecutionRepository(),
				runner,
				secrets.NewCache(secretStore),
				command.String("secrets-namespace"),
				logger,
			)

			worker := NewWorker(workerID, triggerQueue, exec, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newSecretStore(secretsURL string) (secrets.Store, error) {
	if secretsURL == "" {
		return secrets.NewEnvStore(""), nil
	}

	return secrets.NewRedisStore(secretsURL)
}
