package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conduit/pkg/cmd"
	"github.com/dukex/conduit/pkg/log"
	"github.com/dukex/conduit/pkg/notify"
	"github.com/dukex/conduit/pkg/poller"
	"github.com/dukex/conduit/pkg/reconciler"
	"github.com/dukex/conduit/pkg/schedule"
)

const defaultTickInterval = time.Minute

func main() {
	command := &cli.Command{
		Name:                  "conduit-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Fire due schedule rules: enqueue cron triggers and run poll checks",
		Flags: []cli.Flag{
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
				Name:    "environment",
				Usage:   "Deployment environment used in rule names",
				Value:   "dev",
				Sources: cli.EnvVars("CONDUIT_ENV"),
			},
			&cli.StringFlag{
				Name:    "notify-webhook-url",
				Usage:   "Webhook URL notified when a workflow is auto-disabled",
				Value:   "",
				Sources: cli.EnvVars("NOTIFY_WEBHOOK_URL"),
			},
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "How often due rules are checked",
				Value:   defaultTickInterval,
				Sources: cli.EnvVars("TICK_INTERVAL"),
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

			logger := log.WithModule("conduit-scheduler")

			logger.InfoContext(ctx, "Initializing Conduit scheduler")

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

			triggerQueue, err := cmd.NewQueue(command.String("queue-transport"), "conduit-scheduler", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := triggerQueue.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close trigger queue", "error", err)
				}
			}()

			var notifier notify.Notifier = notify.NopNotifier{}
			if url := command.String("notify-webhook-url"); url != "" {
				notifier = notify.NewWebhookNotifier(url, logger)
			}

			ruleRegistry := schedule.NewRegistry(persistence.ScheduleRuleRepository())
			syncer := reconciler.New(ruleRegistry, command.String("environment"), logger)

			changePoller := poller.NewPoller(
				persistence.WorkflowRepository(),
				persistence.PollStateRepository(),
				poller.NewHTTPFetcher(),
				triggerQueue,
				syncer,
				notifier,
				logger,
			)

			dispatcher := NewDispatcher(triggerQueue, changePoller, logger)

			scheduler := schedule.NewScheduler(
				persistence.ScheduleRuleRepository(),
				dispatcher.Fire,
				logger,
				command.Duration("tick-interval"),
			)

			scheduler.Start(ctx)
			defer scheduler.Stop(ctx)

			logger.InfoContext(ctx, "Scheduler started successfully")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigChan:
				logger.InfoContext(ctx, "Shutting down scheduler...")
			case <-ctx.Done():
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
