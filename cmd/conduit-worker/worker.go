package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/conduit/pkg/executor"
	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/otelhelper"
	"github.com/dukex/conduit/pkg/queue"
)

// Worker consumes the trigger queue and hands each message to the executor.
// A handler error nacks the message so the broker redelivers it; reported
// orchestration failures are terminal execution states, not message errors.
type Worker struct {
	id       string
	queue    *queue.Queue
	executor *executor.Executor
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewWorker(id string, triggerQueue *queue.Queue, exec *executor.Executor, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		queue:    triggerQueue,
		executor: exec,
		logger:   logger,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	tracer, err := otelhelper.NewTracer(ctx, "conduit-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		w.tracer = tracer
	}

	err = w.queue.Subscribe(ctx, w.handleTrigger)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down worker...")
	case <-ctx.Done():
	}

	return nil
}

func (w *Worker) handleTrigger(ctx context.Context, msg *models.TriggerMessage) error {
	logger := w.logger.With(
		"workflow_id", msg.WorkflowID,
		"trigger_type", msg.TriggerType,
	)
	logger.InfoContext(ctx, "Processing trigger message")

	var span trace.Span
	if w.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "handle_trigger",
			attribute.String(otelhelper.WorkflowIDKey, msg.WorkflowID),
			attribute.String(otelhelper.TriggerTypeKey, string(msg.TriggerType)),
			attribute.String(otelhelper.WorkerIDKey, w.id),
		)
		defer span.End()
	}

	execution, err := w.executor.HandleTrigger(ctx, msg)
	if err != nil {
		// Missing and disabled workflows fail the message too: the queue's
		// own redelivery/park policy decides when to give up on it.
		if span != nil {
			otelhelper.SetError(span, err,
				attribute.String(otelhelper.WorkflowIDKey, msg.WorkflowID))
		}

		logger.ErrorContext(ctx, "Failed to process trigger message", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Execution finished",
		"execution_id", execution.ID,
		"status", execution.Status,
	)

	return nil
}
