package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/conduit/pkg/queue"
	"github.com/dukex/conduit/pkg/queue/channels/gochannel"
	"github.com/dukex/conduit/pkg/queue/channels/kafka"
)

// NewQueue creates the trigger queue on the named transport. "kafka" is the
// production transport; "gochannel" is in-memory and only useful when producer
// and consumer share a process.
func NewQueue(transport, serviceName string, logger *slog.Logger) (*queue.Queue, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch transport {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka channel: %w", err)
		}

		return queue.NewQueue(pub, sub, logger), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory channel: %w", err)
		}

		return queue.NewQueue(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported queue transport: %q", transport)
	}
}
