// Package cmd holds the shared wiring used by the conduit binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/persistence/file"
	"github.com/dukex/conduit/pkg/persistence/postgres"
	"github.com/dukex/conduit/pkg/persistence/redis"
)

// NewPersistence selects a persistence backend from the database URL scheme:
// postgres://, redis:// or file://. Anything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	scheme, _, _ := strings.Cut(databaseURL, "://")

	switch scheme {
	case "postgres", "postgresql":
		return postgres.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
