// Package redis provides Redis-backed persistence. Execution records use
// Redis' native key expiry for the retention TTL, and updates use conditional
// writes (SET XX) so they cannot resurrect expired or deleted records.
package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/conduit/pkg/persistence"
)

const keyPrefix = "conduit"

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client        goredis.UniversalClient
	workflows     *WorkflowRepository
	executions    *ExecutionRepository
	pollStates    *PollStateRepository
	scheduleRules *ScheduleRuleRepository
}

// NewPersistence connects to Redis using a redis:// URL.
func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	return &Persistence{
		client:        client,
		workflows:     &WorkflowRepository{client: client},
		executions:    &ExecutionRepository{client: client},
		pollStates:    &PollStateRepository{client: client},
		scheduleRules: &ScheduleRuleRepository{client: client},
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) PollStateRepository() persistence.PollStateRepository {
	return p.pollStates
}

func (p *Persistence) ScheduleRuleRepository() persistence.ScheduleRuleRepository {
	return p.scheduleRules
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func buildKey(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
