package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

// FireFunc is invoked for each due rule. Dispatch on the rule's target ref. A
// non-nil error leaves NextDueAt untouched so the rule fires again on the next
// tick.
type FireFunc func(ctx context.Context, rule *models.ScheduleRule) error

// Scheduler is the central poller: one ticker checks all rules for due fire
// times, regardless of their individual expressions.
type Scheduler struct {
	rules    persistence.ScheduleRuleRepository
	fire     FireFunc
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	ticker  *time.Ticker
	done    chan struct{}
	started bool
}

// NewScheduler creates a scheduler polling at the given interval.
func NewScheduler(rules persistence.ScheduleRuleRepository, fire FireFunc, logger *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		rules:    rules,
		fire:     fire,
		logger:   logger.With("module", "scheduler"),
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.logger.InfoContext(ctx, "Starting scheduler", "interval", s.interval)

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx)
}

// Stop shuts the polling loop down.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.InfoContext(ctx, "Stopping scheduler")

	s.ticker.Stop()
	close(s.done)
	s.started = false
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.ProcessDue(ctx)
		}
	}
}

// ProcessDue fires every active rule whose NextDueAt has passed and advances
// its next fire time. One rule failing does not block the rest.
func (s *Scheduler) ProcessDue(ctx context.Context) {
	now := s.now().UTC()

	rules, err := s.rules.ScheduleRules(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list schedule rules", "error", err)

		return
	}

	for _, rule := range rules {
		if !rule.Active || rule.NextDueAt.After(now) {
			continue
		}

		s.logger.InfoContext(ctx, "Firing due rule", "rule", rule.Name, "due_at", rule.NextDueAt)

		err := s.fire(ctx, rule)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to fire rule", "rule", rule.Name, "error", err)

			continue
		}

		expr, err := ParseExpr(rule.ScheduleExpr)
		if err != nil {
			s.logger.ErrorContext(ctx, "Rule carries unparseable expression", "rule", rule.Name, "error", err)

			continue
		}

		rule.NextDueAt = expr.Next(now)
		rule.UpdatedAt = now

		err = s.rules.SaveScheduleRule(ctx, rule)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to update rule", "rule", rule.Name, "error", err)
		}
	}
}
