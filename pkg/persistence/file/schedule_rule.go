package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

const scheduleRulesKind = "schedule_rules"

// ScheduleRuleRepository handles schedule rule file operations.
type ScheduleRuleRepository struct {
	root string
}

// NewScheduleRuleRepository creates a schedule rule repository rooted at the given directory.
func NewScheduleRuleRepository(root string) *ScheduleRuleRepository {
	return &ScheduleRuleRepository{root: root}
}

func (r *ScheduleRuleRepository) ScheduleRules(_ context.Context) ([]*models.ScheduleRule, error) {
	ids, err := listDocumentIDs(r.root, scheduleRulesKind)
	if err != nil {
		return nil, err
	}

	rules := make([]*models.ScheduleRule, 0, len(ids))

	for _, id := range ids {
		var rule models.ScheduleRule
		if err := readDocument(r.root, scheduleRulesKind, id, &rule); err != nil {
			return nil, fmt.Errorf("failed to load schedule rule %s: %w", id, err)
		}

		rules = append(rules, &rule)
	}

	return rules, nil
}

func (r *ScheduleRuleRepository) ScheduleRuleByName(_ context.Context, name string) (*models.ScheduleRule, error) {
	var rule models.ScheduleRule

	err := readDocument(r.root, scheduleRulesKind, name, &rule)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrScheduleRuleNotFound
		}

		return nil, err
	}

	return &rule, nil
}

func (r *ScheduleRuleRepository) SaveScheduleRule(_ context.Context, rule *models.ScheduleRule) error {
	return writeDocument(r.root, scheduleRulesKind, rule.Name, rule)
}

// DeleteScheduleRule removes a rule definition. Deleting a missing rule never
// fails, keeping reconciliation retries safe.
func (r *ScheduleRuleRepository) DeleteScheduleRule(_ context.Context, name string) error {
	return removeDocument(r.root, scheduleRulesKind, name)
}
