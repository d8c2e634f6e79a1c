package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TriggerKind identifies how a workflow execution is started.
type TriggerKind string

const (
	TriggerManual  TriggerKind = "manual"
	TriggerWebhook TriggerKind = "webhook"
	TriggerCron    TriggerKind = "cron"
	TriggerPoll    TriggerKind = "poll"
)

// MinPollIntervalMinutes is the floor enforced on poll intervals to protect the
// shared scheduler from excessive invocation rates.
const MinPollIntervalMinutes = 5

var (
	ErrUnknownTriggerKind = errors.New("unknown trigger kind")
	ErrMissingSchedule    = errors.New("cron trigger requires a schedule")
	ErrMissingPollURL     = errors.New("poll trigger requires a url")
)

// CronConfig is the payload of a cron trigger.
type CronConfig struct {
	Schedule string `json:"schedule" validate:"required"`
}

// PollContentType selects the change-detection policy for a poll trigger.
type PollContentType string

const (
	PollContentRSS  PollContentType = "rss"
	PollContentAtom PollContentType = "atom"
	PollContentHTTP PollContentType = "http"
)

// IsFeed reports whether the content type is handled by the feed policy.
func (c PollContentType) IsFeed() bool {
	return c == PollContentRSS || c == PollContentAtom
}

// PollConfig is the payload of a poll trigger.
type PollConfig struct {
	URL             string          `json:"url"              validate:"required,url"`
	ContentType     PollContentType `json:"content_type"     validate:"required,oneof=rss atom http"`
	IntervalMinutes int             `json:"interval_minutes" validate:"gte=0"`
}

// Interval returns the configured polling interval with the 5-minute floor applied.
func (c PollConfig) Interval() int {
	if c.IntervalMinutes < MinPollIntervalMinutes {
		return MinPollIntervalMinutes
	}

	return c.IntervalMinutes
}

// Trigger is a closed tagged variant: exactly one payload matches Kind. The
// variant is resolved once when the workflow is decoded, so call sites switch on
// Kind instead of re-matching type strings.
type Trigger struct {
	Kind TriggerKind `json:"-"`
	Cron *CronConfig `json:"-"`
	Poll *PollConfig `json:"-"`
}

// triggerJSON is the wire shape: {"type": "...", "config": {...}}.
type triggerJSON struct {
	Type   TriggerKind     `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (t *Trigger) UnmarshalJSON(data []byte) error {
	var raw triggerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case TriggerManual, TriggerWebhook:
		*t = Trigger{Kind: raw.Type}
	case TriggerCron:
		cfg := &CronConfig{}
		if len(raw.Config) > 0 {
			if err := json.Unmarshal(raw.Config, cfg); err != nil {
				return fmt.Errorf("invalid cron trigger config: %w", err)
			}
		}

		*t = Trigger{Kind: TriggerCron, Cron: cfg}
	case TriggerPoll:
		cfg := &PollConfig{}
		if len(raw.Config) > 0 {
			if err := json.Unmarshal(raw.Config, cfg); err != nil {
				return fmt.Errorf("invalid poll trigger config: %w", err)
			}
		}

		if cfg.ContentType == "" {
			cfg.ContentType = PollContentRSS
		}

		*t = Trigger{Kind: TriggerPoll, Poll: cfg}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTriggerKind, raw.Type)
	}

	return nil
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	raw := triggerJSON{Type: t.Kind}

	var payload any

	switch t.Kind {
	case TriggerCron:
		payload = t.Cron
	case TriggerPoll:
		payload = t.Poll
	case TriggerManual, TriggerWebhook:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerKind, t.Kind)
	}

	if payload != nil {
		config, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		raw.Config = config
	}

	return json.Marshal(raw)
}

// Validate checks that the payload required by the trigger kind is present and
// complete. A trigger failing validation cannot back a live schedule rule.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerManual, TriggerWebhook:
		return nil
	case TriggerCron:
		if t.Cron == nil || t.Cron.Schedule == "" {
			return ErrMissingSchedule
		}

		return nil
	case TriggerPoll:
		if t.Poll == nil || t.Poll.URL == "" {
			return ErrMissingPollURL
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTriggerKind, t.Kind)
	}
}
