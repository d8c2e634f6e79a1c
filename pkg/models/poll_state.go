package models

import "time"

// MaxSeenItems caps PollState.SeenItemIDs. Eviction is FIFO by insertion order,
// oldest entries discarded first.
const MaxSeenItems = 500

// PollState is the persisted bookkeeping that enables change detection between
// polls of the same workflow. Created lazily on first poll, mutated by every
// poll invocation.
type PollState struct {
	WorkflowID          string    `json:"workflow_id" validate:"required"`
	SeenItemIDs         []string  `json:"seen_item_ids,omitempty"`
	LastContentHash     string    `json:"last_content_hash,omitempty"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// AppendSeen records ids in observation order and truncates to MaxSeenItems,
// keeping the most recent entries. Re-observing a known id moves it to the
// recent end, so items still present in the source are not evicted by cap
// pressure and re-reported as new.
func (s *PollState) AppendSeen(ids []string) {
	combined := append(s.SeenItemIDs, ids...)

	last := make(map[string]int, len(combined))
	for i, id := range combined {
		last[id] = i
	}

	deduped := make([]string, 0, len(last))

	for i, id := range combined {
		if last[id] == i {
			deduped = append(deduped, id)
		}
	}

	if len(deduped) > MaxSeenItems {
		deduped = deduped[len(deduped)-MaxSeenItems:]
	}

	s.SeenItemIDs = deduped
}

// HasSeen reports whether the item identity was observed on a previous poll.
func (s *PollState) HasSeen(id string) bool {
	for _, seen := range s.SeenItemIDs {
		if seen == id {
			return true
		}
	}

	return false
}
