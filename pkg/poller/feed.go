package poller

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/dukex/conduit/pkg/models"
)

const (
	// maxFeedItems caps how many feed entries one poll considers.
	maxFeedItems = 100
	// maxSummaryLen caps the per-item summary carried in trigger data.
	maxSummaryLen = 500
)

// FeedItem is the normalized shape of one feed entry carried in trigger data.
type FeedItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// checkFeed applies the feed policy: parse, derive stable item identities,
// report items not yet in the seen set, and record every observed identity.
func checkFeed(content []byte, state *models.PollState) (*Decision, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := parsed.Items
	if len(items) > maxFeedItems {
		items = items[:maxFeedItems]
	}

	var (
		newItems []FeedItem
		observed []string
	)

	for _, item := range items {
		id := feedItemID(item)
		if id == "" {
			continue
		}

		if !state.HasSeen(id) {
			newItems = append(newItems, normalizeFeedItem(id, item))
		}

		// Every observed identity is recorded, not just the new ones: a still
		// present item must keep its place in the seen set, or cap eviction
		// would re-report it as new.
		observed = append(observed, id)
	}

	state.AppendSeen(observed)

	if len(newItems) == 0 {
		return &Decision{}, nil
	}

	payload := make([]map[string]any, 0, len(newItems))
	for _, item := range newItems {
		payload = append(payload, map[string]any{
			"id":        item.ID,
			"title":     item.Title,
			"link":      item.Link,
			"published": item.Published,
			"summary":   item.Summary,
		})
	}

	return &Decision{
		ShouldExecute: true,
		TriggerData: map[string]any{
			"items": payload,
			"count": len(newItems),
		},
	}, nil
}

// feedItemID derives a best-effort stable identity: explicit GUID first, the
// item link as fallback.
func feedItemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}

	return item.Link
}

func normalizeFeedItem(id string, item *gofeed.Item) FeedItem {
	normalized := FeedItem{
		ID:      id,
		Title:   item.Title,
		Link:    item.Link,
		Summary: truncate(item.Description, maxSummaryLen),
	}

	if item.PublishedParsed != nil {
		normalized.Published = item.PublishedParsed.UTC().Format("2006-01-02T15:04:05Z07:00")
	} else {
		normalized.Published = item.Published
	}

	return normalized
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max]
}
