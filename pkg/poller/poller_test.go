package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/reconciler"
)

const rssTemplate = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    %s
  </channel>
</rss>`

func rssItem(guid, title string) string {
	return fmt.Sprintf(`<item><guid>%s</guid><title>%s</title><link>https://example.com/%s</link></item>`, guid, title, guid)
}

type fakeWorkflowRepo struct {
	workflow *models.Workflow
	disabled []string
}

func (f *fakeWorkflowRepo) Workflows(_ context.Context) ([]*models.Workflow, error) {
	return []*models.Workflow{f.workflow}, nil
}

func (f *fakeWorkflowRepo) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	if f.workflow == nil || f.workflow.ID != id {
		return nil, persistence.ErrWorkflowNotFound
	}

	return f.workflow, nil
}

func (f *fakeWorkflowRepo) SaveWorkflow(_ context.Context, _ *models.Workflow) error {
	return nil
}

func (f *fakeWorkflowRepo) SetWorkflowEnabled(_ context.Context, id string, enabled bool) error {
	if !enabled {
		f.disabled = append(f.disabled, id)
	}

	f.workflow.Enabled = enabled

	return nil
}

type fakePollStateRepo struct {
	state *models.PollState
}

func (f *fakePollStateRepo) PollState(_ context.Context, _ string) (*models.PollState, error) {
	if f.state == nil {
		return nil, persistence.ErrPollStateNotFound
	}

	copied := *f.state

	return &copied, nil
}

func (f *fakePollStateRepo) SavePollState(_ context.Context, state *models.PollState) error {
	copied := *state
	f.state = &copied

	return nil
}

type fakeFetcher struct {
	content []byte
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.content, nil
}

type fakePublisher struct {
	published []*models.TriggerMessage
}

func (f *fakePublisher) Publish(_ context.Context, msg *models.TriggerMessage) error {
	f.published = append(f.published, msg)

	return nil
}

type fakeSyncer struct {
	disabledRules int
}

func (f *fakeSyncer) SyncEnabled(_ context.Context, _ string, _ *models.Trigger, enabled bool) reconciler.Result {
	if !enabled {
		f.disabledRules++
	}

	return reconciler.Result{}
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, message string) {
	f.messages = append(f.messages, message)
}

type pollerFixture struct {
	poller    *Poller
	workflows *fakeWorkflowRepo
	states    *fakePollStateRepo
	fetcher   *fakeFetcher
	publisher *fakePublisher
	syncer    *fakeSyncer
	notifier  *fakeNotifier
}

func newPollerFixture(t *testing.T, contentType models.PollContentType) *pollerFixture {
	t.Helper()

	f := &pollerFixture{
		workflows: &fakeWorkflowRepo{workflow: &models.Workflow{
			ID:      "wf-1",
			Name:    "Feed watcher",
			Enabled: true,
			Trigger: models.Trigger{Kind: models.TriggerPoll, Poll: &models.PollConfig{
				URL:             "https://example.com/feed",
				ContentType:     contentType,
				IntervalMinutes: 10,
			}},
		}},
		states:    &fakePollStateRepo{},
		fetcher:   &fakeFetcher{},
		publisher: &fakePublisher{},
		syncer:    &fakeSyncer{},
		notifier:  &fakeNotifier{},
	}

	f.poller = NewPoller(f.workflows, f.states, f.fetcher, f.publisher, f.syncer, f.notifier, slog.Default())

	return f
}

func TestPoll_FeedReportsOnlyUnseenItems(t *testing.T) {
	f := newPollerFixture(t, models.PollContentRSS)
	f.states.state = &models.PollState{WorkflowID: "wf-1", SeenItemIDs: []string{"g1"}}
	f.fetcher.content = []byte(fmt.Sprintf(rssTemplate, rssItem("g1", "first")+rssItem("g2", "second")))

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	require.Len(t, f.publisher.published, 1)
	msg := f.publisher.published[0]
	assert.Equal(t, models.TriggerPoll, msg.TriggerType)
	assert.NotEmpty(t, msg.ExecutionID)
	assert.Equal(t, 1, msg.TriggerData["count"])

	items, ok := msg.TriggerData["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "g2", items[0]["id"])

	// Both identities are recorded afterward.
	assert.True(t, f.states.state.HasSeen("g1"))
	assert.True(t, f.states.state.HasSeen("g2"))
}

func TestPoll_FeedNoNewItemsNoExecution(t *testing.T) {
	f := newPollerFixture(t, models.PollContentRSS)
	f.states.state = &models.PollState{WorkflowID: "wf-1", SeenItemIDs: []string{"g1"}}
	f.fetcher.content = []byte(fmt.Sprintf(rssTemplate, rssItem("g1", "first")))

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Empty(t, f.publisher.published)
}

func TestPoll_FeedItemIdentityFallsBackToLink(t *testing.T) {
	f := newPollerFixture(t, models.PollContentRSS)
	f.fetcher.content = []byte(fmt.Sprintf(rssTemplate,
		`<item><title>no guid</title><link>https://example.com/a</link></item>`))

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.True(t, f.states.state.HasSeen("https://example.com/a"))
}

func TestPoll_HTTPFirstObservationIsBaselineOnly(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)
	f.fetcher.content = []byte("version 1")

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Empty(t, f.publisher.published)
	assert.NotEmpty(t, f.states.state.LastContentHash)
}

func TestPoll_HTTPUnchangedContentNoExecution(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)
	f.fetcher.content = []byte("version 1")

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))
	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Empty(t, f.publisher.published)
}

func TestPoll_HTTPChangedContentFires(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)
	f.fetcher.content = []byte("version 1")

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	baseline := f.states.state.LastContentHash

	f.fetcher.content = []byte("version 2")
	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	require.Len(t, f.publisher.published, 1)
	msg := f.publisher.published[0]
	assert.Equal(t, "version 2", msg.TriggerData["content"])
	assert.NotEqual(t, baseline, f.states.state.LastContentHash)
	assert.Equal(t, msg.TriggerData["content_hash"], f.states.state.LastContentHash)
}

func TestPoll_AutoDisableFiresExactlyOnceAtThreshold(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)
	f.fetcher.err = errors.New("connection refused")

	ctx := context.Background()

	for i := 1; i <= MaxConsecutiveFailures; i++ {
		require.NoError(t, f.poller.Poll(ctx, "wf-1"))
		assert.Equal(t, i, f.states.state.ConsecutiveFailures)

		if i < MaxConsecutiveFailures {
			assert.Empty(t, f.workflows.disabled, "disable fired before threshold")
			assert.Empty(t, f.notifier.messages)
		}
	}

	assert.Equal(t, []string{"wf-1"}, f.workflows.disabled)
	assert.Equal(t, 1, f.syncer.disabledRules)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "connection refused")
	assert.Contains(t, f.states.state.LastError, "connection refused")
}

func TestPoll_SuccessResetsFailureCount(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)
	f.states.state = &models.PollState{
		WorkflowID:          "wf-1",
		ConsecutiveFailures: 3,
		LastError:           "connection refused",
	}
	f.fetcher.content = []byte("ok")

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Zero(t, f.states.state.ConsecutiveFailures)
	assert.Empty(t, f.states.state.LastError)
}

func TestPoll_FailureKeepsSeenState(t *testing.T) {
	f := newPollerFixture(t, models.PollContentRSS)
	f.states.state = &models.PollState{
		WorkflowID:      "wf-1",
		SeenItemIDs:     []string{"g1"},
		LastContentHash: "abc",
	}
	f.fetcher.err = errors.New("timeout")

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Equal(t, []string{"g1"}, f.states.state.SeenItemIDs)
	assert.Equal(t, "abc", f.states.state.LastContentHash)
}

func TestPoll_DisabledWorkflowIsSkipped(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)
	f.workflows.workflow.Enabled = false
	f.fetcher.content = []byte("ok")

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Nil(t, f.states.state)
	assert.Empty(t, f.publisher.published)
}

func TestPoll_MissingWorkflowIsNoOp(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)

	require.NoError(t, f.poller.Poll(context.Background(), "wf-other"))
	assert.Empty(t, f.publisher.published)
}

func TestPoll_TruncatesLongErrors(t *testing.T) {
	f := newPollerFixture(t, models.PollContentHTTP)

	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}

	f.fetcher.err = errors.New(string(long))

	require.NoError(t, f.poller.Poll(context.Background(), "wf-1"))

	assert.Len(t, f.states.state.LastError, maxErrorLen)
}

func TestCheckFeed_CapsSeenItems(t *testing.T) {
	state := &models.PollState{WorkflowID: "wf-1"}

	var items string
	for i := 0; i < maxFeedItems; i++ {
		items += rssItem(fmt.Sprintf("g%d", i), "item")
	}

	_, err := checkFeed([]byte(fmt.Sprintf(rssTemplate, items)), state)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(state.SeenItemIDs), models.MaxSeenItems)
}

func TestCheckFeed_StillPresentItemSurvivesCapEviction(t *testing.T) {
	state := &models.PollState{WorkflowID: "wf-1"}

	// Fill the seen set to the cap with g1 as the oldest entry.
	filler := make([]string, 0, models.MaxSeenItems)
	filler = append(filler, "g1")

	for i := 0; i < models.MaxSeenItems-1; i++ {
		filler = append(filler, fmt.Sprintf("old%d", i))
	}

	state.AppendSeen(filler)
	require.Len(t, state.SeenItemIDs, models.MaxSeenItems)

	feed := []byte(fmt.Sprintf(rssTemplate, rssItem("g1", "first")+rssItem("g2", "second")))

	decision, err := checkFeed(feed, state)
	require.NoError(t, err)
	assert.True(t, decision.ShouldExecute)
	assert.Equal(t, 1, decision.TriggerData["count"])

	// g1 is still present in the feed, so its observation is refreshed and it
	// must not be evicted by the cap.
	assert.True(t, state.HasSeen("g1"))
	assert.True(t, state.HasSeen("g2"))

	// An identical feed on the next poll reports nothing new.
	decision, err = checkFeed(feed, state)
	require.NoError(t, err)
	assert.False(t, decision.ShouldExecute)
}

func TestPollState_AppendSeenRefreshesPosition(t *testing.T) {
	state := &models.PollState{WorkflowID: "wf-1", SeenItemIDs: []string{"a", "b", "c"}}

	state.AppendSeen([]string{"a", "d"})

	assert.Equal(t, []string{"b", "c", "a", "d"}, state.SeenItemIDs)
}

func TestCheckFeed_MalformedContentErrors(t *testing.T) {
	state := &models.PollState{WorkflowID: "wf-1"}

	_, err := checkFeed([]byte("not a feed at all"), state)
	require.Error(t, err)
}
