package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
	"leadwatch/internal/store/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeConnector struct {
	mu         sync.Mutex
	loginErr   error
	fetchErrs  map[string]error
	posts      map[string][]lead.Post
	loginCalls int
	fetchCalls int
	closeCalls int
}

func (f *fakeConnector) Login(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginErr
}

func (f *fakeConnector) Fetch(_ context.Context, sourceURL string, _ int) ([]lead.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if err := f.fetchErrs[sourceURL]; err != nil {
		return nil, err
	}
	return f.posts[sourceURL], nil
}

func (f *fakeConnector) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []lead.MatchEvent
	err    error
}

func (p *fakePublisher) PublishMatch(_ context.Context, ev lead.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func factoryFor(conn *fakeConnector) lead.ConnectorFactory {
	return func(lead.SourceType) (lead.Connector, error) { return conn, nil }
}

func newRunner(store lead.Store, conn *fakeConnector, pub *fakePublisher, now time.Time) *ScrapeRunner {
	return NewScrapeRunner(store, factoryFor(conn), pub, fixedClock{now: now}, zap.NewNop(), 20)
}

func TestScrapeRun_EndToEnd(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	src := store.AddSource(lead.Source{Name: "A", URL: "https://facebook.com/groups/a", Type: lead.SourceFacebook, IsActive: true})
	kw, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{posts: map[string][]lead.Post{
		src.URL: {{ExternalID: "p1", URL: "https://facebook.com/p/p1", Text: "Pipe leak, need help", Author: "Bob", SourceType: lead.SourceFacebook}},
	}}
	pub := &fakePublisher{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	runner := newRunner(store, conn, pub, now)
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	pending, err := store.ListUnnotified(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	m := pending[0]
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, src.ID, m.SourceID)
	assert.Equal(t, kw.ID, m.KeywordID)
	assert.Equal(t, "external:p1", m.DedupKey)
	assert.Equal(t, "Pipe leak, need help", m.PostText)
	assert.Equal(t, "leak", m.MatchedText)
	assert.Equal(t, now, m.CreatedAt)
	assert.False(t, m.IsNotified)

	got, err := store.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastScrapedAt)
	assert.Equal(t, now, *got.LastScrapedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, m.ID, pub.events[0].MatchID)
	assert.Equal(t, "leak", pub.events[0].Keyword)
	assert.Equal(t, 1, conn.closeCalls)
}

func TestScrapeRun_LoginOncePerCycle(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	store.AddSource(lead.Source{Name: "B", URL: "https://x/b", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{}
	runner := newRunner(store, conn, &fakePublisher{}, time.Now())
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	assert.Equal(t, 1, conn.loginCalls)
	assert.Equal(t, 2, conn.fetchCalls)
	assert.Equal(t, 1, conn.closeCalls)
}

func TestScrapeRun_CaptchaSkipsCycle(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	src := store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{loginErr: lead.NewCaptchaError(lead.SourceFacebook, errors.New("challenged"))}
	runner := newRunner(store, conn, &fakePublisher{}, time.Now())
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	assert.Zero(t, conn.fetchCalls)
	got, err := store.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastScrapedAt)
}

func TestScrapeRun_CredentialFailurePropagates(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{loginErr: lead.NewCredentialError(lead.SourceFacebook, errors.New("rejected"))}
	runner := newRunner(store, conn, &fakePublisher{}, time.Now())

	err = runner.Run(context.Background(), lead.SourceFacebook)
	require.Error(t, err)
	assert.True(t, lead.IsCredentialFailure(err))
	assert.Equal(t, 1, conn.closeCalls)
}

func TestScrapeRun_FetchFailureIsolatedPerSource(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	srcA := store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	srcB := store.AddSource(lead.Source{Name: "B", URL: "https://x/b", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{
		fetchErrs: map[string]error{srcA.URL: lead.NewFetchError(lead.FetchTimeout, srcA.URL, errors.New("deadline"))},
		posts: map[string][]lead.Post{
			srcB.URL: {{ExternalID: "p2", Text: "water leak in basement", SourceType: lead.SourceFacebook}},
		},
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runner := newRunner(store, conn, &fakePublisher{}, now)
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	pending, err := store.ListUnnotified(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, srcB.ID, pending[0].SourceID)

	// The failed source still advances its scrape cursor.
	gotA, err := store.GetSource(context.Background(), srcA.ID)
	require.NoError(t, err)
	require.NotNil(t, gotA.LastScrapedAt)
}

func TestScrapeRun_DuplicateSecondCycle(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	src := store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{posts: map[string][]lead.Post{
		src.URL: {{ExternalID: "p1", Text: "Pipe leak, need help", SourceType: lead.SourceFacebook}},
	}}
	runner := newRunner(store, conn, &fakePublisher{}, time.Now())

	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	pending, err := store.ListUnnotified(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestScrapeRun_FingerprintDedupSurvivesTextEdits(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	src := store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	// No external post id, so dedup falls back to the (post_url, keyword)
	// fingerprint.
	conn := &fakeConnector{posts: map[string][]lead.Post{
		src.URL: {{URL: "https://x/a/posts/1", Text: "Pipe leak, need help", SourceType: lead.SourceFacebook}},
	}}
	runner := newRunner(store, conn, &fakePublisher{}, time.Now())
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	// The author edits the post; the next fetch sees different text at the
	// same URL matching the same keyword.
	conn.posts[src.URL] = []lead.Post{
		{URL: "https://x/a/posts/1", Text: "Pipe leak, need help ASAP!!", SourceType: lead.SourceFacebook},
	}
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	pending, err := store.ListUnnotified(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "leak", pending[0].MatchedText)
	assert.Equal(t, lead.DedupKey("", "https://x/a/posts/1", "leak"), pending[0].DedupKey)
}

func TestScrapeRun_NoSourcesSkipsConnector(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{}
	runner := newRunner(store, conn, &fakePublisher{}, time.Now())
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))
	assert.Zero(t, conn.loginCalls)
}

func TestScrapeRun_PublishFailureDoesNotFailCycle(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	src := store.AddSource(lead.Source{Name: "A", URL: "https://x/a", Type: lead.SourceFacebook, IsActive: true})
	_, err := store.AddKeyword(lead.Keyword{Text: "leak", IsActive: true})
	require.NoError(t, err)

	conn := &fakeConnector{posts: map[string][]lead.Post{
		src.URL: {{ExternalID: "p1", Text: "a leak", SourceType: lead.SourceFacebook}},
	}}
	runner := newRunner(store, conn, &fakePublisher{err: errors.New("broker down")}, time.Now())
	require.NoError(t, runner.Run(context.Background(), lead.SourceFacebook))

	pending, err := store.ListUnnotified(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
