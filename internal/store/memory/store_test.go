package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadwatch/internal/lead"
)

func TestInsert_DuplicateDedupKey(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	m := lead.Match{ID: "m1", SourceID: 1, DedupKey: "external:p1"}
	require.NoError(t, store.Insert(ctx, m))

	dup := lead.Match{ID: "m2", SourceID: 1, DedupKey: "external:p1"}
	err := store.Insert(ctx, dup)
	require.ErrorIs(t, err, lead.ErrDuplicateMatch)

	// Same key under a different source is a different match.
	other := lead.Match{ID: "m3", SourceID: 2, DedupKey: "external:p1"}
	require.NoError(t, store.Insert(ctx, other))

	pending, err := store.ListUnnotified(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestFindExisting(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, lead.Match{ID: "m1", SourceID: 1, DedupKey: "k"}))

	found, err := store.FindExisting(ctx, 1, "k")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "m1", found.ID)

	missing, err := store.FindExisting(ctx, 1, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarkNotified_Idempotent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, lead.Match{ID: "m1", SourceID: 1, DedupKey: "k"}))

	require.NoError(t, store.MarkNotified(ctx, "m1"))
	require.NoError(t, store.MarkNotified(ctx, "m1"))

	pending, err := store.ListUnnotified(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Error(t, store.MarkNotified(ctx, "missing"))
}

func TestListUnnotified_InsertionOrder(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Insert(ctx, lead.Match{ID: id, SourceID: 1, DedupKey: id, CreatedAt: now}))
	}
	require.NoError(t, store.MarkNotified(ctx, "b"))

	pending, err := store.ListUnnotified(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)
}

func TestUpdateLastScraped(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	src := store.AddSource(lead.Source{Name: "A", Type: lead.SourceFacebook, IsActive: true})

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateLastScraped(ctx, src.ID, ts))

	got, err := store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastScrapedAt)
	assert.Equal(t, ts, *got.LastScrapedAt)
}

func TestAddKeyword_CaseInsensitiveUniqueness(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, err := store.AddKeyword(lead.Keyword{Text: "House Cleaner", IsActive: true})
	require.NoError(t, err)

	_, err = store.AddKeyword(lead.Keyword{Text: " house cleaner ", IsActive: true})
	require.Error(t, err)
}

func TestNotificationSettings_LazyDefaults(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	defaults := lead.NotificationSettings{SlackEnabled: true, SlackWebhook: "https://hooks.example/x"}

	got, err := store.NotificationSettings(ctx, defaults)
	require.NoError(t, err)
	assert.True(t, got.SlackEnabled)

	// Defaults only seed once; later calls return the stored row.
	got, err = store.NotificationSettings(ctx, lead.NotificationSettings{})
	require.NoError(t, err)
	assert.True(t, got.SlackEnabled)

	require.NoError(t, store.UpdateNotificationSettings(ctx, lead.NotificationSettings{EmailEnabled: true, EmailAddress: "ops@example.com"}))
	got, err = store.NotificationSettings(ctx, defaults)
	require.NoError(t, err)
	assert.True(t, got.EmailEnabled)
	assert.False(t, got.SlackEnabled)
}
