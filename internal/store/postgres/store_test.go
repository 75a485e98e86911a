package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadwatch/internal/lead"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestInsert(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := lead.Match{
		ID:          "5df5dd9b-8f9b-4e6a-8f0e-54a3b4f7a001",
		SourceID:    7,
		KeywordID:   3,
		PostURL:     "https://example.com/p/1",
		PostText:    "Pipe leak, need help",
		MatchedText: "leak",
		DedupKey:    "external:p1",
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO matches").
		WithArgs(m.ID, m.SourceID, m.KeywordID, m.ExternalPostID, m.PostURL, m.PostText,
			m.PostAuthor, m.PostDate, m.MatchedText, m.DedupKey, m.IsNotified, m.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Insert(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_UniqueViolationIsDuplicateMatch(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO matches").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err := store.Insert(context.Background(), lead.Match{ID: "m1"})
	require.ErrorIs(t, err, lead.ErrDuplicateMatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExisting(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "source_id", "keyword_id", "external_post_id", "post_url", "post_text",
		"post_author", "post_date", "matched_text", "dedup_key", "is_notified", "created_at",
	}).AddRow("m1", int64(7), int64(3), "p1", "https://example.com/p/1", "text",
		"", (*time.Time)(nil), "leak", "external:p1", false, now)

	mock.ExpectQuery("FROM matches").
		WithArgs(int64(7), "external:p1").
		WillReturnRows(rows)

	m, err := store.FindExisting(context.Background(), 7, "external:p1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "m1", m.ID)
	assert.False(t, m.IsNotified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExisting_NoRowsMeansNil(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM matches").
		WithArgs(int64(7), "external:p1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	m, err := store.FindExisting(context.Background(), 7, "external:p1")
	require.NoError(t, err)
	assert.Nil(t, m)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnnotified(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "source_id", "keyword_id", "external_post_id", "post_url", "post_text",
		"post_author", "post_date", "matched_text", "dedup_key", "is_notified", "created_at",
	}).
		AddRow("m1", int64(1), int64(1), "", "u1", "t1", "", (*time.Time)(nil), "leak", "k1", false, base).
		AddRow("m2", int64(1), int64(1), "", "u2", "t2", "", (*time.Time)(nil), "leak", "k2", false, base.Add(time.Minute))

	mock.ExpectQuery("WHERE NOT is_notified").WillReturnRows(rows)

	matches, err := store.ListUnnotified(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "m1", matches[0].ID)
	assert.Equal(t, "m2", matches[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotified(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE matches SET is_notified").
		WithArgs("m1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkNotified(context.Background(), "m1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotified_UnknownMatch(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE matches SET is_notified").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.MarkNotified(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastScraped(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE sources SET last_scraped_at").
		WithArgs(ts, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateLastScraped(context.Background(), 7, ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveSources(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	last := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "name", "url", "source_type", "is_active", "last_scraped_at"}).
		AddRow(int64(1), "Springfield Moms", "https://facebook.com/groups/sm", "facebook", true, &last).
		AddRow(int64(2), "Oakville Buy Nothing", "https://facebook.com/groups/obn", "facebook", true, (*time.Time)(nil))

	mock.ExpectQuery("FROM sources").WithArgs("facebook").WillReturnRows(rows)

	sources, err := store.ListActiveSources(context.Background(), lead.SourceFacebook)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, lead.SourceFacebook, sources[0].Type)
	require.NotNil(t, sources[0].LastScrapedAt)
	assert.Nil(t, sources[1].LastScrapedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationSettings_LazyCreate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defaults := lead.NotificationSettings{SlackEnabled: true, SlackWebhook: "https://hooks.example/x"}

	mock.ExpectExec("INSERT INTO notification_settings").
		WithArgs(defaults.EmailEnabled, defaults.EmailAddress, defaults.SlackEnabled, defaults.SlackWebhook).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	now := time.Now().UTC()
	mock.ExpectQuery("FROM notification_settings").
		WillReturnRows(pgxmock.NewRows([]string{"email_enabled", "email_address", "slack_enabled", "slack_webhook", "updated_at"}).
			AddRow(false, "", true, "https://hooks.example/x", now))

	got, err := store.NotificationSettings(context.Background(), defaults)
	require.NoError(t, err)
	assert.True(t, got.SlackEnabled)
	assert.Equal(t, "https://hooks.example/x", got.SlackWebhook)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPool_NilPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}
