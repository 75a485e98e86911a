package lead

import (
	"context"
	"time"
)

// Connector is the source connector capability. The pipeline never sees
// browser internals: it calls Login lazily before the first fetch of a
// cycle, reuses the session for every source of that type in the cycle,
// and releases it with Close when the cycle finishes.
type Connector interface {
	// Login authenticates the session. Failures are *AuthError values so
	// the orchestrator can tell credential failures from captchas.
	Login(ctx context.Context) error
	// Fetch returns up to maxPosts candidate posts from the source URL.
	// Failures are *FetchError values; each page-load/extraction step is
	// bounded by the connector's configured timeout.
	Fetch(ctx context.Context, sourceURL string, maxPosts int) ([]Post, error)
	// Close releases the underlying session.
	Close(ctx context.Context) error
}

// ConnectorFactory builds a connector for a source type. A fresh connector
// is created per scrape cycle so shutdown can release sessions cleanly.
type ConnectorFactory func(SourceType) (Connector, error)

// Store is the persistence contract for the pipeline. It is the sole
// writer of Match.IsNotified and Source.LastScrapedAt. All mutations are
// atomic at single-row granularity.
type Store interface {
	ListActiveSources(ctx context.Context, t SourceType) ([]Source, error)
	ListActiveKeywords(ctx context.Context) ([]Keyword, error)
	GetSource(ctx context.Context, id int64) (Source, error)
	GetKeyword(ctx context.Context, id int64) (Keyword, error)

	// FindExisting returns the match with the given dedup key under the
	// source, or nil when none exists. Checked before every insert.
	FindExisting(ctx context.Context, sourceID int64, dedupKey string) (*Match, error)
	// Insert persists a new match. A concurrent equivalent insert yields
	// ErrDuplicateMatch.
	Insert(ctx context.Context, m Match) error
	// ListUnnotified returns matches pending notification, oldest first.
	ListUnnotified(ctx context.Context) ([]Match, error)
	// MarkNotified sets IsNotified on the match. Idempotent: marking an
	// already-notified match is a no-op.
	MarkNotified(ctx context.Context, matchID string) error
	// UpdateLastScraped advances the source's last-scraped timestamp
	// unconditionally once its cycle completes.
	UpdateLastScraped(ctx context.Context, sourceID int64, ts time.Time) error

	// NotificationSettings returns the singleton settings row, creating it
	// from defaults when absent.
	NotificationSettings(ctx context.Context, defaults NotificationSettings) (NotificationSettings, error)
	UpdateNotificationSettings(ctx context.Context, s NotificationSettings) error

	Close()
}

// Publisher emits match events for downstream consumers. Publishing is
// best-effort; a failure never fails the scrape cycle.
type Publisher interface {
	PublishMatch(ctx context.Context, ev MatchEvent) error
	Close() error
}
