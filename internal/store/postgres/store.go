// Package postgres provides the Postgres-backed match store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadwatch/internal/lead"
)

const uniqueViolationCode = "23505"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements lead.Store on Postgres.
type Store struct {
	pool querier
}

// New creates a Store backed by a pgx connection pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ListActiveSources returns active sources of the given type, oldest first.
func (s *Store) ListActiveSources(ctx context.Context, t lead.SourceType) ([]lead.Source, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, url, source_type, is_active, last_scraped_at
FROM sources
WHERE source_type = $1 AND is_active
ORDER BY id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	defer rows.Close()

	var out []lead.Source
	for rows.Next() {
		var src lead.Source
		var st string
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &st, &src.IsActive, &src.LastScrapedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Type = lead.SourceType(st)
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// ListActiveKeywords returns active keywords in insertion order. The order
// is significant: it is the tie-break order for keyword matching.
func (s *Store) ListActiveKeywords(ctx context.Context) ([]lead.Keyword, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, text, is_active
FROM keywords
WHERE is_active
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active keywords: %w", err)
	}
	defer rows.Close()

	var out []lead.Keyword
	for rows.Next() {
		var kw lead.Keyword
		if err := rows.Scan(&kw.ID, &kw.Text, &kw.IsActive); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}
	return out, nil
}

// GetSource returns one source by id.
func (s *Store) GetSource(ctx context.Context, id int64) (lead.Source, error) {
	var src lead.Source
	var st string
	err := s.pool.QueryRow(ctx, `
SELECT id, name, url, source_type, is_active, last_scraped_at
FROM sources WHERE id = $1`, id).
		Scan(&src.ID, &src.Name, &src.URL, &st, &src.IsActive, &src.LastScrapedAt)
	if err != nil {
		return lead.Source{}, fmt.Errorf("get source %d: %w", id, err)
	}
	src.Type = lead.SourceType(st)
	return src, nil
}

// GetKeyword returns one keyword by id.
func (s *Store) GetKeyword(ctx context.Context, id int64) (lead.Keyword, error) {
	var kw lead.Keyword
	err := s.pool.QueryRow(ctx, `
SELECT id, text, is_active FROM keywords WHERE id = $1`, id).
		Scan(&kw.ID, &kw.Text, &kw.IsActive)
	if err != nil {
		return lead.Keyword{}, fmt.Errorf("get keyword %d: %w", id, err)
	}
	return kw, nil
}

// FindExisting returns the match with the given dedup key under the
// source, or nil when none exists.
func (s *Store) FindExisting(ctx context.Context, sourceID int64, dedupKey string) (*lead.Match, error) {
	m, err := s.scanMatch(s.pool.QueryRow(ctx, selectMatch+`
WHERE source_id = $1 AND dedup_key = $2`, sourceID, dedupKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find existing match: %w", err)
	}
	return &m, nil
}

// Insert persists a new match as a single atomic row write. A concurrent
// equivalent insert surfaces as lead.ErrDuplicateMatch.
func (s *Store) Insert(ctx context.Context, m lead.Match) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO matches (
	id, source_id, keyword_id, external_post_id, post_url, post_text,
	post_author, post_date, matched_text, dedup_key, is_notified, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.SourceID, m.KeywordID, m.ExternalPostID, m.PostURL, m.PostText,
		m.PostAuthor, m.PostDate, m.MatchedText, m.DedupKey, m.IsNotified, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("match %s: %w", m.ID, lead.ErrDuplicateMatch)
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// ListUnnotified returns pending matches oldest first. Insertion order is
// preserved via the created_at, id tie-break.
func (s *Store) ListUnnotified(ctx context.Context) ([]lead.Match, error) {
	rows, err := s.pool.Query(ctx, selectMatch+`
WHERE NOT is_notified
ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list unnotified matches: %w", err)
	}
	defer rows.Close()

	var out []lead.Match
	for rows.Next() {
		m, err := s.scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// MarkNotified sets is_notified on the match. Marking an already-notified
// match is a no-op, not an error.
func (s *Store) MarkNotified(ctx context.Context, matchID string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE matches SET is_notified = TRUE WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match %s not found", matchID)
	}
	return nil
}

// UpdateLastScraped advances the source's last-scraped timestamp.
func (s *Store) UpdateLastScraped(ctx context.Context, sourceID int64, ts time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE sources SET last_scraped_at = $1 WHERE id = $2`, ts, sourceID)
	if err != nil {
		return fmt.Errorf("update last scraped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d not found", sourceID)
	}
	return nil
}

// NotificationSettings returns the singleton settings row, inserting the
// provided defaults when the row does not exist yet.
func (s *Store) NotificationSettings(ctx context.Context, defaults lead.NotificationSettings) (lead.NotificationSettings, error) {
	_, err := s.pool.Exec(ctx, `
INSERT INTO notification_settings (id, email_enabled, email_address, slack_enabled, slack_webhook, updated_at)
VALUES (1, $1, $2, $3, $4, NOW())
ON CONFLICT (id) DO NOTHING`,
		defaults.EmailEnabled, defaults.EmailAddress, defaults.SlackEnabled, defaults.SlackWebhook,
	)
	if err != nil {
		return lead.NotificationSettings{}, fmt.Errorf("seed notification settings: %w", err)
	}

	var out lead.NotificationSettings
	err = s.pool.QueryRow(ctx, `
SELECT email_enabled, email_address, slack_enabled, slack_webhook, updated_at
FROM notification_settings WHERE id = 1`).
		Scan(&out.EmailEnabled, &out.EmailAddress, &out.SlackEnabled, &out.SlackWebhook, &out.UpdatedAt)
	if err != nil {
		return lead.NotificationSettings{}, fmt.Errorf("load notification settings: %w", err)
	}
	return out, nil
}

// UpdateNotificationSettings overwrites the singleton settings row.
func (s *Store) UpdateNotificationSettings(ctx context.Context, ns lead.NotificationSettings) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO notification_settings (id, email_enabled, email_address, slack_enabled, slack_webhook, updated_at)
VALUES (1, $1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
	email_enabled = EXCLUDED.email_enabled,
	email_address = EXCLUDED.email_address,
	slack_enabled = EXCLUDED.slack_enabled,
	slack_webhook = EXCLUDED.slack_webhook,
	updated_at = EXCLUDED.updated_at`,
		ns.EmailEnabled, ns.EmailAddress, ns.SlackEnabled, ns.SlackWebhook,
	)
	if err != nil {
		return fmt.Errorf("update notification settings: %w", err)
	}
	return nil
}

const selectMatch = `
SELECT id, source_id, keyword_id, external_post_id, post_url, post_text,
	post_author, post_date, matched_text, dedup_key, is_notified, created_at
FROM matches`

func (s *Store) scanMatch(row pgx.Row) (lead.Match, error) {
	var m lead.Match
	err := row.Scan(
		&m.ID, &m.SourceID, &m.KeywordID, &m.ExternalPostID, &m.PostURL, &m.PostText,
		&m.PostAuthor, &m.PostDate, &m.MatchedText, &m.DedupKey, &m.IsNotified, &m.CreatedAt,
	)
	if err != nil {
		return lead.Match{}, err
	}
	return m, nil
}
