package postgres

// Schema is the DDL for the four relations shared with the dashboard.
// Sources and keywords are written by the dashboard; the pipeline is the
// sole writer of matches.is_notified and sources.last_scraped_at.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	source_type TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_scraped_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS keywords (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	text TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS keywords_text_normalized
	ON keywords (LOWER(TRIM(text)));

CREATE TABLE IF NOT EXISTS matches (
	id UUID PRIMARY KEY,
	source_id BIGINT NOT NULL REFERENCES sources(id),
	keyword_id BIGINT NOT NULL REFERENCES keywords(id),
	external_post_id TEXT NOT NULL DEFAULT '',
	post_url TEXT NOT NULL,
	post_text TEXT NOT NULL,
	post_author TEXT NOT NULL DEFAULT '',
	post_date TIMESTAMPTZ,
	matched_text TEXT NOT NULL,
	dedup_key TEXT NOT NULL,
	is_notified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS matches_source_dedup
	ON matches (source_id, dedup_key);

CREATE INDEX IF NOT EXISTS matches_unnotified
	ON matches (created_at) WHERE NOT is_notified;

CREATE TABLE IF NOT EXISTS notification_settings (
	id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	email_enabled BOOLEAN NOT NULL,
	email_address TEXT NOT NULL DEFAULT '',
	slack_enabled BOOLEAN NOT NULL,
	slack_webhook TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);
`
