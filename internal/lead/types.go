// Package lead defines the domain types and contracts of the lead
// detection pipeline: sources, keywords, posts, matches, and the
// capabilities (store, connector, publisher) the pipeline consumes.
package lead

import "time"

// SourceType identifies which platform a source lives on.
type SourceType string

// Supported source types.
const (
	SourceFacebook SourceType = "facebook"
	SourceNextdoor SourceType = "nextdoor"
)

// SourceTypes lists every supported source type in scheduling order.
var SourceTypes = []SourceType{SourceFacebook, SourceNextdoor}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	return t == SourceFacebook || t == SourceNextdoor
}

// Source is an operator-managed place to scrape, such as a Facebook group
// or a Nextdoor neighborhood.
type Source struct {
	ID            int64
	Name          string
	URL           string
	Type          SourceType
	IsActive      bool
	LastScrapedAt *time.Time
}

// Keyword is an operator-managed term to look for in post text.
// Text is unique case-insensitively across all keywords.
type Keyword struct {
	ID       int64
	Text     string
	IsActive bool
}

// Post is a candidate produced by a source connector. It is transient:
// posts are never persisted on their own, only as part of a Match.
type Post struct {
	ExternalID string
	URL        string
	Text       string
	Author     string
	PostedAt   *time.Time
	SourceType SourceType
}

// Match is a persisted keyword hit on a post. IsNotified transitions
// false to true exactly once and never reverts.
type Match struct {
	ID             string
	SourceID       int64
	KeywordID      int64
	ExternalPostID string
	PostURL        string
	PostText       string
	PostAuthor     string
	PostDate       *time.Time
	MatchedText    string
	DedupKey       string
	IsNotified     bool
	CreatedAt      time.Time
}

// NotificationSettings is the singleton per-deployment record controlling
// which channels the dispatcher attempts. The row is created lazily from
// environment-derived defaults if absent.
type NotificationSettings struct {
	EmailEnabled bool
	EmailAddress string
	SlackEnabled bool
	SlackWebhook string
	UpdatedAt    time.Time
}

// MatchEvent is the JSON payload published for every newly persisted match.
type MatchEvent struct {
	MatchID     string     `json:"match_id"`
	SourceID    int64      `json:"source_id"`
	SourceName  string     `json:"source_name"`
	SourceType  SourceType `json:"source_type"`
	KeywordID   int64      `json:"keyword_id"`
	Keyword     string     `json:"keyword"`
	PostURL     string     `json:"post_url"`
	PostAuthor  string     `json:"post_author,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	ExternalID  string     `json:"external_post_id,omitempty"`
	PostExcerpt string     `json:"post_excerpt"`
}

// Clock abstracts wall time so cycle timestamps are testable.
type Clock interface {
	Now() time.Time
}
