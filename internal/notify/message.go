// Package notify renders lead alerts and dispatches them across the
// enabled notification channels.
package notify

import (
	"context"
	"strings"
	"unicode/utf8"

	"leadwatch/internal/lead"
)

const (
	excerptLimit   = 500
	unknownAuthor  = "Unknown"
	unknownDate    = "Unknown date"
	postDateLayout = "2006-01-02 15:04:05"
	alertHeader    = "New Lead Alert"
)

// Content is a rendered notification, channel-agnostic. Channels format
// it into their own wire shape but never change what it says.
type Content struct {
	MatchID    string
	SourceName string
	SourceType lead.SourceType
	Keyword    string
	Excerpt    string
	Author     string
	PostedAt   string
	PostURL    string
}

// Channel is the notification channel capability: one rendered message,
// one destination, one attempt.
type Channel interface {
	Name() string
	Send(ctx context.Context, c Content, destination string) error
}

// BuildContent renders a match into channel-agnostic content: a post
// excerpt capped at 500 characters with an ellipsis marker, and explicit
// placeholders for missing author and date.
func BuildContent(m lead.Match, src lead.Source, kw lead.Keyword) Content {
	c := Content{
		MatchID:    m.ID,
		SourceName: src.Name,
		SourceType: src.Type,
		Keyword:    kw.Text,
		Excerpt:    truncate(m.PostText, excerptLimit),
		Author:     unknownAuthor,
		PostedAt:   unknownDate,
		PostURL:    m.PostURL,
	}
	if m.PostAuthor != "" {
		c.Author = m.PostAuthor
	}
	if m.PostDate != nil {
		c.PostedAt = m.PostDate.Format(postDateLayout)
	}
	return c
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// titleCase capitalizes the first letter of a source type for display.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
