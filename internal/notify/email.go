package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
)

// SMTPConfig configures the transactional email relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailChannel delivers alerts over SMTP as multipart text/HTML mail.
// The destination is the recipient address from the notification settings.
type EmailChannel struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates an EmailChannel.
func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

// Name identifies the channel in logs and metrics.
func (e *EmailChannel) Name() string { return "email" }

// Send builds and relays the alert mail.
func (e *EmailChannel) Send(ctx context.Context, c Content, destination string) error {
	if e.cfg.Host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := e.buildMessage(c, destination)
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	if err := e.send(addr, auth, e.cfg.From, []string{destination}, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

func (e *EmailChannel) buildMessage(c Content, to string) []byte {
	subject := fmt.Sprintf("%s: %s", alertHeader, c.Keyword)
	boundary := "leadwatch-alert-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&b, "%s!\r\nSource: %s (%s)\r\nMatched Keyword: %s\r\nAuthor: %s\r\nDate: %s\r\n\r\n%s\r\n\r\nView the post: %s\r\n",
		alertHeader, c.SourceName, titleCase(string(c.SourceType)), c.Keyword, c.Author, c.PostedAt, c.Excerpt, c.PostURL)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&b, "<h1>🔍 %s!</h1>\r\n", alertHeader)
	fmt.Fprintf(&b, "<p><strong>Source:</strong> %s (%s)</p>\r\n", html.EscapeString(c.SourceName), titleCase(string(c.SourceType)))
	fmt.Fprintf(&b, "<p><strong>Matched Keyword:</strong> %s</p>\r\n", html.EscapeString(c.Keyword))
	fmt.Fprintf(&b, "<p><strong>Author:</strong> %s</p>\r\n", html.EscapeString(c.Author))
	fmt.Fprintf(&b, "<p><strong>Date:</strong> %s</p>\r\n", c.PostedAt)
	fmt.Fprintf(&b, "<h2>Post Content:</h2>\r\n<blockquote>%s</blockquote>\r\n", html.EscapeString(c.Excerpt))
	fmt.Fprintf(&b, "<p><a href=%q>View Original Post</a></p>\r\n", c.PostURL)

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
