// Package connector fetches posts from social platforms with a headless
// browser session per scrape cycle.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
)

// BrowserConfig controls the shared headless browser session.
type BrowserConfig struct {
	Headless    bool
	UserAgent   string
	PageTimeout time.Duration
}

// browser owns one chromedp allocator and browser context. Connectors hold
// a browser for the duration of a scrape cycle and must Close it after.
type browser struct {
	cfg             BrowserConfig
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
}

func newBrowser(cfg BrowserConfig, logger *zap.Logger) (*browser, error) {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1280, 1024),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &browser{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
	}, nil
}

// run executes the actions in a fresh tab with the page timeout applied.
func (b *browser) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, b.cfg.PageTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	tasks := chromedp.Tasks{
		network.Enable(),
	}
	if b.cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(b.cfg.UserAgent))
	}
	tasks = append(tasks, actions...)
	return chromedp.Run(taskCtx, tasks)
}

func (b *browser) close() {
	b.browserCancel()
	b.allocatorCancel()
}

// sessionCookie is one entry of a cookies export pasted into configuration.
type sessionCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// setCookiesAction installs the exported session cookies before navigation.
// Cookies without a domain fall back to the platform default.
func setCookiesAction(cookiesJSON, defaultDomain string) (chromedp.Action, error) {
	var cookies []sessionCookie
	if err := json.Unmarshal([]byte(cookiesJSON), &cookies); err != nil {
		return nil, fmt.Errorf("parse session cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, errors.New("session cookies are empty")
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			domain := c.Domain
			if domain == "" {
				domain = defaultDomain
			}
			path := c.Path
			if path == "" {
				path = "/"
			}
			if err := network.SetCookie(c.Name, c.Value).
				WithDomain(domain).
				WithPath(path).
				Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}), nil
}

// scrollAction scrolls the feed a few times so lazy-loaded posts render.
func scrollAction(rounds int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < rounds; i++ {
			if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx); err != nil {
				return fmt.Errorf("scroll feed: %w", err)
			}
			if err := chromedp.Sleep(750 * time.Millisecond).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// rawPost is the shape the in-page extraction scripts return.
type rawPost struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
	Text       string `json:"text"`
	Author     string `json:"author"`
	PostedAt   string `json:"posted_at"`
}

func toPosts(raw []rawPost, sourceType lead.SourceType, maxPosts int) []lead.Post {
	if maxPosts > 0 && len(raw) > maxPosts {
		raw = raw[:maxPosts]
	}
	posts := make([]lead.Post, 0, len(raw))
	for _, r := range raw {
		if r.Text == "" {
			continue
		}
		p := lead.Post{
			ExternalID: r.ExternalID,
			URL:        r.URL,
			Text:       r.Text,
			Author:     r.Author,
			SourceType: sourceType,
		}
		if r.PostedAt != "" {
			if ts, err := time.Parse(time.RFC3339, r.PostedAt); err == nil {
				utc := ts.UTC()
				p.PostedAt = &utc
			}
		}
		posts = append(posts, p)
	}
	return posts
}

// classifyFetchErr maps a chromedp failure onto the fetch error taxonomy.
func classifyFetchErr(err error, sourceURL string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return lead.NewFetchError(lead.FetchTimeout, sourceURL, err)
	}
	return lead.NewFetchError(lead.FetchExtraction, sourceURL, err)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
